package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"recollect-worker/internal/models"
)

// Client is an at-least-once message queue with visibility timeouts
type Client interface {
	Read(ctx context.Context, queue string, visibility time.Duration, qty int) ([]models.QueueMessage, error)
	Delete(ctx context.Context, queue string, msgID int64) error
	Archive(ctx context.Context, queue string, msgID int64, reason string) error
	SendBatch(ctx context.Context, queue string, messages []any, delay time.Duration) ([]int64, error)
}

// PGMQ implements Client on top of the pgmq Postgres extension
type PGMQ struct {
	pool *pgxpool.Pool
}

// NewPGMQ creates a queue client
func NewPGMQ(pool *pgxpool.Pool) *PGMQ {
	return &PGMQ{pool: pool}
}

// Read makes up to qty messages invisible for the visibility timeout and returns them
func (q *PGMQ) Read(ctx context.Context, queue string, visibility time.Duration, qty int) ([]models.QueueMessage, error) {
	const op = "queue.Read"

	rows, err := q.pool.Query(ctx,
		`SELECT msg_id, read_ct, enqueued_at, message FROM pgmq.read($1, $2, $3)`,
		queue, int(visibility.Seconds()), qty)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.QueueMessage, error) {
		var (
			m   models.QueueMessage
			raw []byte
		)
		if err := row.Scan(&m.MsgID, &m.ReadCt, &m.EnqueuedAt, &raw); err != nil {
			return m, err
		}
		m.Message = json.RawMessage(raw)
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return msgs, nil
}

// Delete removes a message permanently
func (q *PGMQ) Delete(ctx context.Context, queue string, msgID int64) error {
	const op = "queue.Delete"

	var deleted bool
	if err := q.pool.QueryRow(ctx, `SELECT pgmq.delete($1, $2::bigint)`, queue, msgID).Scan(&deleted); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !deleted {
		logrus.Debugf("Message %d already gone from %s", msgID, queue)
	}
	return nil
}

// Archive moves a message to the queue's archive table. A non-empty reason is
// recorded alongside it.
func (q *PGMQ) Archive(ctx context.Context, queue string, msgID int64, reason string) error {
	const op = "queue.Archive"

	var err error
	if reason == "" {
		_, err = q.pool.Exec(ctx, `SELECT pgmq.archive($1, $2::bigint)`, queue, msgID)
	} else {
		_, err = q.pool.Exec(ctx,
			`SELECT archive_with_reason(p_queue_name := $1, p_msg_id := $2::bigint, p_reason := $3)`,
			queue, msgID, reason)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SendBatch enqueues messages and returns their ids
func (q *PGMQ) SendBatch(ctx context.Context, queue string, messages []any, delay time.Duration) ([]int64, error) {
	const op = "queue.SendBatch"

	if len(messages) == 0 {
		return nil, nil
	}

	bodies := make([]string, 0, len(messages))
	for _, m := range messages {
		raw, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal message: %w", op, err)
		}
		bodies = append(bodies, string(raw))
	}

	rows, err := q.pool.Query(ctx, `SELECT * FROM pgmq.send_batch($1, $2::jsonb[], $3)`,
		queue, bodies, int(delay.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}
