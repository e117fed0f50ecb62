package worker

import (
	"context"
	"fmt"
	"time"

	"recollect-worker/internal/metrics"
	"recollect-worker/internal/models"
	"recollect-worker/internal/queue"
	"recollect-worker/internal/rpc"
	"recollect-worker/internal/validate"
)

// Deps are the collaborators shared by the import workers
type Deps struct {
	Queue       queue.Client
	RPC         rpc.Bookmarks
	Metrics     *metrics.Metrics
	MaxRetries  int
	Visibility  time.Duration
	Concurrency int
}

func (d Deps) envelope(queueName string) *Envelope {
	return &Envelope{Queue: queueName, Client: d.Queue, Errors: d.RPC, MaxRetries: d.MaxRetries}
}

func upsertOutcome(res rpc.UpsertResult) Outcome {
	if res.Inserted {
		return Processed
	}
	return Skipped
}

// NewInstagramWorker consumes instagram_imports
func NewInstagramWorker(d Deps, batchSize int) *Runner[models.InstagramPayload] {
	env := d.envelope(models.QueueInstagramImports)
	handle := func(ctx context.Context, msg models.QueueMessage, p models.InstagramPayload) (Outcome, error) {
		res, err := d.RPC.ProcessInstagramBookmark(ctx, rpc.InstagramBookmark{
			Delivery:        rpc.Delivery{Queue: env.Queue, MsgID: msg.MsgID},
			URL:             p.URL,
			UserID:          p.UserID,
			Type:            p.Type,
			Title:           p.Title,
			Description:     p.Description,
			OgImage:         p.OgImage,
			MetaData:        p.MetaData,
			CollectionNames: p.CollectionNames(),
			SavedAt:         p.SavedAt,
		})
		if err != nil {
			return "", err
		}
		return upsertOutcome(res), nil
	}

	return NewRunner(Source[models.InstagramPayload]{
		Queue:      env.Queue,
		BatchSize:  batchSize,
		Visibility: d.Visibility,
		Decode:     validate.Instagram,
		Handle:     Guard[models.InstagramPayload](env, validate.IsInstagramURL, handle),
	}, env, d.Metrics, d.Concurrency)
}

// NewRaindropWorker consumes raindrop_imports
func NewRaindropWorker(d Deps, batchSize int) *Runner[models.RaindropPayload] {
	env := d.envelope(models.QueueRaindropImports)
	handle := func(ctx context.Context, msg models.QueueMessage, p models.RaindropPayload) (Outcome, error) {
		res, err := d.RPC.ProcessRaindropBookmark(ctx, rpc.RaindropBookmark{
			Delivery:     rpc.Delivery{Queue: env.Queue, MsgID: msg.MsgID},
			URL:          p.URL,
			UserID:       p.UserID,
			Type:         p.Type,
			Title:        p.Title,
			Description:  p.Description,
			OgImage:      p.OgImage,
			CategoryName: p.CategoryName,
			MetaData:     p.MetaData,
		})
		if err != nil {
			return "", err
		}
		return upsertOutcome(res), nil
	}

	return NewRunner(Source[models.RaindropPayload]{
		Queue:      env.Queue,
		BatchSize:  batchSize,
		Visibility: d.Visibility,
		Decode:     validate.Raindrop,
		Handle:     Guard[models.RaindropPayload](env, validate.IsHTTPURL, handle),
	}, env, d.Metrics, d.Concurrency)
}

// NewTwitterWorker consumes twitter_imports, dispatching on the message type
func NewTwitterWorker(d Deps, batchSize int) *Runner[models.TwitterPayload] {
	env := d.envelope(models.QueueTwitterImports)
	handle := func(ctx context.Context, msg models.QueueMessage, p models.TwitterPayload) (Outcome, error) {
		delivery := rpc.Delivery{Queue: env.Queue, MsgID: msg.MsgID}

		switch v := p.(type) {
		case *models.TwitterCreatePayload:
			res, err := d.RPC.ProcessTwitterBookmark(ctx, rpc.TwitterBookmark{
				Delivery:    delivery,
				URL:         v.URL,
				UserID:      v.UserID,
				Title:       v.Title,
				Description: v.Description,
				OgImage:     v.OgImage,
				MetaData:    v.MetaData,
				SortIndex:   v.SortIndex,
				InsertedAt:  v.InsertedAt,
			})
			if err != nil {
				return "", err
			}
			return upsertOutcome(res), nil

		case *models.TwitterLinkPayload:
			err := d.RPC.LinkTwitterBookmarkCategory(ctx, rpc.TwitterCategoryLink{
				Delivery:     delivery,
				URL:          v.URL,
				UserID:       v.UserID,
				CategoryName: v.CategoryName,
			})
			if err != nil {
				return "", err
			}
			return Processed, nil
		}
		return "", fmt.Errorf("unsupported twitter payload %T", p)
	}

	return NewRunner(Source[models.TwitterPayload]{
		Queue:      env.Queue,
		BatchSize:  batchSize,
		Visibility: d.Visibility,
		Decode:     validate.Twitter,
		Handle:     Guard[models.TwitterPayload](env, validate.IsTwitterURL, handle),
	}, env, d.Metrics, d.Concurrency)
}
