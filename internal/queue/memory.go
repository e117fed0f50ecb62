package queue

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"recollect-worker/internal/models"
)

// ArchivedMessage is a message moved out of a Memory queue
type ArchivedMessage struct {
	Message models.QueueMessage
	Reason  string
}

// Memory is an in-process Client with pgmq semantics: read hides a message for
// the visibility timeout and bumps read_ct. Useful for tests and local runs.
type Memory struct {
	mu       sync.Mutex
	nextID   int64
	now      func() time.Time
	queues   map[string]map[int64]*memoryEntry
	archived map[string][]ArchivedMessage

	// Optional fault injection
	ReadErr    error
	DeleteErr  error
	ArchiveErr error
}

type memoryEntry struct {
	msg       models.QueueMessage
	visibleAt time.Time
}

// NewMemory creates an empty in-memory queue
func NewMemory() *Memory {
	return &Memory{
		now:      time.Now,
		queues:   make(map[string]map[int64]*memoryEntry),
		archived: make(map[string][]ArchivedMessage),
	}
}

// Put enqueues a raw message with a preset read count and returns its id
func (m *Memory) Put(queue string, payload any, readCt int) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var raw json.RawMessage
	switch p := payload.(type) {
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	case string:
		raw = json.RawMessage(p)
	default:
		raw, _ = json.Marshal(p)
	}

	m.nextID++
	if m.queues[queue] == nil {
		m.queues[queue] = make(map[int64]*memoryEntry)
	}
	m.queues[queue][m.nextID] = &memoryEntry{msg: models.QueueMessage{
		MsgID:      m.nextID,
		ReadCt:     readCt,
		EnqueuedAt: m.now(),
		Message:    raw,
	}}
	return m.nextID
}

func (m *Memory) Read(ctx context.Context, queue string, visibility time.Duration, qty int) ([]models.QueueMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ReadErr != nil {
		return nil, m.ReadErr
	}

	now := m.now()
	ids := make([]int64, 0, len(m.queues[queue]))
	for id, e := range m.queues[queue] {
		if !e.visibleAt.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []models.QueueMessage
	for _, id := range ids {
		if len(out) == qty {
			break
		}
		e := m.queues[queue][id]
		e.msg.ReadCt++
		e.visibleAt = now.Add(visibility)
		out = append(out, e.msg)
	}
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, queue string, msgID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.queues[queue], msgID)
	return nil
}

func (m *Memory) Archive(ctx context.Context, queue string, msgID int64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ArchiveErr != nil {
		return m.ArchiveErr
	}
	e, ok := m.queues[queue][msgID]
	if !ok {
		return nil
	}
	delete(m.queues[queue], msgID)
	m.archived[queue] = append(m.archived[queue], ArchivedMessage{Message: e.msg, Reason: reason})
	return nil
}

func (m *Memory) SendBatch(ctx context.Context, queue string, messages []any, delay time.Duration) ([]int64, error) {
	ids := make([]int64, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, m.Put(queue, msg, 0))
	}
	return ids, nil
}

// Pending returns the messages still in queue, visible or not, ordered by id
func (m *Memory) Pending(queue string) []models.QueueMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.QueueMessage, 0, len(m.queues[queue]))
	for _, e := range m.queues[queue] {
		out = append(out, e.msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MsgID < out[j].MsgID })
	return out
}

// Archived returns the messages archived from queue
func (m *Memory) Archived(queue string) []ArchivedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ArchivedMessage(nil), m.archived[queue]...)
}

// ExpireVisibility makes every message in queue visible again
func (m *Memory) ExpireVisibility(queue string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.queues[queue] {
		e.visibleAt = time.Time{}
	}
}
