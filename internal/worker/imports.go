package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"recollect-worker/internal/category"
	"recollect-worker/internal/metrics"
	"recollect-worker/internal/models"
	"recollect-worker/internal/validate"
)

// BatchLinker links bookmarks to import categories in bulk
type BatchLinker interface {
	LinkBatch(ctx context.Context, reqs []category.LinkRequest) (*category.BatchResult, error)
}

// ImportsWorker consumes the imports queue. Bookmarks already exist; each
// message only asks for collection links. Unlike the import workers it
// deletes messages itself on success.
type ImportsWorker struct {
	env        *Envelope
	linker     BatchLinker
	metrics    *metrics.Metrics
	batchSize  int
	visibility time.Duration
	// Called with public categories that gained bookmarks
	OnPublicCategories func(cats []models.Category)
}

// NewImportsWorker creates the category linking worker
func NewImportsWorker(d Deps, linker BatchLinker, batchSize int) *ImportsWorker {
	return &ImportsWorker{
		env:        d.envelope(models.QueueImports),
		linker:     linker,
		metrics:    d.Metrics,
		batchSize:  batchSize,
		visibility: d.Visibility,
	}
}

func (w *ImportsWorker) Queue() string {
	return w.env.Queue
}

// ProcessBatch reads a batch and links every valid message with one call to
// the batch linker.
func (w *ImportsWorker) ProcessBatch(ctx context.Context) (*BatchResult, error) {
	started := time.Now()
	defer w.metrics.ObserveBatch(w.env.Queue, started)

	msgs, err := w.env.Client.Read(ctx, w.env.Queue, w.visibility, w.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", w.env.Queue, err)
	}
	if len(msgs) == 0 {
		return &BatchResult{Message: "Queue empty", Empty: true}, nil
	}

	result := &BatchResult{}
	var reqs []category.LinkRequest
	reqIndex := map[int64]int{}
	byBookmark := map[int64][]models.QueueMessage{}

	for _, msg := range msgs {
		p, err := validate.ImportLink(msg.Message)
		if err != nil {
			logrus.Warnf("Archiving message %d on %s: %v", msg.MsgID, w.env.Queue, err)
			if w.env.Archive(ctx, msg, models.ReasonInvalidPayload) {
				result.Archived++
			}
			continue
		}
		if w.env.Exhausted(msg) {
			result.add(w.env.ArchiveExhausted(ctx, msg, p.Trail()))
			continue
		}
		// Messages for the same bookmark share one request so every
		// message's names are linked before any of them is deleted.
		if i, seen := reqIndex[p.BookmarkID]; seen {
			reqs[i].Names = append(reqs[i].Names, p.MetaData.SavedCollectionNames...)
		} else {
			reqIndex[p.BookmarkID] = len(reqs)
			reqs = append(reqs, category.LinkRequest{
				BookmarkID: p.BookmarkID,
				UserID:     p.UserID,
				Names:      append([]string(nil), p.MetaData.SavedCollectionNames...),
			})
		}
		byBookmark[p.BookmarkID] = append(byBookmark[p.BookmarkID], msg)
	}

	if len(reqs) > 0 {
		w.link(ctx, reqs, byBookmark, result)
	}

	w.metrics.ObserveOutcome(w.env.Queue, string(Processed), result.Processed)
	w.metrics.ObserveOutcome(w.env.Queue, string(Archived), result.Archived)
	w.metrics.ObserveOutcome(w.env.Queue, string(Retry), result.Retry)

	logrus.Infof("Processed batch on %s: processed=%d archived=%d retry=%d",
		w.env.Queue, result.Processed, result.Archived, result.Retry)
	return result, nil
}

func (w *ImportsWorker) link(ctx context.Context, reqs []category.LinkRequest, byBookmark map[int64][]models.QueueMessage, result *BatchResult) {
	res, err := w.linker.LinkBatch(ctx, reqs)
	if err != nil {
		logrus.Warnf("Failed to link categories for %d bookmarks, leaving for redelivery: %v", len(reqs), err)
		for _, req := range reqs {
			for _, msg := range byBookmark[req.BookmarkID] {
				w.env.RecordError(ctx, msg, err)
				result.Retry++
			}
		}
		return
	}

	for _, id := range res.Successful {
		for _, msg := range byBookmark[id] {
			if err := w.env.Client.Delete(ctx, w.env.Queue, msg.MsgID); err != nil {
				logrus.Errorf("Failed to delete message %d on %s: %v", msg.MsgID, w.env.Queue, err)
				result.Retry++
				continue
			}
			result.Processed++
		}
	}

	for _, f := range res.Failed {
		logrus.Warnf("Category linking failed for bookmark %d: %s", f.BookmarkID, f.Reason)
		for _, msg := range byBookmark[f.BookmarkID] {
			w.env.RecordError(ctx, msg, fmt.Errorf("%s", f.Reason))
			result.Retry++
		}
	}

	if len(res.PublicCategories) > 0 && w.OnPublicCategories != nil {
		w.OnPublicCategories(res.PublicCategories)
	}
}
