package enrichment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recollect-worker/internal/models"
	"recollect-worker/internal/queue"
	"recollect-worker/internal/rpc"
	"recollect-worker/internal/tasks"
	"recollect-worker/internal/worker"
)

type fakeProber struct {
	reachable  map[string]bool
	discovered map[string]string
}

func (f *fakeProber) IsOgImageAccessible(ctx context.Context, imageURL string) bool {
	return f.reachable[imageURL]
}

func (f *fakeProber) DiscoverOgImage(ctx context.Context, pageURL string) (string, error) {
	if img, ok := f.discovered[pageURL]; ok {
		return img, nil
	}
	return "", errors.New("no og:image")
}

type fakePool struct {
	full  bool
	tasks []tasks.Task
}

func (f *fakePool) Submit(t tasks.Task) bool {
	if f.full {
		return false
	}
	f.tasks = append(f.tasks, t)
	return true
}

type fakePipeline struct {
	enriched    []AIEnrichmentRequest
	screenshots []ScreenshotRequest
	enrichErr   error
	failed      []string
}

func (f *fakePipeline) Enrich(ctx context.Context, req AIEnrichmentRequest) (*Result, error) {
	f.enriched = append(f.enriched, req)
	if f.enrichErr != nil {
		return nil, f.enrichErr
	}
	return &Result{BookmarkID: req.BookmarkID}, nil
}

func (f *fakePipeline) Screenshot(ctx context.Context, req ScreenshotRequest) (*Result, error) {
	f.screenshots = append(f.screenshots, req)
	return &Result{BookmarkID: req.BookmarkID, FailedStages: f.failed}, nil
}

// errorLog only implements error persistence; the upsert RPCs are never
// called on the ai-embeddings queue.
type errorLog struct {
	rpc.Bookmarks
	errs map[int64]string
}

func (e *errorLog) UpdateQueueMessageError(ctx context.Context, queue string, msgID int64, errText string) error {
	e.errs[msgID] = errText
	return nil
}

func runAll(t *testing.T, pool *fakePool) {
	t.Helper()
	for _, task := range pool.tasks {
		require.NoError(t, task.Run(context.Background()))
	}
}

func TestOrchestratorRoutes(t *testing.T) {
	q := queue.NewMemory()
	enrichID := q.Put(models.QueueAIEmbeddings, models.EnrichmentPayload{
		ID: 1, URL: "https://example.com/a", UserID: "u1", OgImage: "https://example.com/a.png", Source: models.SourceRaindrop,
	}, 0)
	q.Put(models.QueueAIEmbeddings, models.EnrichmentPayload{
		ID: 2, URL: "https://example.com/b", UserID: "u1",
	}, 0)
	q.Put(models.QueueAIEmbeddings, models.EnrichmentPayload{
		ID: 3, URL: "https://x.com/u/status/3", UserID: "u1", OgImage: "https://dead.test/3.png", Source: models.SourceTwitter,
		MetaData: map[string]any{"video_url": "https://video.twimg.com/3.mp4"},
	}, 0)
	q.Put(models.QueueAIEmbeddings, models.EnrichmentPayload{
		ID: 4, URL: "https://example.com/d", UserID: "u1", Source: models.SourceTwitter,
		MetaData: map[string]any{"video_url": "https://evil.test/4.mp4"},
	}, 0)

	prober := &fakeProber{
		reachable:  map[string]bool{"https://example.com/a.png": true, "https://example.com/b.png": true},
		discovered: map[string]string{"https://example.com/b": "https://example.com/b.png"},
	}
	pool := &fakePool{}
	pipeline := &fakePipeline{}
	d := worker.Deps{Queue: q, MaxRetries: 3}

	res, err := NewOrchestrator(d, pipeline, prober, pool, 10).ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Processed)
	require.Len(t, pool.tasks, 4)

	runAll(t, pool)
	require.Len(t, pipeline.enriched, 2)
	require.Len(t, pipeline.screenshots, 2)

	byID := map[int64]AIEnrichmentRequest{}
	for _, r := range pipeline.enriched {
		byID[r.BookmarkID] = r
	}
	assert.True(t, byID[1].IsRaindropBookmark)
	assert.Equal(t, enrichID, byID[1].MessageID)
	assert.Equal(t, models.QueueAIEmbeddings, byID[1].QueueName)
	assert.Equal(t, "https://example.com/b.png", byID[2].OgImage)
	assert.False(t, byID[2].IsRaindropBookmark)

	shots := map[int64]ScreenshotRequest{}
	for _, r := range pipeline.screenshots {
		shots[r.BookmarkID] = r
	}
	assert.Equal(t, "https://video.twimg.com/3.mp4", shots[3].VideoURL)
	assert.Empty(t, shots[4].VideoURL)

	// messages stay queued until the pipeline deletes them
	assert.Len(t, q.Pending(models.QueueAIEmbeddings), 4)
}

func TestOrchestratorPoolFull(t *testing.T) {
	q := queue.NewMemory()
	q.Put(models.QueueAIEmbeddings, models.EnrichmentPayload{ID: 1, URL: "https://example.com/a", UserID: "u1"}, 0)
	d := worker.Deps{Queue: q, MaxRetries: 3}

	o := NewOrchestrator(d, &fakePipeline{}, &fakeProber{}, &fakePool{full: true}, 10)
	res, err := o.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retry)
	assert.Len(t, q.Pending(models.QueueAIEmbeddings), 1)
}

func TestOrchestratorEnvelope(t *testing.T) {
	q := queue.NewMemory()
	q.Put(models.QueueAIEmbeddings, models.EnrichmentPayload{ID: 1, URL: "https://example.com/a", UserID: "u1"}, 3)
	q.Put(models.QueueAIEmbeddings, models.EnrichmentPayload{ID: 2, URL: "ftp://example.com/b", UserID: "u1"}, 0)
	q.Put(models.QueueAIEmbeddings, `{"url":"https://example.com/c"}`, 0)
	pool := &fakePool{}

	res, err := NewOrchestrator(worker.Deps{Queue: q, MaxRetries: 3}, &fakePipeline{}, &fakeProber{}, pool, 10).ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Archived)
	assert.Empty(t, pool.tasks)

	var reasons []string
	for _, a := range q.Archived(models.QueueAIEmbeddings) {
		reasons = append(reasons, a.Reason)
	}
	assert.ElementsMatch(t, []string{models.ReasonMaxRetriesExceeded, models.ReasonInvalidURL, models.ReasonInvalidPayload}, reasons)
}

func TestOrchestratorRecordsPipelineFailures(t *testing.T) {
	q := queue.NewMemory()
	enrichID := q.Put(models.QueueAIEmbeddings, models.EnrichmentPayload{
		ID: 1, URL: "https://example.com/a", UserID: "u1", OgImage: "https://example.com/a.png",
	}, 0)
	shotID := q.Put(models.QueueAIEmbeddings, models.EnrichmentPayload{
		ID: 2, URL: "https://example.com/b", UserID: "u1",
	}, 0)

	recorded := &errorLog{errs: map[int64]string{}}
	prober := &fakeProber{reachable: map[string]bool{"https://example.com/a.png": true}}
	pipeline := &fakePipeline{enrichErr: errors.New("bookmark not found"), failed: []string{StageCaption, StageOCR}}
	pool := &fakePool{}
	d := worker.Deps{Queue: q, RPC: recorded, MaxRetries: 3}

	_, err := NewOrchestrator(d, pipeline, prober, pool, 10).ProcessBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, pool.tasks, 2)

	errs := 0
	for _, task := range pool.tasks {
		if task.Run(context.Background()) != nil {
			errs++
		}
	}
	assert.Equal(t, 1, errs)
	assert.Equal(t, "bookmark not found", recorded.errs[enrichID])
	assert.Equal(t, "failed stages: caption, ocr", recorded.errs[shotID])
}
