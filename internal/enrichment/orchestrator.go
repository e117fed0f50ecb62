package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"recollect-worker/internal/models"
	"recollect-worker/internal/tasks"
	"recollect-worker/internal/validate"
	"recollect-worker/internal/worker"
)

var errPoolFull = errors.New("enrichment task pool is full")

// Prober decides whether a bookmark already has a usable image
type Prober interface {
	IsOgImageAccessible(ctx context.Context, imageURL string) bool
	DiscoverOgImage(ctx context.Context, pageURL string) (string, error)
}

// Submitter runs tasks in the background
type Submitter interface {
	Submit(t tasks.Task) bool
}

// Pipeline is the work an orchestrated message ends up in
type Pipeline interface {
	Enrich(ctx context.Context, req AIEnrichmentRequest) (*Result, error)
	Screenshot(ctx context.Context, req ScreenshotRequest) (*Result, error)
}

// NewOrchestrator consumes the ai-embeddings queue. Each message is routed to
// AI enrichment when its og:image is reachable, otherwise to a screenshot.
// The pipeline runs on pool and deletes the message itself once every stage
// succeeded, so a message counted as processed here may still come back.
func NewOrchestrator(d worker.Deps, pipeline Pipeline, prober Prober, pool Submitter, batchSize int) *worker.Runner[models.EnrichmentPayload] {
	env := &worker.Envelope{Queue: models.QueueAIEmbeddings, Client: d.Queue, Errors: d.RPC, MaxRetries: d.MaxRetries}

	handle := func(ctx context.Context, msg models.QueueMessage, p models.EnrichmentPayload) (worker.Outcome, error) {
		task := route(ctx, env, prober, pipeline, msg, p)
		if !pool.Submit(task) {
			return "", errPoolFull
		}
		logrus.Debugf("Dispatched %s for message %d", task.Name, msg.MsgID)
		return worker.Processed, nil
	}

	return worker.NewRunner(worker.Source[models.EnrichmentPayload]{
		Queue:      env.Queue,
		BatchSize:  batchSize,
		Visibility: d.Visibility,
		Decode:     validate.Enrichment,
		Handle:     worker.Guard[models.EnrichmentPayload](env, validate.IsHTTPURL, handle),
	}, env, d.Metrics, d.Concurrency)
}

func route(ctx context.Context, env *worker.Envelope, prober Prober, pipeline Pipeline, msg models.QueueMessage, p models.EnrichmentPayload) tasks.Task {
	ogImage := p.OgImage
	if ogImage == "" {
		if found, err := prober.DiscoverOgImage(ctx, p.URL); err == nil {
			ogImage = found
		} else {
			logrus.Debugf("No og:image for bookmark %d: %v", p.ID, err)
		}
	}

	if ogImage != "" && prober.IsOgImageAccessible(ctx, ogImage) {
		req := AIEnrichmentRequest{
			BookmarkID:         p.ID,
			URL:                p.URL,
			UserID:             p.UserID,
			OgImage:            ogImage,
			IsRaindropBookmark: p.Source == models.SourceRaindrop,
			QueueName:          models.QueueAIEmbeddings,
			MessageID:          msg.MsgID,
		}
		return tasks.Task{
			Name: fmt.Sprintf("ai-enrichment:%d", p.ID),
			Run: func(ctx context.Context) error {
				res, err := pipeline.Enrich(ctx, req)
				return recordFailure(ctx, env, msg, res, err)
			},
		}
	}

	video := p.VideoURL()
	if video != "" && !validate.IsMediaURL(video, p.Source) {
		logrus.Warnf("Ignoring video url for bookmark %d: %q not on an allowed host", p.ID, video)
		video = ""
	}
	req := ScreenshotRequest{
		BookmarkID: p.ID,
		URL:        p.URL,
		UserID:     p.UserID,
		MediaType:  p.MediaType,
		VideoURL:   video,
		Source:     p.Source,
		QueueName:  models.QueueAIEmbeddings,
		MessageID:  msg.MsgID,
	}
	return tasks.Task{
		Name: fmt.Sprintf("screenshot:%d", p.ID),
		Run: func(ctx context.Context) error {
			_, err := pipeline.Screenshot(ctx, req)
			return err
		},
	}
}

// recordFailure stores the reason a pipeline run left its message queued, so
// a retry-exhausted archive carries it.
func recordFailure(ctx context.Context, env *worker.Envelope, msg models.QueueMessage, res *Result, err error) error {
	if err != nil {
		env.RecordError(ctx, msg, err)
		return err
	}
	if res != nil && len(res.FailedStages) > 0 {
		env.RecordError(ctx, msg, fmt.Errorf("failed stages: %s", strings.Join(res.FailedStages, ", ")))
	}
	return nil
}
