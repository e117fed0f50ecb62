package worker

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"recollect-worker/internal/models"
	"recollect-worker/internal/queue"
	"recollect-worker/internal/telemetry"
)

// Outcome is the terminal state of one message within a batch
type Outcome string

const (
	Processed Outcome = "processed"
	Archived  Outcome = "archived"
	Skipped   Outcome = "skipped"
	Retry     Outcome = "retry"
)

// Payload is a queue message body that carries a bookmark URL and the
// diagnostics of previous attempts.
type Payload interface {
	BookmarkURL() string
	Trail() models.ErrorTrail
}

// Handler performs the source-specific work for a message that passed the
// retry and URL checks. A returned error leaves the message for redelivery.
type Handler[P Payload] func(ctx context.Context, msg models.QueueMessage, p P) (Outcome, error)

// ErrorRecorder persists the last processing error onto a queued message
type ErrorRecorder interface {
	UpdateQueueMessageError(ctx context.Context, queue string, msgID int64, errText string) error
}

// Envelope is the retry and archive policy shared by every queue consumer
type Envelope struct {
	Queue      string
	Client     queue.Client
	Errors     ErrorRecorder
	MaxRetries int
}

// Guard wraps h with the envelope. Messages read more than MaxRetries times
// are archived as max_retries_exceeded, URLs rejected by allowed are archived
// as invalid_url, and handler errors are recorded on the message and reported
// as Retry.
func Guard[P Payload](env *Envelope, allowed func(string) bool, h Handler[P]) func(context.Context, models.QueueMessage, P) Outcome {
	return func(ctx context.Context, msg models.QueueMessage, p P) Outcome {
		if env.Exhausted(msg) {
			return env.ArchiveExhausted(ctx, msg, p.Trail())
		}

		if !allowed(p.BookmarkURL()) {
			logrus.Warnf("Archiving message %d on %s: url %q not allowed", msg.MsgID, env.Queue, p.BookmarkURL())
			if !env.Archive(ctx, msg, models.ReasonInvalidURL) {
				return Retry
			}
			return Archived
		}

		outcome, err := h(ctx, msg, p)
		if err != nil {
			logrus.Errorf("Failed to process message %d on %s: %v", msg.MsgID, env.Queue, err)
			env.RecordError(ctx, msg, err)
			return Retry
		}
		return outcome
	}
}

// Exhausted reports whether msg has used up its retries
func (e *Envelope) Exhausted(msg models.QueueMessage) bool {
	return msg.ReadCt > e.MaxRetries
}

// ArchiveExhausted archives a message that ran out of retries. If archiving
// fails the message stays queued and Retry is returned.
func (e *Envelope) ArchiveExhausted(ctx context.Context, msg models.QueueMessage, trail models.ErrorTrail) Outcome {
	reason := ExhaustedReason(trail)
	telemetry.Capture(fmt.Errorf("message %d on %s exceeded %d retries: %s", msg.MsgID, e.Queue, e.MaxRetries, reason),
		map[string]string{"queue": e.Queue, "reason": models.ReasonMaxRetriesExceeded})
	if !e.Archive(ctx, msg, reason) {
		return Retry
	}
	return Archived
}

// Archive archives msg with reason and reports whether it succeeded
func (e *Envelope) Archive(ctx context.Context, msg models.QueueMessage, reason string) bool {
	if err := e.Client.Archive(ctx, e.Queue, msg.MsgID, reason); err != nil {
		logrus.Errorf("Failed to archive message %d on %s (%s): %v", msg.MsgID, e.Queue, reason, err)
		telemetry.Capture(err, map[string]string{"queue": e.Queue, "operation": "archive", "reason": reason})
		return false
	}
	return true
}

// RecordError stores err on the message for the eventual archive reason
func (e *Envelope) RecordError(ctx context.Context, msg models.QueueMessage, err error) {
	if e.Errors == nil {
		return
	}
	if rerr := e.Errors.UpdateQueueMessageError(ctx, e.Queue, msg.MsgID, err.Error()); rerr != nil {
		logrus.Warnf("Failed to record error on message %d: %v", msg.MsgID, rerr)
	}
}

// ExhaustedReason builds the archive reason for a retry-exhausted message
func ExhaustedReason(trail models.ErrorTrail) string {
	if trail.LastError == "" {
		return models.ReasonMaxRetriesExceeded
	}
	return models.ReasonMaxRetriesExceeded + ": " + trail.LastError
}
