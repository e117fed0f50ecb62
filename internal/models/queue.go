package models

import (
	"encoding/json"
	"time"
)

// Queue names
const (
	QueueImports          = "imports"
	QueueInstagramImports = "instagram_imports"
	QueueRaindropImports  = "raindrop_imports"
	QueueTwitterImports   = "twitter_imports"
	QueueAIEmbeddings     = "ai-embeddings"
)

// Archive reasons
const (
	ReasonInvalidPayload     = "invalid_payload"
	ReasonInvalidURL         = "invalid_url"
	ReasonMaxRetriesExceeded = "max_retries_exceeded"
)

// QueueMessage is a message read from a pgmq queue
type QueueMessage struct {
	MsgID      int64           `json:"msg_id"`
	ReadCt     int             `json:"read_ct"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Message    json.RawMessage `json:"message"`
}

// ErrorTrail is the diagnostic state persisted onto a message between retries
type ErrorTrail struct {
	LastError   string `json:"last_error,omitempty"`
	LastErrorAt string `json:"last_error_at,omitempty"`
}

// Trail returns the error trail; promoted to every payload embedding it
func (t ErrorTrail) Trail() ErrorTrail { return t }
