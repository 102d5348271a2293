package chat

import (
	"context"
	"errors"
)

// DefaultHistoryLimit is the retention cap applied when none is configured.
const DefaultHistoryLimit = 500

// ErrEmptyMessage indicates the submitted text was empty after trimming.
var ErrEmptyMessage = errors.New("chat: empty message")

// Message is one immutable chat record. Records are only ever evicted in
// bulk when the log exceeds the retention limit.
type Message struct {
	ID               string `json:"id"`
	Sender           string `json:"sender"`
	Email            string `json:"email"`
	Text             string `json:"text"`
	CreatedAtSeconds int64  `json:"timestamp_s"`
}

// MessageStore persists the ordered message log. Append must atomically add
// the record and drop the oldest records beyond the configured limit.
type MessageStore interface {
	Append(ctx context.Context, message Message) error
	List(ctx context.Context) ([]Message, error)
}

// Broadcaster fans an accepted message out to every connected client,
// including the submitter.
type Broadcaster interface {
	BroadcastMessage(message Message)
}

// IDProvider issues identifiers for new message records.
type IDProvider interface {
	NewID() (string, error)
}
