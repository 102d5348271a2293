package hub

import "github.com/MarcoPoloResearchLab/hallway/backend/internal/chat"

// Server to client event types carried on the realtime channel.
const (
	EventInit    = "init"
	EventMessage = "message"
	EventSystem  = "system"
	EventError   = "errorMsg"
)

// Client to server event types.
const (
	EventSendMessage = "sendMessage"
)

// ServerEvent is the envelope written to connected clients. Exactly one of
// the payload fields is populated, selected by Type.
type ServerEvent struct {
	Type             string         `json:"type"`
	Messages         []chat.Message `json:"messages,omitempty"`
	Message          *chat.Message  `json:"message,omitempty"`
	Text             string         `json:"text,omitempty"`
	TimestampSeconds int64          `json:"timestamp_s,omitempty"`
}

// ClientEvent is the envelope read from connected clients.
type ClientEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// InitEvent carries the full message history, sent exactly once on admission.
func InitEvent(history []chat.Message) ServerEvent {
	if history == nil {
		history = []chat.Message{}
	}
	return ServerEvent{Type: EventInit, Messages: history}
}

// MessageEvent carries one accepted chat message.
func MessageEvent(message chat.Message) ServerEvent {
	return ServerEvent{Type: EventMessage, Message: &message}
}

// SystemEvent carries an ephemeral join or leave announcement.
func SystemEvent(text string, timestampSeconds int64) ServerEvent {
	return ServerEvent{Type: EventSystem, Text: text, TimestampSeconds: timestampSeconds}
}

// ErrorEvent carries the rejection reason sent before closing a connection.
func ErrorEvent(reason string) ServerEvent {
	return ServerEvent{Type: EventError, Text: reason}
}
