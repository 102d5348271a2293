package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/hallway/backend/internal/users"
)

// ServiceConfig describes the dependencies of the message relay.
type ServiceConfig struct {
	Store       MessageStore
	Broadcaster Broadcaster
	IDProvider  IDProvider
	Clock       func() time.Time
}

// Service accepts inbound messages, persists them, and fans them out to all
// connected clients.
type Service struct {
	store       MessageStore
	broadcaster Broadcaster
	ids         IDProvider
	now         func() time.Time
}

// NewService constructs the message relay.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("chat: message store required")
	}
	if cfg.Broadcaster == nil {
		return nil, fmt.Errorf("chat: broadcaster required")
	}
	ids := cfg.IDProvider
	if ids == nil {
		ids = NewUUIDProvider()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		store:       cfg.Store,
		broadcaster: cfg.Broadcaster,
		ids:         ids,
		now:         clock,
	}, nil
}

// Submit trims the text, stamps the sender identity and current time, appends
// the record to the log, and broadcasts it to every connection including the
// submitter. Whitespace-only input returns ErrEmptyMessage without side effects.
func (s *Service) Submit(ctx context.Context, sender users.Identity, rawText string) (Message, error) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}

	id, err := s.ids.NewID()
	if err != nil {
		return Message{}, err
	}

	message := Message{
		ID:               id,
		Sender:           sender.Username,
		Email:            sender.Email,
		Text:             text,
		CreatedAtSeconds: s.now().Unix(),
	}

	if err := s.store.Append(ctx, message); err != nil {
		return Message{}, err
	}

	s.broadcaster.BroadcastMessage(message)
	return message, nil
}

// ListRecent returns the full current message log in insertion order.
func (s *Service) ListRecent(ctx context.Context) ([]Message, error) {
	messages, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []Message{}
	}
	return messages, nil
}
