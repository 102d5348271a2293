package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	minUsernameLength = 2
	maxUsernameLength = 32
)

var (
	// ErrInvalidUsername indicates the candidate username fails the length rules.
	ErrInvalidUsername = errors.New("users: invalid username")
	// ErrMissingEmail indicates no verified email was supplied.
	ErrMissingEmail = errors.New("users: email required")
)

// ServiceConfig describes the dependencies for the username registry.
type ServiceConfig struct {
	Store Store
}

// Service manages chosen display names keyed by verified email.
type Service struct {
	store Store
}

// NewService constructs the username registry.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("users: store required")
	}
	return &Service{store: cfg.Store}, nil
}

// SetUsername validates the candidate and upserts the mapping for the email.
// Any previously stored value is overwritten; mappings are never deleted.
func (s *Service) SetUsername(ctx context.Context, email, candidate string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrMissingEmail
	}

	username := strings.TrimSpace(candidate)
	if len(username) < minUsernameLength {
		return "", fmt.Errorf("%w: must be at least %d characters", ErrInvalidUsername, minUsernameLength)
	}
	if len(username) > maxUsernameLength {
		return "", fmt.Errorf("%w: must be at most %d characters", ErrInvalidUsername, maxUsernameLength)
	}

	if err := s.store.Upsert(ctx, email, username); err != nil {
		return "", err
	}
	return username, nil
}

// Username returns the stored display name for the email, or "" when unset.
func (s *Service) Username(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrMissingEmail
	}
	username, ok, err := s.store.Lookup(ctx, email)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return username, nil
}
