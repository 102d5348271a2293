package users

import "context"

// Identity is the verified caller attached to a session or realtime connection.
type Identity struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Username string `json:"username,omitempty"`
}

// Store persists the email to username mapping. Implementations must make
// Upsert atomic with respect to concurrent callers.
type Store interface {
	Lookup(ctx context.Context, email string) (string, bool, error)
	Upsert(ctx context.Context, email, username string) error
}
