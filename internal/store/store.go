package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a grant does not exist.
var ErrNotFound = errors.New("not found")

// Grant records that an account was authorized for use against an origin
// (the chat contract the client talks to).
type Grant struct {
	ID        int64
	Origin    string
	Account   string
	CreatedAt time.Time
}

// GrantStore persists account authorizations so later sessions skip the prompt.
type GrantStore interface {
	// ListGrants returns grants for origin, oldest first.
	ListGrants(ctx context.Context, origin string) ([]Grant, error)
	// SaveGrant records a grant; saving an existing grant is a no-op that returns it.
	SaveGrant(ctx context.Context, origin, account string) (*Grant, error)
	// RevokeGrant deletes a grant. Returns ErrNotFound if absent.
	RevokeGrant(ctx context.Context, origin, account string) error

	Close() error
}
