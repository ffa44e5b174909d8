package state

import (
	"context"
	"errors"
)

var (
	ErrStateNotFound   = errors.New("session state not found")
	ErrNilSessionState = errors.New("session state is nil")
	ErrInvalidSession  = errors.New("session id is empty")
)

// Store is the persistence contract behind Manager. Delete of a missing
// session is not an error.
type Store interface {
	Load(ctx context.Context, sessionID string) (*SessionState, error)
	Save(ctx context.Context, st *SessionState) error
	Delete(ctx context.Context, sessionID string) error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*UpstashRedisStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
