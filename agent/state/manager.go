package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Manager serializes read-modify-write cycles per session. Each Mutate call
// is atomic with respect to other Mutate calls on the same session inside
// this process; a multi-step plan is not.
type Manager struct {
	store       Store
	annualLeave int
	now         func() time.Time

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

type ManagerOption func(*Manager)

func WithAnnualLeave(days int) ManagerOption {
	return func(m *Manager) {
		if days >= 0 {
			m.annualLeave = days
		}
	}
}

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewManager(store Store, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	m := &Manager{
		store:       store,
		annualLeave: DefaultAnnualLeaveDays,
		now:         time.Now,
		locks:       make(map[string]*sessionLock),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// Read returns a copy of the session state, or a fresh default state when
// nothing has been stored yet. It never writes.
func (m *Manager) Read(ctx context.Context, sessionID string) (*SessionState, error) {
	sessionID = normalizeSessionID(sessionID)
	return m.loadOrCreate(ctx, sessionID)
}

// Mutate loads the session, applies fn and saves the result while holding
// the session lock. Nothing is saved when fn fails.
func (m *Manager) Mutate(
	ctx context.Context,
	sessionID string,
	fn func(*SessionState) error,
) (*SessionState, error) {
	sessionID = normalizeSessionID(sessionID)

	unlock := m.lock(sessionID)
	defer unlock()

	st, err := m.loadOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(st); err != nil {
		return nil, err
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("state validation failed: %w", err)
	}
	st.Touch(m.now())
	if err := m.store.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("save session state: %w", err)
	}
	return st.Clone(), nil
}

// Reset deletes the stored session so the next Read or Mutate starts from
// a fresh default state. It waits for an in-flight Mutate on the session.
func (m *Manager) Reset(ctx context.Context, sessionID string) error {
	sessionID = normalizeSessionID(sessionID)

	unlock := m.lock(sessionID)
	defer unlock()

	if err := m.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session state: %w", err)
	}
	return nil
}

func (m *Manager) loadOrCreate(ctx context.Context, sessionID string) (*SessionState, error) {
	st, err := m.store.Load(ctx, sessionID)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, ErrStateNotFound) {
		return nil, fmt.Errorf("load session state: %w", err)
	}
	return NewSessionState(sessionID, m.annualLeave, m.now()), nil
}

func (m *Manager) lock(sessionID string) func() {
	m.mu.Lock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		m.locks[sessionID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, sessionID)
		}
		m.mu.Unlock()
	}
}

func normalizeSessionID(sessionID string) string {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return DefaultSessionID
	}
	return sessionID
}
