package state

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// DefaultSessionID is used when a caller does not identify a session.
const DefaultSessionID = "default"

// DefaultAnnualLeaveDays is the allowance a new session starts with.
const DefaultAnnualLeaveDays = 12

// SessionState is the mutable state tools operate on for one session.
// - Watchlist: movie ids in insertion order, never duplicated
// - Leave: taken/remaining counters, never negative
type SessionState struct {
	SessionID string       `json:"session_id"`
	Watchlist []string     `json:"watchlist,omitempty"`
	Leave     LeaveBalance `json:"leave"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type LeaveBalance struct {
	Taken     int `json:"taken"`
	Remaining int `json:"remaining"`
}

func (b LeaveBalance) Total() int {
	return b.Taken + b.Remaining
}

var (
	ErrNegativeBalance = errors.New("leave balance is negative")
	ErrDuplicateItem   = errors.New("watchlist contains duplicate id")
)

func NewSessionState(sessionID string, annualLeave int, now time.Time) *SessionState {
	if annualLeave < 0 {
		annualLeave = 0
	}
	return &SessionState{
		SessionID: sessionID,
		Leave:     LeaveBalance{Remaining: annualLeave},
		UpdatedAt: now.UTC(),
	}
}

func (s *SessionState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

/* ---------------------------- Watchlist helpers --------------------------- */

func (s *SessionState) InWatchlist(movieID string) bool {
	return slices.Contains(s.Watchlist, movieID)
}

// AddToWatchlist appends movieID unless it is already present.
// Reports whether the watchlist changed.
func (s *SessionState) AddToWatchlist(movieID string) bool {
	movieID = strings.TrimSpace(movieID)
	if movieID == "" || s.InWatchlist(movieID) {
		return false
	}
	s.Watchlist = append(s.Watchlist, movieID)
	return true
}

// RemoveFromWatchlist reports whether movieID was present.
func (s *SessionState) RemoveFromWatchlist(movieID string) bool {
	idx := slices.Index(s.Watchlist, strings.TrimSpace(movieID))
	if idx < 0 {
		return false
	}
	s.Watchlist = slices.Delete(s.Watchlist, idx, idx+1)
	return true
}

// WatchlistSet is the watchlist as a lookup set.
func (s *SessionState) WatchlistSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Watchlist))
	for _, id := range s.Watchlist {
		set[id] = struct{}{}
	}
	return set
}

/* ------------------------------ Leave helpers ----------------------------- */

// TakeLeave books days against the remaining balance. Negative requests are
// treated as zero and remaining is clamped at zero; taken only grows by the
// days that could actually be applied, so Total() is preserved.
func (s *SessionState) TakeLeave(days int) (applied int) {
	if days < 0 {
		days = 0
	}
	applied = min(days, s.Leave.Remaining)
	s.Leave.Remaining -= applied
	s.Leave.Taken += applied
	return applied
}

func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	out := *s
	out.Watchlist = slices.Clone(s.Watchlist)
	return &out
}

func (s *SessionState) Validate() error {
	if s.Leave.Taken < 0 || s.Leave.Remaining < 0 {
		return fmt.Errorf("%w: taken=%d remaining=%d", ErrNegativeBalance, s.Leave.Taken, s.Leave.Remaining)
	}
	seen := make(map[string]struct{}, len(s.Watchlist))
	for _, id := range s.Watchlist {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateItem, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
