package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type PostgresConfig struct {
	DSN     string        `envconfig:"DSN" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"5s"`
}

// PostgresStore persists SessionState rows through bun.
type PostgresStore struct {
	db *bun.DB
}

type sessionStateRow struct {
	bun.BaseModel `bun:"table:session_states,alias:ss"`

	SessionID      string    `bun:"session_id,pk"`
	Watchlist      []string  `bun:"watchlist,type:jsonb,notnull"`
	LeaveTaken     int       `bun:"leave_taken,notnull"`
	LeaveRemaining int       `bun:"leave_remaining,notnull"`
	UpdatedAt      time.Time `bun:"updated_at,notnull"`
}

func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(timeout),
	))
	db := bun.NewDB(sqldb, pgdialect.New())

	store, err := NewPostgresStoreWithDB(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreWithDB uses an existing bun handle and makes sure the
// session_states table exists.
func NewPostgresStoreWithDB(ctx context.Context, db *bun.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	if _, err := db.NewCreateTable().
		Model((*sessionStateRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("create session_states table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Load(ctx context.Context, sessionID string) (*SessionState, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	row := new(sessionStateRow)
	err := p.db.NewSelect().
		Model(row).
		Where("session_id = ?", sessionID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session state: %w", err)
	}

	st := row.toState()
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session state loaded from store: %w", err)
	}
	return st, nil
}

func (p *PostgresStore) Save(ctx context.Context, st *SessionState) error {
	if st == nil {
		return ErrNilSessionState
	}
	if strings.TrimSpace(st.SessionID) == "" {
		return ErrInvalidSession
	}

	row := newSessionStateRow(st)
	_, err := p.db.NewInsert().
		Model(row).
		On("CONFLICT (session_id) DO UPDATE").
		Set("watchlist = EXCLUDED.watchlist").
		Set("leave_taken = EXCLUDED.leave_taken").
		Set("leave_remaining = EXCLUDED.leave_remaining").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert session state: %w", err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	_, err := p.db.NewDelete().
		Model((*sessionStateRow)(nil)).
		Where("session_id = ?", strings.TrimSpace(sessionID)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete session state: %w", err)
	}
	return nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func newSessionStateRow(st *SessionState) *sessionStateRow {
	updatedAt := st.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	watchlist := slices.Clone(st.Watchlist)
	if watchlist == nil {
		watchlist = []string{}
	}
	return &sessionStateRow{
		SessionID:      st.SessionID,
		Watchlist:      watchlist,
		LeaveTaken:     st.Leave.Taken,
		LeaveRemaining: st.Leave.Remaining,
		UpdatedAt:      updatedAt.UTC(),
	}
}

func (r *sessionStateRow) toState() *SessionState {
	var watchlist []string
	if len(r.Watchlist) > 0 {
		watchlist = slices.Clone(r.Watchlist)
	}
	return &SessionState{
		SessionID: r.SessionID,
		Watchlist: watchlist,
		Leave: LeaveBalance{
			Taken:     r.LeaveTaken,
			Remaining: r.LeaveRemaining,
		},
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}
