package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// upstashServer records every command and answers with reply.
type upstashServer struct {
	commands [][]any
	auth     string
	reply    func(cmd []any) (int, string)
}

func (u *upstashServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	u.auth = r.Header.Get("Authorization")

	var cmd []any
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	u.commands = append(u.commands, cmd)

	status, body := http.StatusOK, `{"result":"OK"}`
	if u.reply != nil {
		status, body = u.reply(cmd)
	}
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func newUpstashStore(t *testing.T, srv *upstashServer, cfg UpstashRedisConfig) *UpstashRedisStore {
	t.Helper()

	server := httptest.NewServer(srv)
	t.Cleanup(server.Close)

	cfg.URL = server.URL
	cfg.Token = "token"
	store, err := NewUpstashRedisStore(cfg, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}
	return store
}

func TestUpstashSaveSetsDocumentWithTTL(t *testing.T) {
	t.Parallel()

	srv := &upstashServer{}
	store := newUpstashStore(t, srv, UpstashRedisConfig{KeyPrefix: "p:", TTL: 1500 * time.Millisecond})

	st := NewSessionState("session-1", 12, time.Now())
	st.AddToWatchlist("m1")
	if err := store.Save(context.Background(), st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if srv.auth != "Bearer token" {
		t.Fatalf("authorization = %q", srv.auth)
	}
	cmd := srv.commands[0]
	if len(cmd) != 5 || cmd[0] != "SET" || cmd[1] != "p:session-1" {
		t.Fatalf("unexpected command: %#v", cmd)
	}
	if cmd[3] != "EX" || cmd[4] != float64(2) {
		t.Fatalf("ttl should round up to whole seconds: %#v", cmd[3:])
	}

	var saved SessionState
	if err := json.Unmarshal([]byte(cmd[2].(string)), &saved); err != nil {
		t.Fatalf("saved document: %v", err)
	}
	if saved.SessionID != "session-1" || len(saved.Watchlist) != 1 {
		t.Fatalf("saved state = %#v", saved)
	}
}

func TestUpstashSaveWithoutTTL(t *testing.T) {
	t.Parallel()

	srv := &upstashServer{}
	store := newUpstashStore(t, srv, UpstashRedisConfig{})
	if err := store.Save(context.Background(), NewSessionState("s", 12, time.Now())); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if cmd := srv.commands[0]; len(cmd) != 3 || cmd[1] != "toolplan:state:s" {
		t.Fatalf("unexpected command: %#v", cmd)
	}
}

func TestUpstashLoadRoundTrip(t *testing.T) {
	t.Parallel()

	seed := NewSessionState("session-2", 10, time.Now())
	seed.AddToWatchlist("m2")
	seed.TakeLeave(3)
	doc, err := json.Marshal(seed)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	result, err := json.Marshal(string(doc))
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}

	srv := &upstashServer{reply: func(cmd []any) (int, string) {
		return http.StatusOK, fmt.Sprintf(`{"result":%s}`, result)
	}}
	st, err := newUpstashStore(t, srv, UpstashRedisConfig{}).Load(context.Background(), " session-2 ")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if srv.commands[0][0] != "GET" || srv.commands[0][1] != "toolplan:state:session-2" {
		t.Fatalf("unexpected command: %#v", srv.commands[0])
	}
	if len(st.Watchlist) != 1 || st.Leave.Taken != 3 || st.Leave.Remaining != 7 {
		t.Fatalf("loaded state = %#v", st)
	}
}

func TestUpstashLoadMissingSession(t *testing.T) {
	t.Parallel()

	srv := &upstashServer{reply: func([]any) (int, string) { return http.StatusOK, `{"result":null}` }}
	_, err := newUpstashStore(t, srv, UpstashRedisConfig{}).Load(context.Background(), "missing")
	if !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("Load() error = %v, want ErrStateNotFound", err)
	}
}

func TestUpstashLoadRejectsInvalidDocument(t *testing.T) {
	t.Parallel()

	srv := &upstashServer{reply: func([]any) (int, string) {
		return http.StatusOK, `{"result":"{\"session_id\":\"s\",\"leave\":{\"taken\":0,\"remaining\":-1}}"}`
	}}
	_, err := newUpstashStore(t, srv, UpstashRedisConfig{}).Load(context.Background(), "s")
	if !errors.Is(err, ErrNegativeBalance) {
		t.Fatalf("Load() error = %v, want ErrNegativeBalance", err)
	}
}

func TestUpstashDeleteSendsDel(t *testing.T) {
	t.Parallel()

	srv := &upstashServer{reply: func([]any) (int, string) { return http.StatusOK, `{"result":0}` }}
	if err := newUpstashStore(t, srv, UpstashRedisConfig{}).Delete(context.Background(), "gone"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if cmd := srv.commands[0]; cmd[0] != "DEL" || cmd[1] != "toolplan:state:gone" {
		t.Fatalf("unexpected command: %#v", cmd)
	}
}

func TestUpstashSurfacesRejectedCommands(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		status int
		body   string
		want   UpstashError
	}{
		"error field": {http.StatusOK, `{"error":"WRONGTYPE"}`, UpstashError{Status: http.StatusOK, Message: "WRONGTYPE"}},
		"http status": {http.StatusUnauthorized, `unauthorized`, UpstashError{Status: http.StatusUnauthorized, Message: "unauthorized"}},
	}
	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			srv := &upstashServer{reply: func([]any) (int, string) { return tc.status, tc.body }}
			err := newUpstashStore(t, srv, UpstashRedisConfig{}).Delete(context.Background(), "s")

			var upErr *UpstashError
			if !errors.As(err, &upErr) || *upErr != tc.want {
				t.Fatalf("Delete() error = %v, want %#v", err, tc.want)
			}
		})
	}
}

func TestUpstashRejectsEmptySessionID(t *testing.T) {
	t.Parallel()

	srv := &upstashServer{}
	store := newUpstashStore(t, srv, UpstashRedisConfig{})
	if _, err := store.Load(context.Background(), "  "); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("Load() error = %v, want ErrInvalidSession", err)
	}
	if err := store.Delete(context.Background(), ""); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("Delete() error = %v, want ErrInvalidSession", err)
	}
	if len(srv.commands) != 0 {
		t.Fatal("no command should be sent for an empty session id")
	}
}

func TestNewUpstashRedisStoreValidatesConfig(t *testing.T) {
	t.Parallel()

	cases := []UpstashRedisConfig{
		{Token: "t"},
		{URL: "http://localhost"},
		{URL: "http://localhost", Token: "t", TTL: -time.Second},
		{URL: "not a url", Token: "t"},
	}
	for _, cfg := range cases {
		if _, err := NewUpstashRedisStore(cfg); err == nil {
			t.Fatalf("expected error for %#v", cfg)
		}
	}
}
