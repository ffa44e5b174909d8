package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxUpstashResponseBytes = 2 << 20

// UpstashRedisConfig configures UpstashRedisStore. A zero TTL keeps
// sessions forever.
type UpstashRedisConfig struct {
	URL       string        `envconfig:"URL" required:"true"`
	Token     string        `envconfig:"TOKEN" required:"true"`
	KeyPrefix string        `envconfig:"KEY_PREFIX" default:"toolplan:state:"`
	TTL       time.Duration `envconfig:"TTL" default:"720h"`
	Timeout   time.Duration `envconfig:"TIMEOUT" default:"10s"`
}

// UpstashError is a command Upstash rejected, either with an HTTP status or
// with an error field in a 200 reply.
type UpstashError struct {
	Status  int
	Message string
}

func (e *UpstashError) Error() string {
	if e.Status != http.StatusOK {
		return fmt.Sprintf("upstash: status %d: %s", e.Status, e.Message)
	}
	return "upstash: " + e.Message
}

type UpstashOption func(*UpstashRedisStore)

func WithHTTPClient(client *http.Client) UpstashOption {
	return func(s *UpstashRedisStore) {
		if client != nil {
			s.client = client
		}
	}
}

// UpstashRedisStore keeps one JSON document per session under
// keyPrefix+sessionID, talking to Upstash over its REST command API.
type UpstashRedisStore struct {
	endpoint  string
	token     string
	keyPrefix string
	ttl       time.Duration
	client    *http.Client
}

func NewUpstashRedisStore(cfg UpstashRedisConfig, opts ...UpstashOption) (*UpstashRedisStore, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	token := strings.TrimSpace(cfg.Token)
	switch {
	case endpoint == "":
		return nil, errors.New("upstash redis url is required")
	case token == "":
		return nil, errors.New("upstash redis token is required")
	case cfg.TTL < 0:
		return nil, errors.New("upstash redis ttl must not be negative")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid upstash redis url: %w", err)
	}

	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = "toolplan:state:"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	s := &UpstashRedisStore{
		endpoint:  endpoint,
		token:     token,
		keyPrefix: prefix,
		ttl:       cfg.TTL,
		client:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *UpstashRedisStore) Load(ctx context.Context, sessionID string) (*SessionState, error) {
	key, err := s.key(sessionID)
	if err != nil {
		return nil, err
	}

	var doc *string
	if err := s.do(ctx, &doc, "GET", key); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrStateNotFound
	}

	var st SessionState
	if err := json.Unmarshal([]byte(*doc), &st); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("stored session %s is invalid: %w", sessionID, err)
	}
	return &st, nil
}

func (s *UpstashRedisStore) Save(ctx context.Context, st *SessionState) error {
	if st == nil {
		return ErrNilSessionState
	}
	key, err := s.key(st.SessionID)
	if err != nil {
		return err
	}

	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", st.SessionID, err)
	}

	args := []any{"SET", key, string(doc)}
	if s.ttl > 0 {
		args = append(args, "EX", int64(math.Ceil(s.ttl.Seconds())))
	}
	return s.do(ctx, nil, args...)
}

func (s *UpstashRedisStore) Delete(ctx context.Context, sessionID string) error {
	key, err := s.key(sessionID)
	if err != nil {
		return err
	}
	var removed int64
	return s.do(ctx, &removed, "DEL", key)
}

func (s *UpstashRedisStore) key(sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", ErrInvalidSession
	}
	return s.keyPrefix + sessionID, nil
}

// do sends one command and decodes its result into out when out is non-nil.
func (s *UpstashRedisStore) do(ctx context.Context, out any, args ...any) error {
	body, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode upstash command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build upstash request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("upstash %v: %w", args[0], err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstashResponseBytes))
	if err != nil {
		return fmt.Errorf("read upstash reply: %w", err)
	}

	var reply struct {
		Result json.RawMessage `json:"result"`
		Error  string          `json:"error"`
	}
	decodeErr := json.Unmarshal(raw, &reply)
	switch {
	case reply.Error != "":
		return &UpstashError{Status: resp.StatusCode, Message: reply.Error}
	case resp.StatusCode != http.StatusOK:
		return &UpstashError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	case decodeErr != nil:
		return fmt.Errorf("decode upstash reply: %w", decodeErr)
	}

	if out == nil || len(reply.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(reply.Result, out); err != nil {
		return fmt.Errorf("decode upstash %v result: %w", args[0], err)
	}
	return nil
}
