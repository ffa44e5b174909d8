package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/contract"
)

const defaultMaxBodyBytes int64 = 1 << 20

// Executor is the orchestrator entry point the handlers depend on.
type Executor interface {
	Execute(ctx context.Context, req contractx.Request) (contractx.Result, error)
}

type ToolLister interface {
	Definitions() []contractx.ToolDefinition
}

// SessionResetter drops the stored state of one session.
type SessionResetter interface {
	Reset(ctx context.Context, sessionID string) error
}

type Handler struct {
	exec         Executor
	tools        ToolLister
	sessions     SessionResetter
	now          func() time.Time
	maxBodyBytes int64
}

type HandlerOption func(*Handler)

func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithSessionResetter enables DELETE /sessions/{sessionID}.
func WithSessionResetter(r SessionResetter) HandlerOption {
	return func(h *Handler) { h.sessions = r }
}

func NewHandler(exec Executor, tools ToolLister, opts ...HandlerOption) (*Handler, error) {
	if exec == nil {
		return nil, errors.New("executor is required")
	}
	if tools == nil {
		return nil, errors.New("tool lister is required")
	}
	h := &Handler{
		exec:         exec,
		tools:        tools,
		now:          time.Now,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

type executeRequest struct {
	UserQuery string `json:"userQuery"`
	SessionID string `json:"sessionId,omitempty"`
}

type executeResponse struct {
	Success     bool            `json:"success"`
	ExecutionID string          `json:"execution_id"`
	UserQuery   string          `json:"user_query"`
	Steps       contractx.Trace `json:"execution_steps"`
	FinalResult string          `json:"final_result"`
	Timestamp   time.Time       `json:"timestamp"`
}

type errorResponse struct {
	Error   string          `json:"error"`
	Details string          `json:"details,omitempty"`
	Steps   contractx.Trace `json:"execution_steps,omitempty"`
}

type toolSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}
	if strings.TrimSpace(req.UserQuery) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "User query is required"})
		return
	}

	res, err := h.exec.Execute(r.Context(), contractx.Request{
		Query:     req.UserQuery,
		SessionID: req.SessionID,
	})
	if err != nil {
		err = contractx.GraphCause(err)
		status := http.StatusInternalServerError
		if errors.Is(err, contractx.ErrValidation) {
			status = http.StatusBadRequest
		}
		zerolog.Ctx(r.Context()).Error().Err(err).Int("status", status).Msg("execute request failed")
		writeJSON(w, status, errorResponse{
			Error:   "Failed to execute plan",
			Details: err.Error(),
			Steps:   res.Trace,
		})
		return
	}

	writeJSON(w, http.StatusOK, executeResponse{
		Success:     true,
		ExecutionID: res.ExecutionID,
		UserQuery:   res.Query,
		Steps:       res.Trace,
		FinalResult: res.FinalMessage,
		Timestamp:   h.now().UTC(),
	})
}

func (h *Handler) Tools(w http.ResponseWriter, r *http.Request) {
	defs := h.tools.Definitions()
	out := make([]toolSummary, 0, len(defs))
	for _, d := range defs {
		out = append(out, toolSummary{Name: d.Name, Description: d.Description})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}

// ResetSession clears the watchlist and leave balance of a session so the
// next request starts from the defaults.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		h.NotFound(w, r)
		return
	}

	sessionID := strings.TrimSpace(r.PathValue("sessionID"))
	if err := h.sessions.Reset(r.Context(), sessionID); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("session_id", sessionID).Msg("session reset failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to reset session",
			Details: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"session_id": sessionID,
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": h.now().UTC(),
		"services":  []string{"tools"},
	})
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error":  "Route not found",
		"path":   r.URL.Path,
		"method": r.Method,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
