package api

import (
	"context"
	"net/http"
)

type RouterConfig struct {
	RateLimit RateLimitConfig
}

// NewRouter mounts the tool endpoints both at the root and under
// /api/tools. Anything else gets a JSON 404, as does the session reset
// when the handler has no SessionResetter.
func NewRouter(ctx context.Context, h *Handler, cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	for _, prefix := range []string{"", "/api/tools"} {
		mux.HandleFunc("POST "+prefix+"/execute", h.Execute)
		mux.HandleFunc("GET "+prefix+"/tools", h.Tools)
		mux.HandleFunc("DELETE "+prefix+"/sessions/{sessionID}", h.ResetSession)
	}
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("/", h.NotFound)

	var handler http.Handler = mux
	handler = RateLimit(ctx, cfg.RateLimit)(handler)
	handler = Recoverer(handler)
	handler = RequestLogger(handler)
	return handler
}
