package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/loopdb/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// WebSocket authenticates with a ticket, validated in the handler.
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.With(s.require(auth.PermChangesWatch)).Post("/auth/ws-ticket", s.handleWSTicket)

			// Read or write is decided per request from the caller's role.
			r.With(s.require(auth.PermQueryRead)).Post("/query", s.handleQuery)
			r.With(s.require(auth.PermQueryRead)).Get("/state", s.handleState)

			r.Group(func(r chi.Router) {
				r.Use(s.require(auth.PermDatabaseMaintain))
				r.Post("/vacuum", s.handleVacuum)
				r.Put("/collation", s.handleSetCollation)
				r.Put("/events", s.handleSetEvents)
			})
		})
	})

	return r
}

// handleHealth reports server and connection health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.connMu.Lock()
	healthErr := s.conn.HealthCheck(r.Context())
	s.connMu.Unlock()

	if healthErr != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "degraded",
			"version": s.version,
			"error":   healthErr.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"clients": s.hub.ClientCount(),
	})
}
