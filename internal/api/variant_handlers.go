package api

import (
	"context"
	"net/http"
	"time"
)

func (s *Server) getVariantHandler(w http.ResponseWriter, r *http.Request) {
	variant, err := s.deps.Variants.GetVariant(r.Context(), pathID(r, "id"))
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: variant})
}

// healthCheckHandler reports liveness and, when configured, database reachability
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.deps.Health.Ping(ctx); err != nil {
			s.logger.Warn("Health check failed", "error", err)
			s.respondWithJSON(w, http.StatusServiceUnavailable, ApiResponse{
				Success: false,
				Data:    map[string]string{"status": "degraded", "database": "unreachable"},
				Error:   "database unreachable",
			})
			return
		}
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    map[string]string{"status": "ok"},
	})
}
