package api

import (
	"net/http"
)

// getCircuitBreakerStatusHandler returns the current state of the publisher's circuit breaker
func (s *Server) getCircuitBreakerStatusHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Breaker == nil {
		s.respondWithError(w, http.StatusNotFound, "event publishing is disabled")
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: s.deps.Breaker.Metrics()})
}

// resetCircuitBreakerHandler resets the circuit breaker to closed state
func (s *Server) resetCircuitBreakerHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Breaker == nil {
		s.respondWithError(w, http.StatusNotFound, "event publishing is disabled")
		return
	}

	s.deps.Breaker.Reset()
	s.logger.Info("Circuit breaker reset by operator")

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: map[string]string{
			"message": "Circuit breaker reset successfully",
		},
	})
}

// getRateLimitsHandler reports the write limiter's settings
func (s *Server) getRateLimitsHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.RateLimiter == nil {
		s.respondWithJSON(w, http.StatusOK, ApiResponse{
			Success: true,
			Data:    map[string]interface{}{"enabled": false},
		})
		return
	}

	stats := s.deps.RateLimiter.Stats()
	stats["enabled"] = true
	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: stats})
}
