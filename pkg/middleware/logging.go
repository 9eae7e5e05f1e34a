package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/vaidashi/backoffice-api/pkg/logger"
)

// RequestObserver receives one call per finished request, e.g. to feed metrics.
type RequestObserver func(method, route string, status int, duration time.Duration)

// RequestLogging logs every request after it is processed and reports it to observe, if set.
func RequestLogging(log logger.Logger, observe RequestObserver) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := newStatusCodeWriter(w)

			next.ServeHTTP(sw, r)

			duration := time.Since(start)
			log.Info("Request processed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.statusCode,
				"duration", duration,
				"actor", ActorFromContext(r.Context()),
				"remoteAddr", r.RemoteAddr,
			)

			if observe != nil {
				observe(r.Method, routeTemplate(r), sw.statusCode, duration)
			}
		})
	}
}

// routeTemplate returns the matched mux path template so metrics labels stay bounded.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
