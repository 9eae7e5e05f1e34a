package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vaidashi/backoffice-api/pkg/logger"
)

// ActorHeader carries the acting user id when no JWT secret is configured.
const ActorHeader = "X-Actor-ID"

type actorKey struct{}

// WithActor returns a copy of ctx carrying the acting user id.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ActorFromContext returns the acting user id, or "" when the request is anonymous.
func ActorFromContext(ctx context.Context) string {
	id, _ := ctx.Value(actorKey{}).(string)
	return id
}

// ActorMiddleware resolves the acting user for every request. With a secret
// configured it requires an HS256 Bearer token and takes the actor from the
// "sub" claim; without one it trusts the X-Actor-ID header.
type ActorMiddleware struct {
	secret []byte
	logger logger.Logger
}

// NewActorMiddleware creates an ActorMiddleware
func NewActorMiddleware(secret string, logger logger.Logger) *ActorMiddleware {
	return &ActorMiddleware{secret: []byte(secret), logger: logger}
}

// Middleware returns a middleware function
func (m *ActorMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(m.secret) == 0 {
			if id := strings.TrimSpace(r.Header.Get(ActorHeader)); id != "" {
				r = r.WithContext(WithActor(r.Context(), id))
			}
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing or invalid token")
			return
		}

		actorID, err := m.parse(token)
		if err != nil {
			m.logger.Warn("Rejected access token", "error", err, "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, "missing or invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actorID)))
	})
}

func (m *ActorMiddleware) parse(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}

	return claims.Subject, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
