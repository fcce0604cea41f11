package http

import (
	"net/http"

	"go.uber.org/zap"

	"auv-monitor/ingestion/internal/auth"
)

const apiKeyHeader = "X-API-Key"

// AuthMiddleware guards the ingest endpoint with an API-key check.
// Streams and probes stay open; only writes need a key.
type AuthMiddleware struct {
	auth *auth.Authenticator
	log  *zap.Logger
}

func NewAuthMiddleware(a *auth.Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: a, log: zap.NewNop()}
}

// WithLogger attaches a logger for rejected attempts.
func (m *AuthMiddleware) WithLogger(log *zap.Logger) *AuthMiddleware {
	m.log = log
	return m
}

func (m *AuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(apiKeyHeader)
		if key == "" {
			m.unauthorized(w, "missing "+apiKeyHeader+" header")
			return
		}
		if !m.auth.Validate(r.Context(), key) {
			m.log.Warn("rejected request with invalid API key",
				zap.String("remote", r.RemoteAddr))
			m.unauthorized(w, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *AuthMiddleware) unauthorized(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": msg})
}
