package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/escrowd/escrowd/internal/adapter/http/dto"
	"github.com/escrowd/escrowd/internal/domain"
	"github.com/escrowd/escrowd/internal/infrastructure/metrics"
)

// Authenticator checks account credentials and produces the request
// principal.
type Authenticator interface {
	Authenticate(ctx context.Context, name, password string) (domain.Principal, error)
}

// AuthMiddleware authenticates requests via HTTP Basic credentials against
// ledger accounts.
type AuthMiddleware struct {
	auth    Authenticator
	metrics *metrics.Metrics
}

// NewAuthMiddleware creates a new AuthMiddleware. Metrics may be nil.
func NewAuthMiddleware(auth Authenticator, m *metrics.Metrics) *AuthMiddleware {
	return &AuthMiddleware{auth: auth, metrics: m}
}

// Wrap attaches the authenticated principal to the request context. Requests
// without credentials pass through unauthenticated; handlers that need a
// principal reject them. Bad credentials fail immediately with 401.
func (m *AuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, password, ok := r.BasicAuth()
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		principal, err := m.auth.Authenticate(r.Context(), name, password)
		if err != nil {
			m.recordAttempt("failure")
			w.Header().Set("WWW-Authenticate", `Basic realm="ledger"`)
			writeAuthError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		m.recordAttempt("success")
		ctx := domain.WithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) recordAttempt(status string) {
	if m.metrics != nil {
		m.metrics.AuthAttempts.WithLabelValues(status).Inc()
	}
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{ID: "UnauthorizedError", Message: message})
}
