package codeboard

import (
	"context"
	"net/http"
	"strings"
)

type claimsContextKey struct{}

// Middleware authenticates requests carrying a Bearer access token and makes
// the verified claims available to downstream handlers. It performs no
// storage reads: access-token validity is purely cryptographic and
// time-based.
type Middleware struct {
	Issuer *Issuer

	// HeaderName is the header carrying the token. Defaults to
	// "Authorization".
	HeaderName string
}

func (m *Middleware) headerName() string {
	if m.HeaderName != "" {
		return m.HeaderName
	}
	return "Authorization"
}

// RequireAccount rejects requests without a valid access token. On success
// the token's claims are placed in the request context.
func (m *Middleware) RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := m.bearerToken(r)
		if raw == "" {
			writeAuthError(w, ErrMissingToken)
			return
		}
		claims, err := m.Issuer.VerifyAccess(raw)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

func (m *Middleware) bearerToken(r *http.Request) string {
	header := r.Header.Get(m.headerName())
	if header == "" {
		return ""
	}
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// ContextWithClaims returns a context carrying verified access-token claims.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext returns the claims placed by RequireAccount, or nil when
// the request was not authenticated.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey{}).(*Claims)
	return claims
}

func writeAuthError(w http.ResponseWriter, err error) {
	// Same wire shape as API.writeError, without needing handler state.
	(&API{}).writeError(w, err)
}
