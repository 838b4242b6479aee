package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/huddle/libs/auth"
)

type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type ctxKeyClaims struct{}

// ClaimsFromContext returns the verified claims of the caller, or nil for an
// anonymous request.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(ctxKeyClaims{}).(*auth.Claims)
	return c
}

func ContextWithClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims{}, c)
}

// WithBearerAuth verifies an Authorization: Bearer token when one is present. Requests
// without the header pass through anonymously; handlers decide whether that is allowed.
// A present but invalid token is rejected with 401.
func WithBearerAuth(v TokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" {
				http.Error(w, "invalid Authorization header", http.StatusUnauthorized)
				return
			}
			claims, err := v.Verify(token)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			noteSubject(r.Context(), claims.Sub)
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}
