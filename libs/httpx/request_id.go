package httpx

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-Id"

const maxRequestIDLen = 128

type ctxKeyRequestID struct{}

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return v
}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID{}, id)
}

// RequestIDOrNew keeps a caller-supplied id when it is short and printable, and mints
// a fresh one otherwise, so log lines cannot be forged through the header.
func RequestIDOrNew(id string) string {
	if id == "" || len(id) > maxRequestIDLen {
		return uuid.NewString()
	}
	for _, r := range id {
		if !isIDRune(r) {
			return uuid.NewString()
		}
	}
	return id
}

func isIDRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_' || r == '.' || r == ':':
		return true
	}
	return false
}

// WithRequestID echoes the request id on the response and stores it in the context.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := RequestIDOrNew(r.Header.Get(RequestIDHeader))
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ContextWithRequestID(r.Context(), id)))
	})
}
