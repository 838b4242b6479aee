package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// statusRecorder remembers what the handler wrote. Unwrap keeps http.ResponseController
// working through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

func (w *statusRecorder) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// accessEntry is filled in by inner middleware for the access log line.
type accessEntry struct {
	subject string
}

type ctxKeyAccess struct{}

func noteSubject(ctx context.Context, subject string) {
	if e, ok := ctx.Value(ctxKeyAccess{}).(*accessEntry); ok {
		e.subject = subject
	}
}

// WithAccessLog logs one line per request, including the authenticated subject when
// WithBearerAuth runs inside it. Server errors are logged at error level.
func WithAccessLog(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			entry := &accessEntry{}
			ctx := context.WithValue(r.Context(), ctxKeyAccess{}, entry)

			next.ServeHTTP(rec, r.WithContext(ctx))

			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			level := slog.LevelInfo
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := []any{
				"request_id", RequestIDFromContext(ctx),
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"bytes", rec.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if entry.subject != "" {
				attrs = append(attrs, "sub", entry.subject)
			}
			logger.Log(ctx, level, "http request", attrs...)
		})
	}
}
