package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const readyTimeout = 2 * time.Second

// ReadyCheck is a named dependency check for /readyz.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewBaseMuxWithReady serves /healthz and /readyz. All checks run concurrently, each under
// its own timeout; /readyz answers 503 naming every failing dependency.
func NewBaseMuxWithReady(checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeReadiness(w, http.StatusOK, readiness{Status: "ok"})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		results, ok := runChecks(r.Context(), checks)
		if !ok {
			writeReadiness(w, http.StatusServiceUnavailable, readiness{Status: "unavailable", Checks: results})
			return
		}
		writeReadiness(w, http.StatusOK, readiness{Status: "ok", Checks: results})
	})
	return mux
}

func runChecks(ctx context.Context, checks []ReadyCheck) (map[string]string, bool) {
	errs := make([]error, len(checks))
	var g errgroup.Group
	for i, c := range checks {
		if c.Check == nil {
			continue
		}
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, readyTimeout)
			defer cancel()
			errs[i] = c.Check(cctx)
			return nil
		})
	}
	_ = g.Wait()

	results := make(map[string]string, len(checks))
	ok := true
	for i, c := range checks {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("dependency_%d", i)
		}
		if errs[i] != nil {
			results[name] = errs[i].Error()
			ok = false
			continue
		}
		results[name] = "ok"
	}
	return results, ok
}

func writeReadiness(w http.ResponseWriter, status int, body readiness) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
