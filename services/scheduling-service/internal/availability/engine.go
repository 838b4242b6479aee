// Package availability answers "is everyone free" and "when could everyone meet".
package availability

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scheduling-service/availability")

// Cache memoizes slot searches. compute reports whether its value may be stored.
type Cache interface {
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) ([]byte, bool, error)) ([]byte, error)
}

type Config struct {
	// CacheTTL bounds how stale a cached slot search may be. Zero disables caching.
	CacheTTL time.Duration
	// Concurrency caps parallel per-participant lookups.
	Concurrency int
}

type Engine struct {
	dir      Directory
	resolver *Resolver
	cache    Cache
	logger   *slog.Logger
	ttl      time.Duration
	workers  int
}

func NewEngine(dir Directory, cache Cache, logger *slog.Logger, cfg Config) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &Engine{
		dir:      dir,
		resolver: NewResolver(dir),
		cache:    cache,
		logger:   logger,
		ttl:      cfg.CacheTTL,
		workers:  cfg.Concurrency,
	}
}

// normalizeParticipants lower-cases, trims and de-duplicates addresses, keeping order.
// It returns false if any entry is blank.
func normalizeParticipants(emails []string) ([]string, bool) {
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		n := normalizeEmail(e)
		if n == "" {
			return nil, false
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out, true
}
