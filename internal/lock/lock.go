// Package lock serializes commits per event across processes.
//
// Every implementation is non-blocking: when another commit holds the event,
// Lock fails at once with core.ErrImportInProgress and the caller reports it.
package lock

import (
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

// DefaultTTL bounds how long a Redis lock outlives a crashed holder.
const DefaultTTL = 10 * time.Minute

// releaseTimeout bounds the unlock round trip. Unlock runs after the commit
// and must not depend on the caller's context still being alive.
const releaseTimeout = 5 * time.Second

// Backends lists the available lock backends.
type Backends struct {
	Redis redis.UniversalClient
	Pool  *pgxpool.Pool
	TTL   time.Duration
}

// New creates a locker using the best available backend.
// Redis is preferred, then PostgreSQL advisory locks, then an in-process
// lock that only protects a single instance.
func New(b Backends, logger *slog.Logger) core.EventLocker {
	if logger == nil {
		logger = slog.Default()
	}
	switch {
	case b.Redis != nil:
		logger.Info("import lock backend", "backend", "redis")
		return NewRedis(b.Redis, b.TTL, logger)
	case b.Pool != nil:
		logger.Info("import lock backend", "backend", "postgres")
		return NewPostgres(b.Pool, logger)
	default:
		logger.Warn("import lock backend is in-process only; run a single instance")
		return core.NewLocalLocker()
	}
}
