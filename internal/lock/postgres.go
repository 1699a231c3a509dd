package lock

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

// Postgres locks events with session-level advisory locks. Each held lock
// pins one pool connection until unlock; if the process dies the server
// drops the connection and the lock with it.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{pool: pool, logger: logger}
}

// advisoryKey derives a stable lock id from the event id.
func advisoryKey(eventID uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write([]byte("import:"))
	h.Write(eventID[:])
	return int64(h.Sum64())
}

// Lock acquires the event, or fails with core.ErrImportInProgress.
func (l *Postgres) Lock(ctx context.Context, eventID uuid.UUID) (func(), error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock connection: %w", err)
	}

	key := advisoryKey(eventID)
	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire import lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, core.ErrImportInProgress
	}

	return onceFunc(func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", key); err != nil {
			// A connection that still holds the lock must not go back to the pool.
			l.logger.Warn("release import lock failed", "event_id", eventID.String(), "error", err)
			_ = conn.Conn().Close(ctx)
		}
		conn.Release()
	}), nil
}

func onceFunc(f func()) func() {
	var once sync.Once
	return func() { once.Do(f) }
}
