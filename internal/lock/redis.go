package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was taken by another commit is left alone.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Redis locks events with SET NX and a per-acquisition random token.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedis(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, ttl: ttl, logger: logger}
}

func redisKey(eventID uuid.UUID) string {
	return "lock:import:" + eventID.String()
}

// Lock acquires the event, or fails with core.ErrImportInProgress.
func (l *Redis) Lock(ctx context.Context, eventID uuid.UUID) (func(), error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	key := redisKey(eventID)

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire import lock %s: %w", key, err)
	}
	if !ok {
		return nil, core.ErrImportInProgress
	}

	return onceFunc(func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("release import lock failed", "key", key, "error", err)
		}
	}), nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
