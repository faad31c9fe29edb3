package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"concierge/internal/core"
)

// Redis stores responses in a shared Redis instance so multiple router
// replicas see each other's entries. All failures degrade to a miss.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Store = (*Redis)(nil)

// NewRedis creates a Redis-backed store. The caller owns the client's
// lifecycle.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) (core.ResponseEnvelope, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "Redis cache read failed", "key", key, "error", err)
		}
		return core.ResponseEnvelope{}, false
	}

	var env core.ResponseEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		slog.WarnContext(ctx, "Discarding undecodable cache entry", "key", key, "error", err)
		return core.ResponseEnvelope{}, false
	}
	return env, true
}

func (r *Redis) Set(ctx context.Context, key string, env core.ResponseEnvelope) {
	raw, err := json.Marshal(env)
	if err != nil {
		slog.WarnContext(ctx, "Skipping unmarshalable cache entry", "key", key, "error", err)
		return
	}
	if err := r.client.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "Redis cache write failed", "key", key, "error", err)
	}
}

// Ping verifies the Redis connection at startup.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
