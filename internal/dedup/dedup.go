// Package dedup drops Telegram webhook updates that were already handled.
// Telegram redelivers an update_id until it gets a 2xx, so the webhook marks
// each id before running the command.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ──────────────────────────────────────────────────────────────────────────────
// Redis
// ──────────────────────────────────────────────────────────────────────────────

const keyPrefix = "polywatch:tg_update:"

// RedisGuard marks update ids with SET NX and a TTL, so replicas share the
// same view.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisGuard connects to redisURL and pings it.
func NewRedisGuard(ctx context.Context, redisURL, password string, ttl time.Duration, logger *slog.Logger) (*RedisGuard, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if password != "" {
		opt.Password = password
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisGuard{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "update_guard"),
	}, nil
}

// FirstSeen returns true the first time updateID is offered within the TTL.
func (g *RedisGuard) FirstSeen(ctx context.Context, updateID int64) (bool, error) {
	key := keyPrefix + strconv.FormatInt(updateID, 10)
	ok, err := g.client.SetNX(ctx, key, "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SETNX failed: %w", err)
	}
	if !ok {
		g.logger.Debug("update_replayed", "update_id", updateID)
	}
	return ok, nil
}

// Close releases the connection pool.
func (g *RedisGuard) Close() error {
	return g.client.Close()
}

// ──────────────────────────────────────────────────────────────────────────────
// In-process
// ──────────────────────────────────────────────────────────────────────────────

// MemoryGuard is the single-process fallback used when no Redis is
// configured.
type MemoryGuard struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[int64]time.Time
	now  func() time.Time
}

// NewMemoryGuard creates an in-process guard.
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	return &MemoryGuard{ttl: ttl, seen: make(map[int64]time.Time), now: time.Now}
}

// FirstSeen returns true the first time updateID is offered within the TTL.
func (g *MemoryGuard) FirstSeen(_ context.Context, updateID int64) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for id, exp := range g.seen {
		if now.After(exp) {
			delete(g.seen, id)
		}
	}
	if _, ok := g.seen[updateID]; ok {
		return false, nil
	}
	g.seen[updateID] = now.Add(g.ttl)
	return true, nil
}
