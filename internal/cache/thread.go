package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"nerdtalk/internal/middleware"
	"nerdtalk/internal/models"
	"nerdtalk/internal/observability"

	"github.com/redis/go-redis/v9"
)

const ThreadKeyPrefix = "nerdtalk:thread:%s"

// DefaultThreadTTL applies when no TTL is configured.
const DefaultThreadTTL = 60 * time.Second

func ThreadKey(postID string) string {
	return fmt.Sprintf(ThreadKeyPrefix, postID)
}

// Aside reads key into dest, or calls fetch to fill dest and stores the
// result for ttl. Redis failures fall through to fetch.
func Aside(ctx context.Context, rdb redis.Cmdable, key string, dest interface{}, ttl time.Duration, fetch func() error) (bool, error) {
	if rdb == nil {
		return false, fetch()
	}

	raw, err := rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
			return true, nil
		}
		middleware.Logger.WarnContext(ctx, "Discarding undecodable cache entry", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		middleware.Logger.WarnContext(ctx, "Cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	if err := fetch(); err != nil {
		return false, err
	}

	payload, err := json.Marshal(dest)
	if err != nil {
		return false, nil
	}
	if err := rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "Cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return false, nil
}

// ThreadCache caches materialized thread views by root id. A nil client
// disables caching.
type ThreadCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewThreadCache(rdb redis.Cmdable, ttl time.Duration) *ThreadCache {
	if ttl <= 0 {
		ttl = DefaultThreadTTL
	}
	if c, ok := rdb.(*redis.Client); ok && c == nil {
		rdb = nil
	}
	return &ThreadCache{rdb: rdb, ttl: ttl}
}

// Enabled reports whether a Redis client backs the cache.
func (c *ThreadCache) Enabled() bool {
	return c != nil && c.rdb != nil
}

// Get returns the cached view for rootID, or builds it with load.
func (c *ThreadCache) Get(ctx context.Context, rootID string, load func(context.Context) (*models.ThreadView, error)) (*models.ThreadView, error) {
	if !c.Enabled() {
		return load(ctx)
	}
	var view models.ThreadView
	hit, err := Aside(ctx, c.rdb, ThreadKey(rootID), &view, c.ttl, func() error {
		v, err := load(ctx)
		if err != nil {
			return err
		}
		view = *v
		return nil
	})
	if hit {
		observability.ThreadCacheLookups.WithLabelValues("hit").Inc()
	} else {
		observability.ThreadCacheLookups.WithLabelValues("miss").Inc()
	}
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// Invalidate drops the cached views of the given roots.
func (c *ThreadCache) Invalidate(ctx context.Context, rootIDs ...string) {
	if !c.Enabled() || len(rootIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(rootIDs))
	for _, id := range rootIDs {
		if id != "" {
			keys = append(keys, ThreadKey(id))
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "Cache invalidation failed",
			slog.Int("keys", len(keys)), slog.String("error", err.Error()))
	}
}
