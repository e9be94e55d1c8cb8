package progress

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/pai-learn/internal/platform/cache"
)

const defaultCacheTTL = 10 * time.Minute

// CachedStore puts a Redis read-through cache in front of another Store.
// Cache failures are logged and fall through to the inner store.
type CachedStore struct {
	inner  Store
	cache  *cache.Cache
	client *redis.Client
	ttl    time.Duration
}

// NewCachedStore wraps inner with a cache. A zero ttl uses the default.
func NewCachedStore(inner Store, c *cache.Cache, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedStore{inner: inner, cache: c, client: c.Client, ttl: ttl}
}

func (s *CachedStore) cacheKey(learnerID string) string {
	return s.cache.Key("progress", learnerID)
}

func (s *CachedStore) FetchProgress(ctx context.Context, learnerID string) (Record, error) {
	data, err := s.client.Get(ctx, s.cacheKey(learnerID)).Bytes()
	switch {
	case err == nil:
		if r, err := decodeRecord(data); err == nil {
			return r, nil
		}
		slog.Warn("discarding undecodable cached progress", "learner_id", learnerID)
	case !errors.Is(err, redis.Nil):
		slog.Warn("progress cache read failed", "learner_id", learnerID, "error", err)
	}

	r, err := s.inner.FetchProgress(ctx, learnerID)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(r); err == nil {
		if err := s.client.Set(ctx, s.cacheKey(learnerID), encoded, s.ttl).Err(); err != nil {
			slog.Warn("progress cache write failed", "learner_id", learnerID, "error", err)
		}
	}
	return r, nil
}

// SaveProgress writes through to the inner store and then drops the cached
// copy; the inner store may merge, so the next read refetches.
func (s *CachedStore) SaveProgress(ctx context.Context, learnerID string, r Record) error {
	if err := s.inner.SaveProgress(ctx, learnerID, r); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.cacheKey(learnerID)).Err(); err != nil {
		slog.Warn("progress cache invalidation failed", "learner_id", learnerID, "error", err)
	}
	return nil
}
