package entries

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fairwaygames/clubhouse-backend/pkg/logger"
)

const (
	joinedCacheScope = "joined-contests"

	defaultCacheTTL = 5 * time.Minute
)

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CacheKey(scope, id string) string
}

// joinedCache is a read-through cache over each user's joined contest ids.
// A miss falls through to the repository and refills; writes invalidate.
// Cache failures degrade to the database, they never fail the request.
type joinedCache struct {
	store cacheStore
	logg  *logger.Logger
	ttl   time.Duration
}

func newJoinedCache(store cacheStore, logg *logger.Logger, ttl time.Duration) *joinedCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &joinedCache{store: store, logg: logg, ttl: ttl}
}

func (c *joinedCache) get(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, bool) {
	if c.store == nil {
		return nil, false
	}
	raw, err := c.store.Get(ctx, c.key(userID))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logg.Warn(ctx, "joined-contests cache read failed")
		}
		return nil, false
	}
	var ids []uuid.UUID
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		c.logg.Warn(ctx, "joined-contests cache entry corrupt; discarding")
		c.invalidate(ctx, userID)
		return nil, false
	}
	return ids, true
}

func (c *joinedCache) put(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) {
	if c.store == nil {
		return
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	payload, err := json.Marshal(ids)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, c.key(userID), string(payload), c.ttl); err != nil {
		c.logg.Warn(ctx, "joined-contests cache write failed")
	}
}

func (c *joinedCache) invalidate(ctx context.Context, userIDs ...uuid.UUID) {
	if c.store == nil || len(userIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, userID := range userIDs {
		keys = append(keys, c.key(userID))
	}
	if err := c.store.Del(ctx, keys...); err != nil {
		c.logg.Warn(ctx, "joined-contests cache invalidation failed")
	}
}

func (c *joinedCache) key(userID uuid.UUID) string {
	return c.store.CacheKey(joinedCacheScope, userID.String())
}
