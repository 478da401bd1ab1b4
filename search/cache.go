package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/finmesh/logging"
)

// Cache stores encoded search results.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cached decorates a Provider with a result cache. Cache failures are
// logged and fall through to the wrapped provider.
type Cached struct {
	next   Provider
	cache  Cache
	ttl    time.Duration
	logger logging.Logger
}

// NewCached wraps next with cache using the given entry ttl.
func NewCached(next Provider, cache Cache, ttl time.Duration, logger logging.Logger) *Cached {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Cached{next: next, cache: cache, ttl: ttl, logger: logger}
}

// Search implements Provider.
func (c *Cached) Search(ctx context.Context, q Query) ([]Result, error) {
	key := CacheKey(q)

	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("search.cache.get_failed", "key", key, "error", err.Error())
	}

	if ok {
		var results []Result
		if err := json.Unmarshal(raw, &results); err == nil {
			c.logger.Debug("search.cache.hit", "key", key, "results", len(results))
			return results, nil
		}
		c.logger.Warn("search.cache.corrupt", "key", key)
	}

	results, err := c.next.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(results); err == nil {
		if err := c.cache.Set(ctx, key, encoded, c.ttl); err != nil {
			c.logger.Warn("search.cache.set_failed", "key", key, "error", err.Error())
		}
	}

	return results, nil
}

// CacheKey derives a stable key from the normalized query text, limit and
// language.
func CacheKey(q Query) string {
	norm := strings.Join(strings.Fields(strings.ToLower(q.Text)), " ")
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", norm, q.Limit, q.Lang)))
	return "search:" + hex.EncodeToString(sum[:])
}
