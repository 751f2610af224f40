package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/ragpatterns/internal/observability"
)

// CachedEmbedder wraps an Embedder with a Redis cache keyed on
// sha256(text) -> vector, adapted from the teacher's redis_cache.go
// get/set/build-key pattern (internal/infrastructure/cache) but narrowed
// to the single (text -> vector) shape this domain needs.
type CachedEmbedder struct {
	next    Embedder
	client  *redis.Client
	ttl     time.Duration
	prefix  string
	metrics *observability.Metrics
}

// NewCachedEmbedder wraps next with a Redis-backed cache. addr/password/db
// configure the Redis connection; ttl is the cache entry lifetime. metrics
// may be nil, in which case cache hit/miss counters are not recorded.
func NewCachedEmbedder(next Embedder, addr, password string, db int, ttl time.Duration, metrics *observability.Metrics) *CachedEmbedder {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	return &CachedEmbedder{next: next, client: client, ttl: ttl, prefix: "embed:", metrics: metrics}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.prefix + hex.EncodeToString(sum[:])
}

// Embed looks up each text's vector in Redis; misses are batched into one
// call to the wrapped Embedder and written back to the cache.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		key := c.cacheKey(text)
		val, err := c.client.Get(ctx, key).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				log.Warn().Err(err).Msg("embedding cache get failed, treating as miss")
			}
			c.recordMiss()
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, text)
			continue
		}

		var vec []float32
		if err := json.Unmarshal([]byte(val), &vec); err != nil {
			c.recordMiss()
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, text)
			continue
		}
		c.recordHit()
		results[i] = vec
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	fresh, err := c.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: upstream embed failed: %w", err)
	}

	for j, idx := range missIdx {
		results[idx] = fresh[j]

		data, err := json.Marshal(fresh[j])
		if err != nil {
			continue
		}
		if err := c.client.Set(ctx, c.cacheKey(missTexts[j]), data, c.ttl).Err(); err != nil {
			log.Warn().Err(err).Msg("embedding cache set failed")
		}
	}

	return results, nil
}

// Close releases the Redis client.
func (c *CachedEmbedder) Close() error {
	return c.client.Close()
}

func (c *CachedEmbedder) recordHit() {
	if c.metrics != nil {
		c.metrics.EmbedCacheHits.Inc()
	}
}

func (c *CachedEmbedder) recordMiss() {
	if c.metrics != nil {
		c.metrics.EmbedCacheMisses.Inc()
	}
}
