package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
)

// VectorCache stores query embeddings. Misses and backend errors both
// report ok=false.
type VectorCache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, vec []float32)
}

type memoryCache struct {
	mu    sync.Mutex
	max   int
	order []string
	items map[string][]float32
}

// NewMemoryCache keeps up to max vectors, evicting the oldest insert first.
func NewMemoryCache(max int) VectorCache {
	if max <= 0 {
		max = 512
	}
	return &memoryCache{max: max, items: map[string][]float32{}}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *memoryCache) Set(_ context.Context, key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[key]; !exists {
		c.order = append(c.order, key)
	}
	c.items[key] = vec
	for len(c.order) > c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
}

type redisCache struct {
	rdb    *goredis.Client
	ttl    time.Duration
	prefix string
	log    *logger.Logger
}

func NewRedisCache(rdb *goredis.Client, ttl time.Duration, log *logger.Logger) VectorCache {
	if log == nil {
		log = logger.Nop()
	}
	return &redisCache{rdb: rdb, ttl: ttl, prefix: "ss:embed:", log: log.With("component", "EmbeddingCache")}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]float32, bool) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("embedding cache get failed", "error", err)
		}
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil || len(vec) == 0 {
		return nil, false
	}
	return vec, true
}

func (c *redisCache) Set(ctx context.Context, key string, vec []float32) {
	raw, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		c.log.Warn("embedding cache set failed", "error", err)
	}
}

// CachedEmbedder consults cache before calling the wrapped Embedder and
// collapses concurrent requests for the same text into one call.
type CachedEmbedder struct {
	inner     Embedder
	cache     VectorCache
	namespace string
	group     singleflight.Group
}

// NewCachedEmbedder scopes keys by namespace, normally the embedding model, so
// switching models never serves stale vectors.
func NewCachedEmbedder(inner Embedder, cache VectorCache, namespace string) *CachedEmbedder {
	if cache == nil {
		cache = NewMemoryCache(0)
	}
	return &CachedEmbedder{inner: inner, cache: cache, namespace: namespace}
}

func (e *CachedEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if e == nil || e.inner == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	out := make([][]float32, len(inputs))
	for i, text := range inputs {
		vec, err := e.embedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *CachedEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	key := e.key(text)
	if vec, ok := e.cache.Get(ctx, key); ok {
		return vec, nil
	}
	v, err, _ := e.group.Do(key, func() (interface{}, error) {
		vecs, err := e.inner.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vecs) == 0 || len(vecs[0]) == 0 {
			return nil, fmt.Errorf("empty embedding")
		}
		e.cache.Set(ctx, key, vecs[0])
		return vecs[0], nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

func (e *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(e.namespace + "\x00" + strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}
