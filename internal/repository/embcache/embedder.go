package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/AlejoJamC/airweave/internal/db"
	"github.com/AlejoJamC/airweave/internal/domain"
)

const defaultFlightTimeout = 30 * time.Second

// store is the consumer interface for the shared embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options configures cache tiers.
type Options struct {
	KeyPrefix     string
	TTL           time.Duration // shared tier
	LocalTTL      time.Duration // in-process tier
	FlightTimeout time.Duration
	// CacheTotal is a counter vec with label "result" ("local_hit", "shared_hit", "miss").
	CacheTotal *prometheus.CounterVec
}

// CachedEmbedder caches query embeddings per (model, text) in an in-process
// tier and a shared KV tier. Concurrent identical requests join a single
// in-flight computation.
type CachedEmbedder struct {
	inner         domain.Embedder
	model         string
	store         store
	local         *gocache.Cache
	group         singleflight.Group
	keyPrefix     string
	ttl           time.Duration
	flightTimeout time.Duration
	cacheTotal    *prometheus.CounterVec
	logger        *zap.Logger
}

// New creates a caching decorator for one embedding model. s may be nil to
// disable the shared tier.
func New(inner domain.Embedder, model string, s store, opts Options, logger *zap.Logger) *CachedEmbedder {
	if opts.LocalTTL <= 0 {
		opts.LocalTTL = 5 * time.Minute
	}
	if opts.FlightTimeout <= 0 {
		opts.FlightTimeout = defaultFlightTimeout
	}
	return &CachedEmbedder{
		inner:         inner,
		model:         model,
		store:         s,
		local:         gocache.New(opts.LocalTTL, 2*opts.LocalTTL),
		keyPrefix:     opts.KeyPrefix + "emb_cache:",
		ttl:           opts.TTL,
		flightTimeout: opts.FlightTimeout,
		cacheTotal:    opts.CacheTotal,
		logger:        logger,
	}
}

// Embed returns a cached embedding or computes it once for all concurrent callers.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)

	if v, ok := c.local.Get(key); ok {
		c.incCache("local_hit")
		return domain.EmbeddingResult{Embedding: cloneVector(v.([]float32))}, nil
	}

	// Detached from the caller: a cancelled leader must not fail joined callers.
	ch := c.group.DoChan(key, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.flightTimeout)
		defer cancel()
		return c.load(flightCtx, key, text)
	})

	select {
	case <-ctx.Done():
		return domain.EmbeddingResult{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return domain.EmbeddingResult{}, r.Err
		}
		res := r.Val.(domain.EmbeddingResult)
		res.Embedding = cloneVector(res.Embedding)
		return res, nil
	}
}

func (c *CachedEmbedder) load(ctx context.Context, key, text string) (domain.EmbeddingResult, error) {
	if vec, ok := c.getFromStore(ctx, key); ok {
		c.incCache("shared_hit")
		c.local.SetDefault(key, vec)
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	c.incCache("miss")

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.local.SetDefault(key, result.Embedding)
	c.putToStore(ctx, key, result.Embedding)
	return result, nil
}

func (c *CachedEmbedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return c.keyPrefix + c.model + ":" + hex.EncodeToString(h[:])
}

func (c *CachedEmbedder) getFromStore(ctx context.Context, key string) ([]float32, bool) {
	if c.store == nil {
		return nil, false
	}
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	vec, err := bytesToVector(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	return vec, true
}

func (c *CachedEmbedder) putToStore(ctx context.Context, key string, vec []float32) {
	if c.store == nil {
		return
	}
	if err := c.store.SetWithTTL(ctx, key, vectorToCacheBytes(vec), c.ttl); err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

func cloneVector(v []float32) []float32 {
	return append([]float32(nil), v...)
}

func vectorToCacheBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
