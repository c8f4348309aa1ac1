package embcache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/AlejoJamC/airweave/internal/domain"
)

func TestEmbed_CacheMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 10,
		TotalTokens:  10,
	}}
	ce, ms := newTestCachedEmbedder(t, inner)

	var setKey string
	var setTTL time.Duration
	ms.setFn = func(_ context.Context, key string, _ []byte, ttl time.Duration) error {
		setKey, setTTL = key, ttl
		return nil
	}

	result, err := ce.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", result.Embedding)
	}
	if result.TotalTokens != 10 {
		t.Fatalf("expected TotalTokens=10, got %d", result.TotalTokens)
	}
	if !strings.HasPrefix(setKey, "test:emb_cache:small:") {
		t.Errorf("unexpected cache key %q", setKey)
	}
	if setTTL != time.Hour {
		t.Errorf("expected TTL 1h, got %s", setTTL)
	}
}

func TestEmbed_SharedHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	cached := vectorToCacheBytes([]float32{0.4, 0.5, 0.6})
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return cached, nil
	}

	result, err := ce.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.4 {
		t.Fatalf("expected cached vector, got: %v", result.Embedding)
	}
	if result.TotalTokens != 0 {
		t.Fatalf("expected TotalTokens=0 on cache hit, got %d", result.TotalTokens)
	}
	if inner.calls.Load() != 0 {
		t.Errorf("inner called %d times on cache hit", inner.calls.Load())
	}
}

func TestEmbed_LocalHitSkipsStore(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	if _, err := ce.Embed(context.Background(), "q"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		t.Fatal("shared tier should not be consulted on local hit")
		return nil, nil
	}
	res, err := ce.Embed(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Embedding[1] != 2 {
		t.Errorf("unexpected vector %v", res.Embedding)
	}
	if inner.calls.Load() != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.calls.Load())
	}
}

func TestEmbed_ReturnsIndependentCopies(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2}}}
	ce, _ := newTestCachedEmbedder(t, inner)

	first, _ := ce.Embed(context.Background(), "q")
	first.Embedding[0] = 99

	second, _ := ce.Embed(context.Background(), "q")
	if second.Embedding[0] != 1 {
		t.Errorf("cached vector was aliased: %v", second.Embedding)
	}
}

func TestEmbed_ModelIsPartOfKey(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	small := New(inner, "small", nil, Options{}, zap.NewNop())
	large := New(inner, "large", nil, Options{}, zap.NewNop())

	if small.cacheKey("q") == large.cacheKey("q") {
		t.Error("expected different keys per model")
	}
	if small.cacheKey("q") != small.cacheKey("q") {
		t.Error("expected deterministic keys")
	}
}

func TestEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("provider down")}
	ce, ms := newTestCachedEmbedder(t, inner)

	ms.setFn = func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
		t.Fatal("error results must not be cached")
		return nil
	}

	_, err := ce.Embed(context.Background(), "test text")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "provider down") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestEmbed_StoreErrorsDegradeToMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, errors.New("connection refused")
	}
	ms.setFn = func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
		return errors.New("connection refused")
	}

	if _, err := ce.Embed(context.Background(), "q"); err != nil {
		t.Fatalf("store failures should not fail embedding: %v", err)
	}
}

func TestEmbed_SingleFlight(t *testing.T) {
	const n = 16
	inner := &mockEmbedder{
		result:  domain.EmbeddingResult{Embedding: []float32{0.5}},
		release: make(chan struct{}),
	}
	ce, _ := newTestCachedEmbedder(t, inner)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ce.Embed(context.Background(), "contract renewals")
			errs <- err
		}()
	}

	// Let every goroutine reach the flight before the backend answers.
	time.Sleep(50 * time.Millisecond)
	close(inner.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := inner.calls.Load(); got != 1 {
		t.Errorf("expected exactly 1 backend call, got %d", got)
	}
}

func TestEmbed_CancelledCallerDoesNotFailJoined(t *testing.T) {
	inner := &mockEmbedder{
		result:  domain.EmbeddingResult{Embedding: []float32{0.5}},
		release: make(chan struct{}),
	}
	ce, _ := newTestCachedEmbedder(t, inner)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := ce.Embed(leaderCtx, "q")
		leaderErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	joinedErr := make(chan error, 1)
	go func() {
		_, err := ce.Embed(context.Background(), "q")
		joinedErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Errorf("expected leader to observe cancellation, got %v", err)
	}

	close(inner.release)
	if err := <-joinedErr; err != nil {
		t.Errorf("joined caller failed: %v", err)
	}
}

func TestEmbed_CacheMetrics(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce := New(inner, "small", nil, Options{CacheTotal: counter}, zap.NewNop())

	_, _ = ce.Embed(context.Background(), "q")
	_, _ = ce.Embed(context.Background(), "q")

	if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 1 {
		t.Errorf("miss = %f, want 1", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("local_hit")); got != 1 {
		t.Errorf("local_hit = %f, want 1", got)
	}
}

func TestBytesToVector_Invalid(t *testing.T) {
	if _, err := bytesToVector([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated data")
	}
}
