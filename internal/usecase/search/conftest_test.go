package search

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AlejoJamC/airweave/internal/domain"
	"github.com/AlejoJamC/airweave/internal/domain/search/filter"
	"github.com/AlejoJamC/airweave/internal/domain/search/query"
	"github.com/AlejoJamC/airweave/internal/domain/search/result"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// mockResolver implements CollectionResolver over a fixed table.
type mockResolver struct {
	collections map[string]domain.Collection
}

func (m *mockResolver) Resolve(_ context.Context, id string) (domain.Collection, error) {
	c, ok := m.collections[id]
	if !ok {
		return domain.Collection{}, fmt.Errorf("collection %q: %w", id, domain.ErrCollectionNotFound)
	}
	return c, nil
}

func newResolver(cols ...domain.Collection) *mockResolver {
	m := &mockResolver{collections: make(map[string]domain.Collection, len(cols))}
	for _, c := range cols {
		m.collections[c.ID] = c
	}
	return m
}

func testColl(id, model string) domain.Collection {
	return domain.Collection{ID: id, Backend: domain.BackendRedis, Index: id + ":idx", EmbeddingModel: model}
}

// mockRetriever implements Retriever.
type mockRetriever struct {
	searchFn     func(ctx context.Context, coll domain.Collection, vector []float32, filters filter.Expression, k int) ([]result.SearchResult, error)
	searchTextFn func(ctx context.Context, coll domain.Collection, text string, filters filter.Expression, k int) ([]result.SearchResult, error)
	calls        atomic.Int32
	textCalls    atomic.Int32
}

func (m *mockRetriever) Search(
	ctx context.Context, coll domain.Collection,
	vector []float32, filters filter.Expression, k int,
) ([]result.SearchResult, error) {
	m.calls.Add(1)
	if m.searchFn != nil {
		return m.searchFn(ctx, coll, vector, filters, k)
	}
	return nil, nil
}

func (m *mockRetriever) SearchText(
	ctx context.Context, coll domain.Collection,
	text string, filters filter.Expression, k int,
) ([]result.SearchResult, error) {
	m.textCalls.Add(1)
	if m.searchTextFn != nil {
		return m.searchTextFn(ctx, coll, text, filters, k)
	}
	return nil, nil
}

// mockAuthorizer implements Authorizer.
type mockAuthorizer struct {
	canReadFn func(ctx context.Context, p domain.Principal, res domain.Resource) (bool, error)
}

func (m *mockAuthorizer) CanRead(ctx context.Context, p domain.Principal, res domain.Resource) (bool, error) {
	if m.canReadFn != nil {
		return m.canReadFn(ctx, p, res)
	}
	return true, nil
}

// mockLLM implements domain.LLM.
type mockLLM struct {
	mu       sync.Mutex
	requests []domain.CompletionRequest
	fn       func(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error)
}

func (m *mockLLM) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.fn != nil {
		return m.fn(ctx, req)
	}
	return domain.Completion{}, domain.ErrLLMUnavailable
}

func (m *mockLLM) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func llmReturning(text string) *mockLLM {
	return &mockLLM{fn: func(context.Context, domain.CompletionRequest) (domain.Completion, error) {
		return domain.Completion{Text: text, Model: "judge-1"}, nil
	}}
}

// mockEmbedder implements domain.Embedder with a deterministic vector per text.
type mockEmbedder struct {
	fn    func(ctx context.Context, text string) (domain.EmbeddingResult, error)
	calls atomic.Int32
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls.Add(1)
	if m.fn != nil {
		return m.fn(ctx, text)
	}
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text)), 1}}, nil
}

// mockPublisher implements EventPublisher.
type mockPublisher struct {
	mu     sync.Mutex
	events []CompletedEvent
	err    error
	block  chan struct{} // when set, publishing waits for it to close
}

func (m *mockPublisher) PublishSearchCompleted(ctx context.Context, e CompletedEvent) error {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return m.err
}

func (m *mockPublisher) published() []CompletedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletedEvent(nil), m.events...)
}

func newTestQuery(t *testing.T, mutate ...func(*query.Params)) query.Query {
	t.Helper()
	p := query.Params{
		ID:          "q-1",
		Text:        "contract renewals next quarter",
		Principal:   domain.Principal{ID: "alice", Tenant: "acme"},
		Collections: []string{"docs"},
		Options:     query.Options{TopK: 10, MaxExpansions: 1},
	}
	for _, fn := range mutate {
		fn(&p)
	}
	q, err := query.New(p)
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	return q
}

func sr(id, coll string, score float64) result.SearchResult {
	return result.New(id, coll, score, "content of "+id, map[string]string{}, nil, time.Time{})
}

func srAt(id, coll string, score float64, ts time.Time) result.SearchResult {
	return result.New(id, coll, score, "content of "+id, map[string]string{}, nil, ts)
}

func srTenant(id, coll, tenant string, score float64) result.SearchResult {
	return result.New(id, coll, score, "content of "+id, map[string]string{TenantField: tenant}, nil, time.Time{})
}

func rankedOf(results ...result.SearchResult) result.RankedSet {
	items := make([]result.ScoredResult, len(results))
	for i, r := range results {
		items[i] = result.NewScored(r, StageFederatedSearch, r.RawScore())
	}
	return result.NewRankedSet(items)
}

func assertNonIncreasing(t *testing.T, set result.RankedSet) {
	t.Helper()
	items := set.Items()
	for i := 1; i < len(items); i++ {
		if items[i].Composite() > items[i-1].Composite() {
			t.Fatalf("scores increase at %d: %f > %f", i, items[i].Composite(), items[i-1].Composite())
		}
	}
}

func assertNoDuplicates(t *testing.T, set result.RankedSet) {
	t.Helper()
	seen := make(map[string]bool)
	for _, id := range set.IDs() {
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func runOp(t *testing.T, op Operation, st *State) error {
	t.Helper()
	apply, err := op.Run(context.Background(), st)
	if err != nil {
		return err
	}
	if apply != nil {
		apply(st)
	}
	return nil
}
