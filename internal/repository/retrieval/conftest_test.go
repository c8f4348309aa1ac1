package retrieval

import (
	"context"
	"testing"

	"github.com/AlejoJamC/airweave/internal/db"
	"github.com/AlejoJamC/airweave/internal/domain"
	"github.com/AlejoJamC/airweave/internal/domain/search/filter"
)

// mockSearcher implements the consumer interface for tests.
type mockSearcher struct {
	searchKNNFn  func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchBM25Fn func(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

func (m *mockSearcher) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockSearcher) SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if m.searchBM25Fn != nil {
		return m.searchBM25Fn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockSearcher, *mockSearcher) {
	t.Helper()
	rs, ps := &mockSearcher{}, &mockSearcher{}
	repo := New("airweave:").
		WithBackend(domain.BackendRedis, rs).
		WithBackend(domain.BackendPGVector, ps)
	return repo, rs, ps
}

func testCollection(backend domain.Backend) domain.Collection {
	return domain.Collection{
		ID:             "docs",
		Backend:        backend,
		Index:          "docs:idx",
		Dimensions:     4,
		EmbeddingModel: "small",
	}
}

func testVector() []float32 {
	return []float32{0.1, 0.1, 0.1, 0.1}
}

func mustMatch(t *testing.T, key, value string) filter.Condition {
	t.Helper()
	c, err := filter.NewMatch(key, value)
	if err != nil {
		t.Fatalf("NewMatch: %v", err)
	}
	return c
}
