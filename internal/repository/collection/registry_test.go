package collection

import (
	"context"
	"errors"
	"testing"

	"github.com/AlejoJamC/airweave/internal/domain"
)

func testCollections() []domain.Collection {
	return []domain.Collection{
		{ID: "tickets", Backend: domain.BackendPGVector, Index: "tickets", EmbeddingModel: "large"},
		{ID: "docs", Backend: domain.BackendRedis, Index: "docs:idx", EmbeddingModel: "small", Sources: []string{"slack"}},
	}
}

func TestRegistry_Resolve(t *testing.T) {
	reg, err := NewRegistry(testCollections())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, err := reg.Resolve(context.Background(), "docs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.EmbeddingModel != "small" || !c.HasSource("slack") {
		t.Errorf("unexpected collection %+v", c)
	}
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	reg, _ := NewRegistry(testCollections())

	_, err := reg.Resolve(context.Background(), "wiki")
	if !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", err)
	}
}

func TestRegistry_Invalid(t *testing.T) {
	if _, err := NewRegistry([]domain.Collection{{ID: ""}}); err == nil {
		t.Error("expected error for empty id")
	}
	if _, err := NewRegistry([]domain.Collection{{ID: "a"}, {ID: "a"}}); err == nil {
		t.Error("expected error for duplicate id")
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	reg, _ := NewRegistry(testCollections())

	list := reg.List(context.Background())
	if len(list) != 2 || list[0].ID != "docs" || list[1].ID != "tickets" {
		t.Errorf("unexpected order: %+v", list)
	}
}

func TestRegistry_CopiesSources(t *testing.T) {
	cols := testCollections()
	reg, _ := NewRegistry(cols)
	cols[1].Sources[0] = "github"

	c, _ := reg.Resolve(context.Background(), "docs")
	if !c.HasSource("slack") {
		t.Error("registry should not alias caller slices")
	}
}
