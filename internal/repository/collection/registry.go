package collection

import (
	"context"
	"fmt"
	"sort"

	"github.com/AlejoJamC/airweave/internal/domain"
)

// Registry is the read-only collection provisioning table loaded at startup.
type Registry struct {
	byID map[string]domain.Collection
}

// NewRegistry indexes collections by id. Duplicate or empty ids are rejected.
func NewRegistry(collections []domain.Collection) (*Registry, error) {
	byID := make(map[string]domain.Collection, len(collections))
	for i, c := range collections {
		if c.ID == "" {
			return nil, fmt.Errorf("collection %d: empty id", i)
		}
		if _, dup := byID[c.ID]; dup {
			return nil, fmt.Errorf("collection %q: duplicate id", c.ID)
		}
		c.Sources = append([]string(nil), c.Sources...)
		byID[c.ID] = c
	}
	return &Registry{byID: byID}, nil
}

// Resolve returns the provisioning record of a collection.
func (r *Registry) Resolve(_ context.Context, id string) (domain.Collection, error) {
	c, ok := r.byID[id]
	if !ok {
		return domain.Collection{}, fmt.Errorf("collection %q: %w", id, domain.ErrCollectionNotFound)
	}
	return c, nil
}

// List returns every collection ordered by id.
func (r *Registry) List(_ context.Context) []domain.Collection {
	out := make([]domain.Collection, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
