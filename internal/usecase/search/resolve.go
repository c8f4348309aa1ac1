package search

import (
	"context"
	"fmt"

	"github.com/AlejoJamC/airweave/internal/domain"
)

type resolveCollections struct {
	resolver CollectionResolver
}

// NewResolveCollections resolves the target collections through the provisioning registry.
func NewResolveCollections(resolver CollectionResolver) Operation {
	return &resolveCollections{resolver: resolver}
}

func (o *resolveCollections) Name() string        { return StageResolveCollections }
func (o *resolveCollections) DependsOn() []string { return nil }
func (o *resolveCollections) Required() bool      { return true }
func (o *resolveCollections) Skip(_ *State) bool  { return false }

func (o *resolveCollections) Run(ctx context.Context, st *State) (Apply, error) {
	ids := st.Query.Collections()
	collections := make([]domain.Collection, 0, len(ids))
	for _, id := range ids {
		c, err := o.resolver.Resolve(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve collection: %w", err)
		}
		collections = append(collections, c)
	}
	return func(st *State) { st.Collections = collections }, nil
}
