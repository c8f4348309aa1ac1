package search

import (
	"context"

	"github.com/AlejoJamC/airweave/internal/domain"
	"github.com/AlejoJamC/airweave/internal/domain/search/filter"
	"github.com/AlejoJamC/airweave/internal/domain/search/result"
)

// CollectionResolver resolves collection provisioning records.
type CollectionResolver interface {
	Resolve(ctx context.Context, id string) (domain.Collection, error)
}

// Retriever runs nearest-neighbour and keyword search against one collection.
// Results are ordered by backend-native score descending, at most k long.
type Retriever interface {
	Search(
		ctx context.Context, coll domain.Collection,
		vector []float32, filters filter.Expression, k int,
	) ([]result.SearchResult, error)
	SearchText(
		ctx context.Context, coll domain.Collection,
		text string, filters filter.Expression, k int,
	) ([]result.SearchResult, error)
}

// Authorizer decides read access for a principal.
type Authorizer interface {
	CanRead(ctx context.Context, principal domain.Principal, res domain.Resource) (bool, error)
}

// EventPublisher emits search analytics events.
type EventPublisher interface {
	PublishSearchCompleted(ctx context.Context, event CompletedEvent) error
}
