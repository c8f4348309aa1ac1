package search

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/AlejoJamC/airweave/internal/domain"
	"github.com/AlejoJamC/airweave/internal/domain/search/query"
)

type embedQuery struct {
	embedders map[string]domain.Embedder
}

// NewEmbedQuery embeds every query variant once per distinct collection model.
// embedders maps a logical model name to its (cached) embedder.
func NewEmbedQuery(embedders map[string]domain.Embedder) Operation {
	return &embedQuery{embedders: embedders}
}

func (o *embedQuery) Name() string { return StageEmbedQuery }

func (o *embedQuery) DependsOn() []string {
	return []string{StageResolveCollections, StageQueryExpansion}
}

func (o *embedQuery) Required() bool { return true }

// Skip holds for keyword-only retrieval, which needs no vectors.
func (o *embedQuery) Skip(st *State) bool {
	return !st.Query.Options().Strategy.UsesVectors()
}

// Run fails when the original text cannot be embedded for some model.
// Failed alternatives are dropped and reported as degradations.
func (o *embedQuery) Run(ctx context.Context, st *State) (Apply, error) {
	original := st.Expanded.Original()
	variants := st.Expanded.Variants()
	models := st.models()

	type job struct {
		variant, model string
	}
	jobs := make([]job, 0, len(variants)*len(models))
	for _, m := range models {
		for _, v := range variants {
			jobs = append(jobs, job{variant: v, model: m})
		}
	}

	var (
		mu         sync.Mutex
		embeddings = make([]query.Embedding, len(jobs))
		ok         = make([]bool, len(jobs))
		dropped    []Degradation
	)

	g, gctx := errgroup.WithContext(ctx)
	for i, j := range jobs {
		g.Go(func() error {
			vec, err := o.embed(gctx, j.variant, j.model)
			if err == nil {
				embeddings[i] = query.NewEmbedding(j.variant, j.model, vec)
				ok[i] = true
				return nil
			}
			if j.variant == original {
				return err
			}
			mu.Lock()
			dropped = append(dropped, Degradation{Stage: StageEmbedQuery, Target: j.variant, Reason: err.Error()})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // *domain.EmbeddingError
	}

	out := make([]query.Embedding, 0, len(jobs))
	for i := range jobs {
		if ok[i] {
			out = append(out, embeddings[i])
		}
	}

	return func(st *State) {
		st.Embeddings = out
		st.Degraded = append(st.Degraded, dropped...)
	}, nil
}

func (o *embedQuery) embed(ctx context.Context, text, model string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &domain.EmbeddingError{Model: model, Err: fmt.Errorf("%w: empty text", domain.ErrInvalidQuery)}
	}
	e, ok := o.embedders[model]
	if !ok {
		return nil, &domain.EmbeddingError{Model: model, Err: fmt.Errorf("no embedder configured for model %q", model)}
	}
	res, err := e.Embed(ctx, text)
	if err != nil {
		return nil, &domain.EmbeddingError{Model: model, Err: err}
	}
	if len(res.Embedding) == 0 {
		return nil, &domain.EmbeddingError{Model: model, Err: fmt.Errorf("empty vector: %w", domain.ErrEmbeddingProviderError)}
	}
	return res.Embedding, nil
}
