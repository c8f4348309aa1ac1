package search

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AlejoJamC/airweave/internal/domain"
	"github.com/AlejoJamC/airweave/internal/domain/search/filter"
	"github.com/AlejoJamC/airweave/internal/domain/search/result"
	"github.com/AlejoJamC/airweave/internal/logger"
	"github.com/AlejoJamC/airweave/internal/metrics"
)

// FederationConfig tunes candidate fan-out and merging.
type FederationConfig struct {
	Fusion Fusion
	// PrefetchMultiplier widens the candidate window when reranking is on.
	PrefetchMultiplier float64
	// EmptyResultFallback returns an empty set instead of EmptyResultError.
	EmptyResultFallback bool
}

type federatedSearch struct {
	retriever Retriever
	cfg       FederationConfig
}

// NewFederatedSearch fans retrieval out to every target collection and merges the results.
func NewFederatedSearch(retriever Retriever, cfg FederationConfig) Operation {
	if cfg.Fusion == "" {
		cfg.Fusion = FusionMinMax
	}
	return &federatedSearch{retriever: retriever, cfg: cfg}
}

func (o *federatedSearch) Name() string { return StageFederatedSearch }

func (o *federatedSearch) DependsOn() []string {
	return []string{StageEmbedQuery, StageQueryInterpretation}
}

func (o *federatedSearch) Required() bool     { return true }
func (o *federatedSearch) Skip(_ *State) bool { return false }

// branch is one collection's retrieval outcome.
type branch struct {
	lists  [][]result.SearchResult // one list per query variant and retrieval method
	merged []result.SearchResult   // the collection's own ranking
	err    error
}

func (o *federatedSearch) Run(ctx context.Context, st *State) (Apply, error) {
	window := o.window(st)
	filters, degraded := searchFilters(st)

	collections := st.Collections
	branches := make([]branch, len(collections))

	// Branch failures must not cancel siblings, so no shared group context.
	var g errgroup.Group
	for i, coll := range collections {
		g.Go(func() error {
			branches[i] = o.searchCollection(ctx, st, coll, filters, window)
			return nil
		})
	}
	_ = g.Wait()

	log := logger.FromContext(ctx)
	failures := make(map[string]error)
	perCollection := make([][]result.SearchResult, 0, len(collections))
	var lists [][]result.SearchResult

	for i, coll := range collections {
		b := branches[i]
		if b.err != nil {
			failures[coll.ID] = b.err
			metrics.FederationBranchesTotal.WithLabelValues(coll.ID, branchOutcome(b.err)).Inc()
			log.Warn("Collection excluded from federation",
				zap.String("collection", coll.ID),
				zap.Error(b.err),
			)
			continue
		}
		metrics.FederationBranchesTotal.WithLabelValues(coll.ID, "ok").Inc()

		perCollection = append(perCollection, b.merged)
		lists = append(lists, b.lists...)
	}

	if len(collections) > 0 && len(failures) == len(collections) {
		return nil, &domain.FederationError{Failures: failures}
	}

	var fused result.RankedSet
	switch o.cfg.Fusion {
	case FusionRRF:
		fused = fuseRRF(lists)
	default:
		fused = fuseMinMax(perCollection)
	}
	candidates := fused.Truncate(window)

	if candidates.Len() == 0 && !o.cfg.EmptyResultFallback {
		return nil, &domain.EmptyResultError{Collections: st.Query.Collections()}
	}

	for _, coll := range collections {
		if err, failed := failures[coll.ID]; failed {
			degraded = append(degraded, Degradation{Stage: StageFederatedSearch, Target: coll.ID, Reason: err.Error()})
		}
	}

	return func(st *State) {
		st.Candidates = candidates
		st.Retrieved = candidates.Len()
		st.Degraded = append(st.Degraded, degraded...)
	}, nil
}

// window is the number of candidates kept after the merge.
func (o *federatedSearch) window(st *State) int {
	opts := st.Query.Options()
	n := st.Query.Offset() + opts.TopK
	if opts.Rerank && o.cfg.PrefetchMultiplier > 1 {
		n = int(math.Ceil(float64(n) * o.cfg.PrefetchMultiplier))
	}
	return n
}

// searchCollection runs the collection's searches under its own timeout:
// KNN per variant embedding of the collection's model and BM25 per variant
// text, as the retrieval strategy asks. Any search failure fails the branch.
func (o *federatedSearch) searchCollection(
	ctx context.Context, st *State, coll domain.Collection,
	filters filter.Expression, k int,
) branch {
	if timeout := st.Query.Options().FederationTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	strategy := st.Query.Options().Strategy

	var vectors [][]float32
	if strategy.UsesVectors() {
		for _, e := range st.Embeddings {
			if e.Model() == coll.EmbeddingModel {
				vectors = append(vectors, e.Vector())
			}
		}
		if len(vectors) == 0 {
			return branch{err: &domain.RetrievalError{
				Collection: coll.ID,
				Err:        fmt.Errorf("no query embedding for model %q", coll.EmbeddingModel),
			}}
		}
	}
	var texts []string
	if strategy.UsesText() {
		texts = st.Expanded.Variants()
	}

	vectorLists := make([][]result.SearchResult, len(vectors))
	textLists := make([][]result.SearchResult, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	for i, vec := range vectors {
		g.Go(func() error {
			rs, err := o.retriever.Search(gctx, coll, vec, filters, k)
			if err != nil {
				return err
			}
			vectorLists[i] = rs
			return nil
		})
	}
	for i, text := range texts {
		g.Go(func() error {
			rs, err := o.retriever.SearchText(gctx, coll, text, filters, k)
			if err != nil {
				return err
			}
			textLists[i] = rs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var retErr *domain.RetrievalError
		if !errors.As(err, &retErr) {
			err = &domain.RetrievalError{Collection: coll.ID, Err: err}
		}
		return branch{err: err}
	}

	lists := make([][]result.SearchResult, 0, len(vectorLists)+len(textLists))
	lists = append(lists, vectorLists...)
	lists = append(lists, textLists...)
	return branch{lists: lists, merged: mergeBranch(lists, len(vectorLists) > 0 && len(textLists) > 0)}
}

// mergeBranch builds one collection's ranking. Lists of one method share a
// score scale and are concatenated. Hybrid KNN and BM25 scores are not
// comparable, so those lists are fused by rank and carry the fused score.
func mergeBranch(lists [][]result.SearchResult, hybrid bool) []result.SearchResult {
	if !hybrid {
		var merged []result.SearchResult
		for _, l := range lists {
			merged = append(merged, l...)
		}
		return merged
	}

	fused := fuseRRF(lists).Items()
	merged := make([]result.SearchResult, len(fused))
	for i, it := range fused {
		merged[i] = it.Result().WithRawScore(it.Composite())
	}
	return merged
}

// searchFilters ANDs the user filter with the interpreted one. When the two
// cannot be combined the interpreted filter is dropped and reported.
func searchFilters(st *State) (filter.Expression, []Degradation) {
	user := st.Query.Filters()
	if st.Interpreted.IsEmpty() {
		return user, nil
	}

	interpreted, err := st.Interpreted.Expression()
	if err == nil {
		var combined filter.Expression
		if combined, err = filter.And(user, interpreted); err == nil {
			return combined, nil
		}
	}
	return user, []Degradation{{Stage: StageQueryInterpretation, Target: "filter", Reason: err.Error()}}
}

func branchOutcome(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}
