package search

import (
	"github.com/AlejoJamC/airweave/internal/domain"
	"github.com/AlejoJamC/airweave/internal/domain/search/answer"
	"github.com/AlejoJamC/airweave/internal/domain/search/filter"
	"github.com/AlejoJamC/airweave/internal/domain/search/query"
	"github.com/AlejoJamC/airweave/internal/domain/search/result"
)

// Stage names.
const (
	StageResolveCollections  = "resolve_collections"
	StageQueryInterpretation = "query_interpretation"
	StageQueryExpansion      = "query_expansion"
	StageEmbedQuery          = "embed_query"
	StageFederatedSearch     = "federated_search"
	StageTemporalRelevance   = "temporal_relevance"
	StageUserFilter          = "user_filter"
	StageReranking           = "reranking"
	StageGenerateAnswer      = "generate_answer"
)

// Degradation records an optional stage, or one target of a stage, that was skipped after a failure.
type Degradation struct {
	Stage  string
	Target string
	Reason string
}

// State is the request-scoped pipeline state. Operations read it during Run
// and change it only through the Apply they return.
type State struct {
	Query       query.Query
	Collections []domain.Collection
	Expanded    query.Expanded
	Interpreted filter.Interpreted
	Embeddings  []query.Embedding
	Candidates  result.RankedSet
	// Retrieved is the candidate count produced by federation, before any filtering.
	Retrieved int
	Answer    *answer.Answer
	Degraded  []Degradation
}

// NewState seeds the state for q. Expansion starts as the original text only.
func NewState(q query.Query) *State {
	return &State{
		Query:    q,
		Expanded: query.NewExpanded(q.Text(), nil, 1),
	}
}

func (s *State) degrade(stage, target, reason string) {
	s.Degraded = append(s.Degraded, Degradation{Stage: stage, Target: target, Reason: reason})
}

// models returns the distinct embedding models of the target collections in resolution order.
func (s *State) models() []string {
	seen := make(map[string]struct{}, len(s.Collections))
	var out []string
	for _, c := range s.Collections {
		if _, ok := seen[c.EmbeddingModel]; ok {
			continue
		}
		seen[c.EmbeddingModel] = struct{}{}
		out = append(out, c.EmbeddingModel)
	}
	return out
}
