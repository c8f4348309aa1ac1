package search

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/AlejoJamC/airweave/internal/domain"
)

// Dependencies are the collaborators and tuning of the standard pipeline.
type Dependencies struct {
	Collections CollectionResolver
	Embedders   map[string]domain.Embedder
	Retriever   Retriever
	Authorizer  Authorizer
	// LLM serves expansion, interpretation, reranking and generation. Nil disables them.
	LLM                 domain.LLM
	Federation          FederationConfig
	UserFilter          UserFilterConfig
	RerankTopN          int
	MaxContextItems     int
	ConfidenceThreshold float64
	Now                 func() time.Time
	Tracer              trace.Tracer
}

// NewPipeline wires the standard operation graph:
//
//	resolve_collections, query_expansion
//	query_interpretation, embed_query
//	federated_search
//	temporal_relevance
//	user_filter
//	reranking
//	generate_answer
func NewPipeline(d Dependencies) (*Orchestrator, error) {
	return NewOrchestrator(d.Tracer,
		NewResolveCollections(d.Collections),
		NewQueryInterpretation(d.LLM, d.ConfidenceThreshold, d.Now),
		NewQueryExpansion(d.LLM),
		NewEmbedQuery(d.Embedders),
		NewFederatedSearch(d.Retriever, d.Federation),
		NewTemporalRelevance(d.Now),
		NewUserFilter(d.Authorizer, d.UserFilter),
		NewReranking(d.LLM, d.RerankTopN),
		NewGenerateAnswer(d.LLM, d.MaxContextItems),
	)
}
