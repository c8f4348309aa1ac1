package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/AlejoJamC/airweave/internal/domain"
	"github.com/AlejoJamC/airweave/internal/domain/search/query"
)

const expansionSystemPrompt = `You rewrite search queries to improve recall over a company knowledge base.
Return a JSON object {"alternatives": ["..."]} with up to %d alternative phrasings of the user's query.
Each alternative must keep the original intent. Do not repeat the original query.`

type queryExpansion struct {
	llm domain.LLM
}

// NewQueryExpansion widens recall with LLM-generated rephrasings.
func NewQueryExpansion(llm domain.LLM) Operation {
	return &queryExpansion{llm: llm}
}

func (o *queryExpansion) Name() string        { return StageQueryExpansion }
func (o *queryExpansion) DependsOn() []string { return nil }
func (o *queryExpansion) Required() bool      { return false }

func (o *queryExpansion) Skip(st *State) bool {
	opts := st.Query.Options()
	return o.llm == nil || !opts.ExpandQueries || opts.MaxExpansions <= 1
}

func (o *queryExpansion) Run(ctx context.Context, st *State) (Apply, error) {
	limit := st.Query.Options().MaxExpansions

	completion, err := o.llm.Complete(ctx, domain.CompletionRequest{
		System:      fmt.Sprintf(expansionSystemPrompt, limit-1),
		User:        st.Query.Text(),
		JSON:        true,
		MaxTokens:   256,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("expand query: %w", err)
	}

	var out struct {
		Alternatives []string `json:"alternatives"`
	}
	if err := decodeStructured(completion.Text, &out); err != nil {
		return nil, fmt.Errorf("expand query: %w", err)
	}

	expanded := query.NewExpanded(st.Query.Text(), out.Alternatives, limit)
	return func(st *State) { st.Expanded = expanded }, nil
}

func formatList(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	return strings.Join(values, ", ")
}
