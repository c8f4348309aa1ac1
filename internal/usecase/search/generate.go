package search

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/AlejoJamC/airweave/internal/domain"
	"github.com/AlejoJamC/airweave/internal/domain/search/answer"
	"github.com/AlejoJamC/airweave/internal/domain/search/result"
)

// NoResultsAnswer is returned without a model call when there is no context.
const NoResultsAnswer = "No results found for your query."

const generateSystemPrompt = `You answer questions using only the provided context.
Cite every fact with the identifier of its source in double brackets, e.g. [[doc-1]].
If the context does not contain the answer, say so.`

var citationPattern = regexp.MustCompile(`\[\[([^\]]+)\]\]`)

type generateAnswer struct {
	llm             domain.LLM
	maxContextItems int
}

// NewGenerateAnswer synthesizes a cited answer from the top results.
func NewGenerateAnswer(llm domain.LLM, maxContextItems int) Operation {
	if maxContextItems <= 0 {
		maxContextItems = 10
	}
	return &generateAnswer{llm: llm, maxContextItems: maxContextItems}
}

func (o *generateAnswer) Name() string        { return StageGenerateAnswer }
func (o *generateAnswer) DependsOn() []string { return []string{StageReranking} }
func (o *generateAnswer) Required() bool      { return false }

func (o *generateAnswer) Skip(st *State) bool {
	return !st.Query.Options().GenerateAnswer
}

func (o *generateAnswer) Run(ctx context.Context, st *State) (Apply, error) {
	a, err := o.generate(ctx, st.Query.Text(), pageContext(st).Truncate(o.maxContextItems))
	if err != nil {
		return nil, err
	}
	return func(st *State) { st.Answer = &a }, nil
}

// pageContext is the threshold-filtered set the caller will see.
func pageContext(st *State) result.RankedSet {
	threshold := st.Query.ScoreThreshold()
	set := st.Candidates
	if threshold > 0 {
		set = set.Filter(func(s result.ScoredResult) bool { return s.Composite() >= threshold })
	}
	return set
}

func (o *generateAnswer) generate(ctx context.Context, text string, contextSet result.RankedSet) (answer.Answer, error) {
	if contextSet.Len() == 0 {
		return answer.New(NoResultsAnswer, nil, ""), nil
	}
	if o.llm == nil {
		return answer.Answer{}, &domain.GenerationError{Err: domain.ErrLLMUnavailable}
	}

	completion, err := o.llm.Complete(ctx, domain.CompletionRequest{
		System:      generateSystemPrompt,
		User:        generatePrompt(text, contextSet),
		MaxTokens:   1024,
		Temperature: 0.2,
	})
	if err != nil {
		return answer.Answer{}, &domain.GenerationError{Err: err}
	}

	body, citations := extractCitations(completion.Text, contextSet)
	return answer.New(body, citations, completion.Model), nil
}

func generatePrompt(text string, contextSet result.RankedSet) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	for _, it := range contextSet.Items() {
		r := it.Result()
		fmt.Fprintf(&sb, "[[%s]] (collection %s)\n%s\n\n", r.ID(), r.Collection(), r.Content())
	}
	fmt.Fprintf(&sb, "Question: %s", text)
	return sb.String()
}

// extractCitations returns the text with unknown markers removed and the
// distinct cited identifiers that were in the context, in first-mention order.
func extractCitations(text string, contextSet result.RankedSet) (string, []string) {
	seen := make(map[string]struct{})
	var citations []string

	cleaned := citationPattern.ReplaceAllStringFunc(text, func(marker string) string {
		id := strings.TrimSpace(citationPattern.FindStringSubmatch(marker)[1])
		if !contextSet.Contains(id) {
			return ""
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			citations = append(citations, id)
		}
		return "[[" + id + "]]"
	})
	return strings.TrimSpace(cleaned), citations
}
