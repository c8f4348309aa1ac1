package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/AlejoJamC/airweave/internal/domain"
	"github.com/AlejoJamC/airweave/internal/domain/search/result"
)

const rerankSystemPrompt = `You judge how relevant each numbered document is to the user's query.
Return a JSON object {"rankings": [{"index": <document number>, "relevance_score": <0.0-1.0>}]}
covering every document you consider relevant. Omit irrelevant documents.`

// maxRerankSnippet bounds the per-document text sent to the judge.
const maxRerankSnippet = 1000

// minRerankBand keeps the judge's order when the head and tail tops tie.
const minRerankBand = 1e-3

type reranking struct {
	llm  domain.LLM
	topN int
}

// NewReranking re-scores the top candidates with an LLM relevance judge.
func NewReranking(llm domain.LLM, topN int) Operation {
	if topN <= 0 {
		topN = 20
	}
	return &reranking{llm: llm, topN: topN}
}

func (o *reranking) Name() string        { return StageReranking }
func (o *reranking) DependsOn() []string { return []string{StageUserFilter} }
func (o *reranking) Required() bool      { return false }

func (o *reranking) Skip(st *State) bool {
	return o.llm == nil || !st.Query.Options().Rerank || st.Candidates.Len() < 2
}

type rankingsOutput struct {
	Rankings []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"rankings"`
}

func (o *reranking) Run(ctx context.Context, st *State) (Apply, error) {
	items := st.Candidates.Items()
	head := items[:min(o.topN, len(items))]

	completion, err := o.llm.Complete(ctx, domain.CompletionRequest{
		System:      rerankSystemPrompt,
		User:        rerankPrompt(st.Query.Text(), head),
		JSON:        true,
		MaxTokens:   1024,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}

	var out rankingsOutput
	if err := decodeStructured(completion.Text, &out); err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}

	relevance := make([]float64, len(head))
	for _, r := range out.Rankings {
		if r.Index < 0 || r.Index >= len(head) {
			continue
		}
		relevance[r.Index] = clamp01(r.RelevanceScore)
	}

	reranked := applyRerank(items, len(head), relevance)
	return func(st *State) { st.Candidates = reranked }, nil
}

// applyRerank maps relevance onto the band between the best tail score and
// the best head score, so reranked items never fall below untouched ones.
// The band is at least minRerankBand wide and may then top the head score.
func applyRerank(items []result.ScoredResult, n int, relevance []float64) result.RankedSet {
	var lo float64
	if len(items) > n {
		lo = items[n].Composite()
	}
	hi := max(items[0].Composite(), lo+minRerankBand)

	out := make([]result.ScoredResult, len(items))
	for i, it := range items {
		if i < n {
			out[i] = it.Replace(StageReranking, lo+relevance[i]*(hi-lo))
			continue
		}
		out[i] = it
	}
	return result.NewRankedSet(out)
}

func rerankPrompt(text string, head []result.ScoredResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\n\nDocuments:\n", text)
	for i, it := range head {
		fmt.Fprintf(&sb, "[%d] %s\n", i, truncate(it.Result().Content(), maxRerankSnippet))
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Cut on a rune boundary.
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
