package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AlejoJamC/airweave/internal/domain"
	"github.com/AlejoJamC/airweave/internal/domain/search/filter"
	"github.com/AlejoJamC/airweave/internal/logger"
)

const interpretationSystemPrompt = `You extract search filters from a query.
Today is %s. Known sources: %s.
Return a JSON object:
{"confidence": 0.0-1.0,
 "time_range": {"from": "RFC3339 or empty", "to": "RFC3339 or empty"},
 "source_types": ["..."],
 "entity_types": ["..."]}
Only include constraints the query states explicitly. Use empty values when unsure.`

type interpretation struct {
	llm       domain.LLM
	threshold float64
	now       func() time.Time
}

// NewQueryInterpretation extracts structured filters from the query text.
// Interpretations below threshold confidence are discarded.
func NewQueryInterpretation(llm domain.LLM, threshold float64, now func() time.Time) Operation {
	if now == nil {
		now = time.Now
	}
	return &interpretation{llm: llm, threshold: threshold, now: now}
}

func (o *interpretation) Name() string        { return StageQueryInterpretation }
func (o *interpretation) DependsOn() []string { return []string{StageResolveCollections} }
func (o *interpretation) Required() bool      { return false }

func (o *interpretation) Skip(st *State) bool {
	return o.llm == nil || !st.Query.Options().FiltersEnabled
}

type interpretedOutput struct {
	Confidence float64 `json:"confidence"`
	TimeRange  *struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"time_range"`
	SourceTypes []string `json:"source_types"`
	EntityTypes []string `json:"entity_types"`
}

func (o *interpretation) Run(ctx context.Context, st *State) (Apply, error) {
	sources := knownSources(st)

	completion, err := o.llm.Complete(ctx, domain.CompletionRequest{
		System:      fmt.Sprintf(interpretationSystemPrompt, o.now().UTC().Format(time.DateOnly), formatList(sources)),
		User:        st.Query.Text(),
		JSON:        true,
		MaxTokens:   256,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("interpret query: %w", err)
	}

	log := logger.FromContext(ctx)

	var out interpretedOutput
	if err := decodeStructured(completion.Text, &out); err != nil {
		log.Debug("Unparsable interpretation, continuing without filters", zap.Error(err))
		return nil, nil
	}
	if out.Confidence < o.threshold {
		log.Debug("Interpretation below confidence threshold",
			zap.Float64("confidence", out.Confidence),
			zap.Float64("threshold", o.threshold),
		)
		return nil, nil
	}

	interpreted, err := filter.NewInterpreted(
		parseTimeRange(out),
		keepKnown(out.SourceTypes, sources),
		out.EntityTypes,
	)
	if err != nil {
		// Inverted ranges are dropped rather than trusted.
		interpreted, _ = filter.NewInterpreted(nil, keepKnown(out.SourceTypes, sources), out.EntityTypes)
	}
	if interpreted.IsEmpty() {
		return nil, nil
	}
	return func(st *State) { st.Interpreted = interpreted }, nil
}

func parseTimeRange(out interpretedOutput) *filter.TimeRange {
	if out.TimeRange == nil {
		return nil
	}
	from, _ := time.Parse(time.RFC3339, out.TimeRange.From)
	to, _ := time.Parse(time.RFC3339, out.TimeRange.To)
	if from.IsZero() && to.IsZero() {
		return nil
	}
	return &filter.TimeRange{From: from, To: to}
}

// knownSources lists the source connectors of the target collections.
// An empty list means the collections do not declare their sources.
func knownSources(st *State) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range st.Collections {
		for _, s := range c.Sources {
			if _, ok := seen[s]; !ok {
				seen[s] = struct{}{}
				out = append(out, s)
			}
		}
	}
	return out
}

func keepKnown(values, known []string) []string {
	if len(known) == 0 {
		return values
	}
	allowed := make(map[string]struct{}, len(known))
	for _, k := range known {
		allowed[k] = struct{}{}
	}
	out := values[:0:0]
	for _, v := range values {
		if _, ok := allowed[v]; ok {
			out = append(out, v)
		}
	}
	return out
}
