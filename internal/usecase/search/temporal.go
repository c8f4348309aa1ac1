package search

import (
	"context"
	"math"
	"time"

	"github.com/AlejoJamC/airweave/internal/domain/search/result"
)

type temporalRelevance struct {
	now func() time.Time
}

// NewTemporalRelevance decays composite scores by content age.
func NewTemporalRelevance(now func() time.Time) Operation {
	if now == nil {
		now = time.Now
	}
	return &temporalRelevance{now: now}
}

func (o *temporalRelevance) Name() string        { return StageTemporalRelevance }
func (o *temporalRelevance) DependsOn() []string { return []string{StageFederatedSearch} }
func (o *temporalRelevance) Required() bool      { return false }

func (o *temporalRelevance) Skip(st *State) bool {
	return st.Query.Options().TemporalDecayHalflife <= 0 || st.Candidates.Len() == 0
}

func (o *temporalRelevance) Run(_ context.Context, st *State) (Apply, error) {
	rescored := rescore(st.Candidates, st.Query.Options().TemporalDecayHalflife, o.now())
	return func(st *State) { st.Candidates = rescored }, nil
}

// rescore multiplies each composite by exp(-ln2 * age / halflife). Items without
// a timestamp keep factor 1, and future timestamps count as age 0.
func rescore(set result.RankedSet, halflife time.Duration, now time.Time) result.RankedSet {
	if halflife <= 0 {
		return set
	}
	return set.Map(func(s result.ScoredResult) result.ScoredResult {
		return s.Scale(StageTemporalRelevance, decayFactor(s.Result(), halflife, now))
	})
}

func decayFactor(r result.SearchResult, halflife time.Duration, now time.Time) float64 {
	ts, ok := r.Timestamp()
	if !ok {
		return 1
	}
	age := max(now.Sub(ts), 0)
	return math.Exp(-math.Ln2 * float64(age) / float64(halflife))
}
