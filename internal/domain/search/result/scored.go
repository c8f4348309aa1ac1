package result

// Op is how a stage contribution combines with the running composite score.
type Op string

const (
	// OpSet replaces the composite score.
	OpSet Op = "set"
	// OpScale multiplies the composite score.
	OpScale Op = "scale"
)

// Contribution is one stage's adjustment to the composite score.
type Contribution struct {
	Stage string
	Op    Op
	Value float64
}

// ScoredResult is a SearchResult annotated with the ordered stage contributions
// that produced its composite score. Values are immutable; every adjustment
// returns a new ScoredResult.
type ScoredResult struct {
	result        SearchResult
	contributions []Contribution
	composite     float64
}

// NewScored starts the provenance chain with an initial score set by stage.
func NewScored(r SearchResult, stage string, score float64) ScoredResult {
	return ScoredResult{result: r}.with(Contribution{Stage: stage, Op: OpSet, Value: score})
}

// Result returns the underlying retrieved item.
func (s ScoredResult) Result() SearchResult { return s.result }

// ID returns the item identifier.
func (s ScoredResult) ID() string { return s.result.id }

// Composite returns the final composite score.
func (s ScoredResult) Composite() float64 { return s.composite }

// Contributions returns a copy of the stage contributions in execution order.
func (s ScoredResult) Contributions() []Contribution {
	return append([]Contribution(nil), s.contributions...)
}

// Replace records stage replacing the composite score.
func (s ScoredResult) Replace(stage string, score float64) ScoredResult {
	return s.with(Contribution{Stage: stage, Op: OpSet, Value: score})
}

// Scale records stage multiplying the composite score by factor.
func (s ScoredResult) Scale(stage string, factor float64) ScoredResult {
	return s.with(Contribution{Stage: stage, Op: OpScale, Value: factor})
}

func (s ScoredResult) with(c Contribution) ScoredResult {
	contributions := make([]Contribution, len(s.contributions), len(s.contributions)+1)
	copy(contributions, s.contributions)
	contributions = append(contributions, c)
	return ScoredResult{
		result:        s.result,
		contributions: contributions,
		composite:     Combine(contributions),
	}
}

// Combine folds contributions left to right: set replaces, scale multiplies.
func Combine(contributions []Contribution) float64 {
	var score float64
	for _, c := range contributions {
		switch c.Op {
		case OpSet:
			score = c.Value
		case OpScale:
			score *= c.Value
		}
	}
	return score
}
