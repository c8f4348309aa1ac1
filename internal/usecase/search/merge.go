package search

import (
	"github.com/AlejoJamC/airweave/internal/domain/search/result"
)

// Fusion selects how per-collection result lists are merged.
type Fusion string

// Fusion policies.
const (
	FusionMinMax Fusion = "minmax"
	FusionRRF    Fusion = "rrf"
)

// fuseMinMax normalizes each collection's raw scores to [0,1] independently,
// then keeps the maximum normalized score per identifier.
func fuseMinMax(perCollection [][]result.SearchResult) result.RankedSet {
	var n int
	for _, rs := range perCollection {
		n += len(rs)
	}
	all := make([]result.ScoredResult, 0, n)
	for _, rs := range perCollection {
		all = append(all, normalizeMinMax(rs)...)
	}
	// NewRankedSet keeps the first, highest-scored occurrence of each identifier.
	return result.NewRankedSet(all)
}

// normalizeMinMax maps scores onto [0,1]. A set whose scores are all equal maps to 1.
func normalizeMinMax(rs []result.SearchResult) []result.ScoredResult {
	if len(rs) == 0 {
		return nil
	}

	lo, hi := rs[0].RawScore(), rs[0].RawScore()
	for _, r := range rs[1:] {
		lo = min(lo, r.RawScore())
		hi = max(hi, r.RawScore())
	}

	out := make([]result.ScoredResult, len(rs))
	for i, r := range rs {
		norm := 1.0
		if hi > lo {
			norm = (r.RawScore() - lo) / (hi - lo)
		}
		out[i] = result.NewScored(r, StageFederatedSearch, norm)
	}
	return out
}
