package search

import (
	"github.com/AlejoJamC/airweave/internal/domain/search/result"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// fuseRRF merges ranked lists via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) for each list where d appears, then
// divided by the best fused score so the set lands in [0,1].
// When an item appears in several lists, the first occurrence's payload is kept.
func fuseRRF(lists [][]result.SearchResult) result.RankedSet {
	type fused struct {
		res   result.SearchResult
		score float64
	}

	merged := make(map[string]*fused)
	order := make([]string, 0)

	for _, list := range lists {
		for rank, r := range list {
			s := 1.0 / float64(rrfK+rank+1)
			if existing, ok := merged[r.ID()]; ok {
				existing.score += s
				continue
			}
			merged[r.ID()] = &fused{res: r, score: s}
			order = append(order, r.ID())
		}
	}
	if len(order) == 0 {
		return result.RankedSet{}
	}

	var best float64
	for _, f := range merged {
		best = max(best, f.score)
	}

	items := make([]result.ScoredResult, 0, len(order))
	for _, id := range order {
		f := merged[id]
		items = append(items, result.NewScored(f.res, StageFederatedSearch, f.score/best))
	}
	return result.NewRankedSet(items)
}
