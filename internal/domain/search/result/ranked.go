package result

import (
	"sort"
)

// RankedSet is an ordered, identifier-deduplicated sequence of scored results
// with non-increasing composite scores.
type RankedSet struct {
	items []ScoredResult
}

// NewRankedSet sorts items by composite score descending and drops duplicate
// identifiers after their first (highest) occurrence. Ties are broken by the
// most recent timestamp, then by identifier.
func NewRankedSet(items []ScoredResult) RankedSet {
	sorted := make([]ScoredResult, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })

	seen := make(map[string]struct{}, len(sorted))
	out := make([]ScoredResult, 0, len(sorted))
	for _, it := range sorted {
		if _, dup := seen[it.ID()]; dup {
			continue
		}
		seen[it.ID()] = struct{}{}
		out = append(out, it)
	}
	return RankedSet{items: out}
}

func less(a, b ScoredResult) bool {
	if a.composite != b.composite {
		return a.composite > b.composite
	}
	ta, okA := a.result.Timestamp()
	tb, okB := b.result.Timestamp()
	switch {
	case okA && !okB:
		return true
	case !okA && okB:
		return false
	case okA && okB && !ta.Equal(tb):
		return ta.After(tb)
	}
	return a.ID() < b.ID()
}

// Union merges sets, keeping the best-scored occurrence of each identifier.
func Union(sets ...RankedSet) RankedSet {
	var n int
	for _, s := range sets {
		n += len(s.items)
	}
	all := make([]ScoredResult, 0, n)
	for _, s := range sets {
		all = append(all, s.items...)
	}
	return NewRankedSet(all)
}

// Items returns a copy of the ordered results.
func (s RankedSet) Items() []ScoredResult {
	return append([]ScoredResult(nil), s.items...)
}

// Len returns the number of results.
func (s RankedSet) Len() int { return len(s.items) }

// IDs returns identifiers in rank order.
func (s RankedSet) IDs() []string {
	ids := make([]string, len(s.items))
	for i, it := range s.items {
		ids[i] = it.ID()
	}
	return ids
}

// Contains reports whether id is in the set.
func (s RankedSet) Contains(id string) bool {
	for _, it := range s.items {
		if it.ID() == id {
			return true
		}
	}
	return false
}

// Truncate keeps at most n results.
func (s RankedSet) Truncate(n int) RankedSet {
	if n < 0 || n >= len(s.items) {
		return s
	}
	return RankedSet{items: s.Items()[:n]}
}

// Page returns the window [offset, offset+limit).
func (s RankedSet) Page(offset, limit int) RankedSet {
	if offset >= len(s.items) {
		return RankedSet{}
	}
	if offset < 0 {
		offset = 0
	}
	end := len(s.items)
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}
	return RankedSet{items: append([]ScoredResult(nil), s.items[offset:end]...)}
}

// Filter keeps results for which keep returns true, preserving order.
func (s RankedSet) Filter(keep func(ScoredResult) bool) RankedSet {
	out := make([]ScoredResult, 0, len(s.items))
	for _, it := range s.items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return RankedSet{items: out}
}

// Map applies fn to every result and re-ranks the outcome.
func (s RankedSet) Map(fn func(ScoredResult) ScoredResult) RankedSet {
	out := make([]ScoredResult, len(s.items))
	for i, it := range s.items {
		out[i] = fn(it)
	}
	return NewRankedSet(out)
}
