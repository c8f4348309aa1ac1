package search

import (
	"math"
	"reflect"
	"testing"

	"github.com/AlejoJamC/airweave/internal/domain/search/result"
)

func composites(set result.RankedSet) map[string]float64 {
	out := make(map[string]float64, set.Len())
	for _, it := range set.Items() {
		out[it.ID()] = it.Composite()
	}
	return out
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestFuseMinMax_NormalizesPerCollection(t *testing.T) {
	set := fuseMinMax([][]result.SearchResult{
		{sr("a1", "a", 0.9), sr("a2", "a", 0.5), sr("a3", "a", 0.1)},
		// A backend with a different score scale.
		{sr("b1", "b", 20), sr("b2", "b", 10)},
	})

	want := map[string]float64{"a1": 1, "a2": 0.5, "a3": 0, "b1": 1, "b2": 0}
	got := composites(set)
	for id, score := range want {
		if !approx(got[id], score) {
			t.Errorf("%s: expected %f, got %f", id, score, got[id])
		}
	}
	assertNonIncreasing(t, set)
}

func TestFuseMinMax_EqualScoresMapToOne(t *testing.T) {
	set := fuseMinMax([][]result.SearchResult{{sr("x", "a", 0.3), sr("y", "a", 0.3)}})
	for _, it := range set.Items() {
		if it.Composite() != 1 {
			t.Errorf("%s: expected 1, got %f", it.ID(), it.Composite())
		}
	}
}

func TestFuseMinMax_DuplicateKeepsMax(t *testing.T) {
	set := fuseMinMax([][]result.SearchResult{
		{sr("top", "a", 1.0), sr("shared", "a", 0.5), sr("low", "a", 0.0)},
		{sr("shared", "b", 0.8), sr("other", "b", 0.2)},
	})

	assertNoDuplicates(t, set)
	if set.Len() != 4 {
		t.Fatalf("expected 4 unique items, got %d: %v", set.Len(), set.IDs())
	}
	if got := composites(set)["shared"]; got != 1 {
		t.Errorf("expected the higher normalized score, got %f", got)
	}
}

func TestFuseMinMax_Empty(t *testing.T) {
	if set := fuseMinMax(nil); set.Len() != 0 {
		t.Errorf("expected empty set, got %d", set.Len())
	}
}

func TestUnion_Idempotent(t *testing.T) {
	set := fuseMinMax([][]result.SearchResult{
		{sr("a1", "a", 0.9), sr("a2", "a", 0.4)},
		{sr("a1", "b", 0.7), sr("b2", "b", 0.1)},
	})

	again := result.Union(set, set)
	if !reflect.DeepEqual(again.IDs(), set.IDs()) {
		t.Errorf("Union(s, s) = %v, want %v", again.IDs(), set.IDs())
	}
}
