package search

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AlejoJamC/airweave/internal/domain"
)

type fakeOp struct {
	name     string
	deps     []string
	required bool
	skip     bool
	runs     atomic.Int32
	runFn    func(ctx context.Context, st *State) (Apply, error)
}

func (f *fakeOp) Name() string        { return f.name }
func (f *fakeOp) DependsOn() []string { return f.deps }
func (f *fakeOp) Required() bool      { return f.required }
func (f *fakeOp) Skip(_ *State) bool  { return f.skip }

func (f *fakeOp) Run(ctx context.Context, st *State) (Apply, error) {
	f.runs.Add(1)
	if f.runFn != nil {
		return f.runFn(ctx, st)
	}
	return nil, nil
}

// marking returns an Apply that records name as a degradation target, so tests can observe apply order.
func marking(name string) func(context.Context, *State) (Apply, error) {
	return func(context.Context, *State) (Apply, error) {
		return func(st *State) { st.degrade("mark", name, "") }, nil
	}
}

func targets(st *State) []string {
	var out []string
	for _, d := range st.Degraded {
		out = append(out, d.Target)
	}
	return out
}

func TestNewOrchestrator_Levels(t *testing.T) {
	orch, err := NewOrchestrator(nil,
		&fakeOp{name: "a"},
		&fakeOp{name: "b", deps: []string{"a"}},
		&fakeOp{name: "c"},
		&fakeOp{name: "d", deps: []string{"b", "c"}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := [][]string{{"a", "c"}, {"b"}, {"d"}}
	if got := orch.Levels(); !reflect.DeepEqual(got, want) {
		t.Errorf("Levels() = %v, want %v", got, want)
	}
}

func TestNewOrchestrator_GraphErrors(t *testing.T) {
	tests := []struct {
		name string
		ops  []Operation
	}{
		{"unknown dependency", []Operation{&fakeOp{name: "a", deps: []string{"ghost"}}}},
		{"duplicate", []Operation{&fakeOp{name: "a"}, &fakeOp{name: "a"}}},
		{"cycle", []Operation{
			&fakeOp{name: "a", deps: []string{"b"}},
			&fakeOp{name: "b", deps: []string{"a"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewOrchestrator(nil, tt.ops...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNewPipeline_Levels(t *testing.T) {
	orch, err := NewPipeline(Dependencies{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := [][]string{
		{StageResolveCollections, StageQueryExpansion},
		{StageQueryInterpretation, StageEmbedQuery},
		{StageFederatedSearch},
		{StageTemporalRelevance},
		{StageUserFilter},
		{StageReranking},
		{StageGenerateAnswer},
	}
	if got := orch.Levels(); !reflect.DeepEqual(got, want) {
		t.Errorf("Levels() = %v, want %v", got, want)
	}
}

func TestExecute_RequiredFailure(t *testing.T) {
	boom := errors.New("boom")
	later := &fakeOp{name: "later", deps: []string{"embed"}}
	orch, err := NewOrchestrator(nil,
		&fakeOp{name: "embed", required: true, runFn: func(context.Context, *State) (Apply, error) {
			return nil, boom
		}},
		later,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = orch.Execute(context.Background(), NewState(newTestQuery(t)))

	var pErr *domain.PipelineError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected PipelineError, got %v", err)
	}
	if pErr.Stage != "embed" {
		t.Errorf("expected stage embed, got %q", pErr.Stage)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected cause to be wrapped, got %v", err)
	}
	if later.runs.Load() != 0 {
		t.Error("operations after a required failure must not run")
	}
}

func TestExecute_OptionalFailureDegrades(t *testing.T) {
	applied := false
	orch, err := NewOrchestrator(nil,
		&fakeOp{name: "expand", runFn: func(context.Context, *State) (Apply, error) {
			return func(*State) { applied = true }, errors.New("llm down")
		}},
		&fakeOp{name: "next", deps: []string{"expand"}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st := NewState(newTestQuery(t))
	if err := orch.Execute(context.Background(), st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied {
		t.Error("output of a failed optional operation must be discarded")
	}
	if len(st.Degraded) != 1 || st.Degraded[0].Stage != "expand" {
		t.Fatalf("expected one degradation for expand, got %+v", st.Degraded)
	}
	if st.Degraded[0].Reason != "llm down" {
		t.Errorf("unexpected reason %q", st.Degraded[0].Reason)
	}
}

func TestExecute_LevelSeesPreviousState(t *testing.T) {
	var seen atomic.Int64
	orch, err := NewOrchestrator(nil,
		&fakeOp{name: "writer", runFn: func(context.Context, *State) (Apply, error) {
			return func(st *State) { st.Retrieved = 7 }, nil
		}},
		&fakeOp{name: "reader", runFn: func(_ context.Context, st *State) (Apply, error) {
			time.Sleep(5 * time.Millisecond)
			seen.Store(int64(st.Retrieved))
			return nil, nil
		}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st := NewState(newTestQuery(t))
	if err := orch.Execute(context.Background(), st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen.Load() != 0 {
		t.Errorf("same-level operation observed applied output: %d", seen.Load())
	}
	if st.Retrieved != 7 {
		t.Errorf("expected writer output applied, got %d", st.Retrieved)
	}
}

func TestExecute_AppliesInRegistrationOrder(t *testing.T) {
	slow := marking("first")
	orch, err := NewOrchestrator(nil,
		&fakeOp{name: "first", runFn: func(ctx context.Context, st *State) (Apply, error) {
			time.Sleep(10 * time.Millisecond)
			return slow(ctx, st)
		}},
		&fakeOp{name: "second", runFn: marking("second")},
		&fakeOp{name: "third", deps: []string{"first", "second"}, runFn: marking("third")},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st := NewState(newTestQuery(t))
	if err := orch.Execute(context.Background(), st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"first", "second", "third"}
	if got := targets(st); !reflect.DeepEqual(got, want) {
		t.Errorf("apply order = %v, want %v", got, want)
	}
}

func TestExecute_SkipNotRun(t *testing.T) {
	op := &fakeOp{name: "rerank", skip: true}
	orch, err := NewOrchestrator(nil, op)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st := NewState(newTestQuery(t))
	if err := orch.Execute(context.Background(), st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op.runs.Load() != 0 {
		t.Error("skipped operation should not run")
	}
	if len(st.Degraded) != 0 {
		t.Errorf("skip is not a degradation: %+v", st.Degraded)
	}
}

func TestExecute_DeadlineSkipsOptional(t *testing.T) {
	optional := &fakeOp{name: "rerank"}
	required := &fakeOp{name: "filter", required: true, runFn: marking("filter")}
	orch, err := NewOrchestrator(nil, optional, required)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := NewState(newTestQuery(t))
	if err := orch.Execute(ctx, st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if optional.runs.Load() != 0 {
		t.Error("optional operation should be skipped after the deadline")
	}
	if required.runs.Load() != 1 {
		t.Error("required operation should still run")
	}
	if len(st.Degraded) != 2 || st.Degraded[0].Stage != "rerank" {
		t.Errorf("expected rerank degradation then filter output, got %+v", st.Degraded)
	}
}
