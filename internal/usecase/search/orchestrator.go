package search

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AlejoJamC/airweave/internal/domain"
	"github.com/AlejoJamC/airweave/internal/logger"
	"github.com/AlejoJamC/airweave/internal/metrics"
)

// Orchestrator runs operations level by level in dependency order.
type Orchestrator struct {
	levels [][]Operation
	tracer trace.Tracer
}

// NewOrchestrator validates the operation graph and groups it into levels.
// Operations in a level depend only on earlier levels; registration order is
// kept within a level.
func NewOrchestrator(tracer trace.Tracer, ops ...Operation) (*Orchestrator, error) {
	levels, err := buildLevels(ops)
	if err != nil {
		return nil, err
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Orchestrator{levels: levels, tracer: tracer}, nil
}

// Levels returns operation names grouped by level.
func (o *Orchestrator) Levels() [][]string {
	out := make([][]string, len(o.levels))
	for i, level := range o.levels {
		for _, op := range level {
			out[i] = append(out[i], op.Name())
		}
	}
	return out
}

func buildLevels(ops []Operation) ([][]Operation, error) {
	byName := make(map[string]Operation, len(ops))
	for _, op := range ops {
		if _, dup := byName[op.Name()]; dup {
			return nil, fmt.Errorf("duplicate operation %q", op.Name())
		}
		byName[op.Name()] = op
	}

	indegree := make(map[string]int, len(ops))
	for _, op := range ops {
		for _, dep := range op.DependsOn() {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("operation %q depends on unknown operation %q", op.Name(), dep)
			}
			indegree[op.Name()]++
		}
	}

	var levels [][]Operation
	placed := make(map[string]bool, len(ops))
	for len(placed) < len(ops) {
		var level []Operation
		for _, op := range ops {
			if !placed[op.Name()] && indegree[op.Name()] == 0 {
				level = append(level, op)
			}
		}
		if len(level) == 0 {
			return nil, fmt.Errorf("operation graph has a cycle")
		}
		for _, op := range level {
			placed[op.Name()] = true
		}
		for _, op := range ops {
			for _, dep := range op.DependsOn() {
				for _, done := range level {
					if dep == done.Name() {
						indegree[op.Name()]--
					}
				}
			}
		}
		levels = append(levels, level)
	}
	return levels, nil
}

type outcome struct {
	apply    Apply
	err      error
	ran      bool
	duration time.Duration
}

// Execute runs every level against st. A required failure returns a
// *domain.PipelineError; optional failures become degradations on st.
// Once ctx is done, remaining optional operations are skipped.
func (o *Orchestrator) Execute(ctx context.Context, st *State) error {
	for _, level := range o.levels {
		outcomes := make([]outcome, len(level))

		g, gctx := errgroup.WithContext(ctx)
		for i, op := range level {
			if op.Skip(st) {
				metrics.SearchStageDuration.WithLabelValues(op.Name(), "skipped").Observe(0)
				continue
			}
			if ctx.Err() != nil && !op.Required() {
				outcomes[i] = outcome{err: ctx.Err(), ran: true}
				continue
			}
			g.Go(func() error {
				start := time.Now()
				apply, err := o.run(gctx, op, st)
				outcomes[i] = outcome{apply: apply, err: err, ran: true, duration: time.Since(start)}
				if err != nil && op.Required() {
					return &domain.PipelineError{Stage: op.Name(), Cause: err}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			o.observe(level, outcomes)
			return err //nolint:wrapcheck // already a PipelineError
		}

		o.observe(level, outcomes)
		for i, op := range level {
			out := outcomes[i]
			switch {
			case !out.ran:
			case out.err != nil:
				o.degrade(ctx, st, op.Name(), out.err)
			case out.apply != nil:
				out.apply(st)
			}
		}
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, op Operation, st *State) (Apply, error) {
	ctx, span := o.tracer.Start(ctx, "search."+op.Name(), trace.WithAttributes(
		attribute.String("search.stage", op.Name()),
		attribute.Bool("search.required", op.Required()),
	))
	defer span.End()

	apply, err := op.Run(ctx, st)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return apply, err
}

func (o *Orchestrator) observe(level []Operation, outcomes []outcome) {
	for i, op := range level {
		out := outcomes[i]
		if !out.ran {
			continue
		}
		label := "ok"
		if out.err != nil {
			label = "degraded"
			if op.Required() {
				label = "failed"
			}
		}
		metrics.SearchStageDuration.WithLabelValues(op.Name(), label).Observe(out.duration.Seconds())
	}
}

func (o *Orchestrator) degrade(ctx context.Context, st *State, stage string, err error) {
	metrics.SearchDegradationsTotal.WithLabelValues(stage).Inc()
	logger.FromContext(ctx).Warn("Search stage degraded",
		zap.String("stage", stage),
		zap.String("query_id", st.Query.ID()),
		zap.Error(err),
	)
	st.degrade(stage, "", err.Error())
}
