package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AlejoJamC/airweave/internal/domain"
	"github.com/AlejoJamC/airweave/internal/domain/search/answer"
	"github.com/AlejoJamC/airweave/internal/domain/search/filter"
	"github.com/AlejoJamC/airweave/internal/domain/search/mode"
	"github.com/AlejoJamC/airweave/internal/domain/search/query"
	"github.com/AlejoJamC/airweave/internal/domain/search/result"
	"github.com/AlejoJamC/airweave/internal/logger"
	"github.com/AlejoJamC/airweave/internal/metrics"
)

// Status summarizes a successful search.
type Status string

// Status values.
const (
	StatusSuccess           Status = "success"
	StatusNoRelevantResults Status = "no_relevant_results"
	StatusNoResults         Status = "no_results"
)

const publishTimeout = 2 * time.Second

// Config holds service-level defaults.
type Config struct {
	Defaults       query.Options
	RequestTimeout time.Duration
	MaxLimit       int
}

// Overrides replace pipeline defaults for a single request. Nil keeps the default.
type Overrides struct {
	ExpandQueries         *bool
	MaxExpansions         *int
	FiltersEnabled        *bool
	Rerank                *bool
	TemporalDecayHalflife *time.Duration
	TopK                  *int
	FederationTimeout     *time.Duration
	Strategy              *mode.Mode
}

// Request is a search request as received from a transport.
type Request struct {
	Text           string
	Principal      domain.Principal
	Collections    []string
	Filters        filter.Expression
	Offset         int
	Limit          int
	ScoreThreshold float64
	ResponseType   query.ResponseType
	Overrides      Overrides
}

// Response is the outcome of a search.
type Response struct {
	QueryID         string
	Status          Status
	Results         []result.ScoredResult
	Answer          *answer.Answer
	ExpandedQueries []string
	Degraded        []Degradation
	Duration        time.Duration
}

// CompletedEvent is the analytics record of a finished search.
type CompletedEvent struct {
	QueryID     string    `json:"query_id"`
	Principal   string    `json:"principal"`
	Tenant      string    `json:"tenant,omitempty"`
	Collections []string  `json:"collections"`
	Status      string    `json:"status"`
	ResultCount int       `json:"result_count"`
	Degraded    []string  `json:"degraded,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	Timestamp   time.Time `json:"timestamp"`
}

// Service executes searches through the operation pipeline.
type Service struct {
	orch   *Orchestrator
	cfg    Config
	events EventPublisher
	logger *zap.Logger
	newID  func() string

	publishing sync.WaitGroup
}

// NewService creates a search service. events may be nil.
func NewService(orch *Orchestrator, cfg Config, events EventPublisher, logger *zap.Logger) *Service {
	return &Service{
		orch:   orch,
		cfg:    cfg,
		events: events,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Search validates req, runs the pipeline, and pages the final ranked set.
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	q, err := s.buildQuery(req)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	log := logger.FromContext(ctx).With(zap.String("query_id", q.ID()))
	ctx = logger.ContextWithLogger(ctx, log)

	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	st := NewState(q)
	if err := s.orch.Execute(ctx, st); err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		log.Warn("Search failed",
			zap.String("kind", domain.ErrorKind(err)),
			zap.Error(err),
		)
		return nil, err //nolint:wrapcheck // PipelineError carries the stage
	}

	resp := finalize(st)
	resp.QueryID = q.ID()
	resp.Duration = time.Since(start)

	metrics.SearchRequestsTotal.WithLabelValues(string(resp.Status)).Inc()
	metrics.SearchResultsReturned.Observe(float64(len(resp.Results)))
	log.Debug("Search completed",
		zap.String("status", string(resp.Status)),
		zap.Int("results", len(resp.Results)),
		zap.Int("degraded", len(resp.Degraded)),
		zap.Duration("duration", resp.Duration),
	)

	s.publish(ctx, q, resp)
	return resp, nil
}

func (s *Service) buildQuery(req Request) (query.Query, error) {
	if req.ResponseType != "" && !req.ResponseType.IsValid() {
		return query.Query{}, fmt.Errorf("%w: unknown response_type %q", domain.ErrInvalidQuery, req.ResponseType)
	}
	if s.cfg.MaxLimit > 0 && req.Limit > s.cfg.MaxLimit {
		return query.Query{}, fmt.Errorf("%w: limit exceeds %d", domain.ErrInvalidQuery, s.cfg.MaxLimit)
	}

	opts := s.cfg.Defaults
	o := req.Overrides
	if o.ExpandQueries != nil {
		opts.ExpandQueries = *o.ExpandQueries
	}
	if o.MaxExpansions != nil {
		opts.MaxExpansions = *o.MaxExpansions
	}
	if o.FiltersEnabled != nil {
		opts.FiltersEnabled = *o.FiltersEnabled
	}
	if o.Rerank != nil {
		opts.Rerank = *o.Rerank
	}
	if o.TemporalDecayHalflife != nil {
		opts.TemporalDecayHalflife = *o.TemporalDecayHalflife
	}
	if o.TopK != nil {
		opts.TopK = *o.TopK
	}
	if o.FederationTimeout != nil {
		opts.FederationTimeout = *o.FederationTimeout
	}
	if o.Strategy != nil {
		opts.Strategy = *o.Strategy
	}
	switch req.ResponseType {
	case query.ResponseCompletion:
		opts.GenerateAnswer = true
	case query.ResponseRaw:
		opts.GenerateAnswer = false
	}

	return query.New(query.Params{
		ID:             s.newID(),
		Text:           req.Text,
		Principal:      req.Principal,
		Collections:    req.Collections,
		Filters:        req.Filters,
		Offset:         req.Offset,
		Limit:          req.Limit,
		ScoreThreshold: req.ScoreThreshold,
		Options:        opts,
	})
}

// finalize applies the score threshold, pages the result, and derives the status.
func finalize(st *State) *Response {
	q := st.Query
	final := pageContext(st)

	status := StatusSuccess
	switch {
	case st.Retrieved == 0:
		status = StatusNoResults
	case final.Len() == 0:
		status = StatusNoRelevantResults
	}

	return &Response{
		Status:          status,
		Results:         final.Page(q.Offset(), q.Limit()).Items(),
		Answer:          st.Answer,
		ExpandedQueries: st.Expanded.Variants(),
		Degraded:        append([]Degradation(nil), st.Degraded...),
	}
}

// publish sends the analytics event in the background. Close waits for it.
func (s *Service) publish(ctx context.Context, q query.Query, resp *Response) {
	if s.events == nil {
		return
	}

	stages := make([]string, 0, len(resp.Degraded))
	for _, d := range resp.Degraded {
		stages = append(stages, d.Stage)
	}
	event := CompletedEvent{
		QueryID:     q.ID(),
		Principal:   q.Principal().ID,
		Tenant:      q.Principal().Tenant,
		Collections: q.Collections(),
		Status:      string(resp.Status),
		ResultCount: len(resp.Results),
		Degraded:    stages,
		DurationMs:  resp.Duration.Milliseconds(),
		Timestamp:   time.Now().UTC(),
	}
	log := logger.FromContext(ctx)
	pubCtx := context.WithoutCancel(ctx)

	s.publishing.Add(1)
	go func() {
		defer s.publishing.Done()
		ctx, cancel := context.WithTimeout(pubCtx, publishTimeout)
		defer cancel()

		if err := s.events.PublishSearchCompleted(ctx, event); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("Failed to publish search analytics", zap.Error(err))
		}
	}()
}

// Close waits for in-flight analytics events. Each is bounded by publishTimeout.
func (s *Service) Close() {
	s.publishing.Wait()
}
