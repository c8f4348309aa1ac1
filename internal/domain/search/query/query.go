package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/AlejoJamC/airweave/internal/domain"
	"github.com/AlejoJamC/airweave/internal/domain/search/filter"
	"github.com/AlejoJamC/airweave/internal/domain/search/mode"
)

// Query parameter limits.
const (
	// MaxQueryLength is the maximum allowed query text length.
	MaxQueryLength = 4096
	DefaultLimit   = 20
	MaxCollections = 16
)

// ResponseType selects raw ranked results or a generated answer.
type ResponseType string

// Response type constants.
const (
	ResponseRaw        ResponseType = "raw"
	ResponseCompletion ResponseType = "completion"
)

// IsValid checks if the response type is one of the supported values.
func (r ResponseType) IsValid() bool {
	return r == ResponseRaw || r == ResponseCompletion
}

// Options are the recognized pipeline options for one request.
type Options struct {
	ExpandQueries         bool
	MaxExpansions         int
	FiltersEnabled        bool
	Rerank                bool
	GenerateAnswer        bool
	TemporalDecayHalflife time.Duration // zero disables decay
	// TopK is the candidate depth retrieved before paging. It is never below the page limit.
	TopK              int
	FederationTimeout time.Duration
	// Strategy selects vector, keyword or hybrid retrieval. Zero selects neural.
	Strategy mode.Mode
}

// Params are the raw inputs to New.
type Params struct {
	ID             string
	Text           string
	Principal      domain.Principal
	Collections    []string
	Filters        filter.Expression
	Offset         int
	Limit          int
	ScoreThreshold float64
	Options        Options
}

// Query is a validated, immutable search request.
type Query struct {
	id             string
	text           string
	principal      domain.Principal
	collections    []string
	filters        filter.Expression
	offset         int
	limit          int
	scoreThreshold float64
	options        Options
}

// New validates and normalizes query parameters.
// Defaults: limit=options.TopK (or DefaultLimit), strategy=neural.
// GenerateAnswer selects the completion response.
func New(p Params) (Query, error) {
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return Query{}, fmt.Errorf("%w: query is required", domain.ErrInvalidQuery)
	}
	if len(text) > MaxQueryLength {
		return Query{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidQuery, MaxQueryLength)
	}
	if p.Principal.IsZero() {
		return Query{}, fmt.Errorf("%w: principal is required", domain.ErrInvalidQuery)
	}
	collections, err := normalizeCollections(p.Collections)
	if err != nil {
		return Query{}, err
	}
	if p.Offset < 0 {
		return Query{}, fmt.Errorf("%w: offset must be non-negative", domain.ErrInvalidQuery)
	}
	if p.ScoreThreshold < 0 || p.ScoreThreshold > 1 {
		return Query{}, fmt.Errorf("%w: score_threshold must be between 0 and 1", domain.ErrInvalidQuery)
	}
	if p.Options.TemporalDecayHalflife < 0 {
		return Query{}, fmt.Errorf("%w: temporal decay halflife must be non-negative", domain.ErrInvalidQuery)
	}

	opts := p.Options
	if opts.Strategy == "" {
		opts.Strategy = mode.Neural
	}
	if !opts.Strategy.IsValid() {
		return Query{}, fmt.Errorf("%w: unknown retrieval_strategy %q", domain.ErrInvalidQuery, opts.Strategy)
	}
	if opts.MaxExpansions < 1 {
		opts.MaxExpansions = 1
	}
	limit := p.Limit
	if limit <= 0 {
		limit = opts.TopK
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	opts.TopK = max(opts.TopK, limit)

	return Query{
		id:             p.ID,
		text:           text,
		principal:      p.Principal,
		collections:    collections,
		filters:        p.Filters,
		offset:         p.Offset,
		limit:          limit,
		scoreThreshold: p.ScoreThreshold,
		options:        opts,
	}, nil
}

func normalizeCollections(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one collection is required", domain.ErrInvalidQuery)
	}
	if len(ids) > MaxCollections {
		return nil, fmt.Errorf("%w: too many collections (max %d)", domain.ErrInvalidQuery, MaxCollections)
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("%w: empty collection id", domain.ErrInvalidQuery)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// ID returns the request-scoped query identifier.
func (q Query) ID() string { return q.id }

// Text returns the raw query text.
func (q Query) Text() string { return q.text }

// Principal returns the requesting identity.
func (q Query) Principal() domain.Principal { return q.principal }

// Collections returns a copy of the target collection identifiers.
func (q Query) Collections() []string { return append([]string(nil), q.collections...) }

// Filters returns the user-supplied filter expression.
func (q Query) Filters() filter.Expression { return q.filters }

// Offset returns the pagination offset.
func (q Query) Offset() int { return q.offset }

// Limit returns the page size.
func (q Query) Limit() int { return q.limit }

// ScoreThreshold returns the minimum composite score kept in the response.
func (q Query) ScoreThreshold() float64 { return q.scoreThreshold }

// Options returns the pipeline options.
func (q Query) Options() Options { return q.options }

// ResponseType derives the response kind from the options.
func (q Query) ResponseType() ResponseType {
	if q.options.GenerateAnswer {
		return ResponseCompletion
	}
	return ResponseRaw
}
