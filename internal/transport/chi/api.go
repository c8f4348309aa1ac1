package chi

import "time"

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest         ErrorCode = "bad_request"
	ErrorCodeValidationFailed   ErrorCode = "validation_failed"
	ErrorCodeInvalidQuery       ErrorCode = "invalid_query"
	ErrorCodeUnauthorized       ErrorCode = "unauthorized"
	ErrorCodeForbidden          ErrorCode = "forbidden"
	ErrorCodeCollectionNotFound ErrorCode = "collection_not_found"
	ErrorCodeRateLimited        ErrorCode = "rate_limited"
	ErrorCodeEmbeddingError     ErrorCode = "embedding_error"
	ErrorCodeRetrievalError     ErrorCode = "retrieval_error"
	ErrorCodeFederationError    ErrorCode = "federation_error"
	ErrorCodeEmptyResult        ErrorCode = "empty_result"
	ErrorCodeGenerationError    ErrorCode = "generation_error"
	ErrorCodeTimeout            ErrorCode = "timeout"
	ErrorCodePipelineError      ErrorCode = "pipeline_error"
	ErrorCodeInternalError      ErrorCode = "internal_error"
)

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Stage   string    `json:"stage,omitempty"`
}

// ErrorResponse wraps ErrorBody.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// RangeFilter bounds a numeric payload field.
type RangeFilter struct {
	Gt  *float64 `json:"gt,omitempty"`
	Gte *float64 `json:"gte,omitempty"`
	Lt  *float64 `json:"lt,omitempty"`
	Lte *float64 `json:"lte,omitempty"`
}

// FilterCondition is a match, match-any or range clause on one key.
type FilterCondition struct {
	Key   string       `json:"key" validate:"required"`
	Match *string      `json:"match,omitempty"`
	Any   []string     `json:"any,omitempty" validate:"omitempty,dive,required"`
	Range *RangeFilter `json:"range,omitempty"`
}

// FilterExpression groups conditions.
type FilterExpression struct {
	Must    []FilterCondition `json:"must,omitempty" validate:"dive"`
	Should  []FilterCondition `json:"should,omitempty" validate:"dive"`
	MustNot []FilterCondition `json:"must_not,omitempty" validate:"dive"`
}

// SearchRequest is the body of the search endpoints.
type SearchRequest struct {
	Query          string            `json:"query" validate:"required,max=4096"`
	Collections    []string          `json:"collections,omitempty" validate:"omitempty,max=16,dive,required"`
	Filter         *FilterExpression `json:"filter,omitempty"`
	Offset         int               `json:"offset" validate:"min=0"`
	Limit          int               `json:"limit" validate:"min=0"`
	ScoreThreshold float64           `json:"score_threshold" validate:"min=0,max=1"`
	ResponseType   string            `json:"response_type,omitempty" validate:"omitempty,oneof=raw completion"`

	ExpandQuery                *bool    `json:"expand_query,omitempty"`
	MaxExpansions              *int     `json:"max_expansions,omitempty" validate:"omitempty,min=1,max=10"`
	InterpretFilters           *bool    `json:"interpret_filters,omitempty"`
	Rerank                     *bool    `json:"rerank,omitempty"`
	TemporalDecayHalflifeHours *float64 `json:"temporal_decay_halflife_hours,omitempty" validate:"omitempty,min=0"`
	TopK                       *int     `json:"top_k,omitempty" validate:"omitempty,min=1"`
	FederationTimeoutMs        *int     `json:"federation_timeout_ms,omitempty" validate:"omitempty,min=1"`
	RetrievalStrategy          *string  `json:"retrieval_strategy,omitempty" validate:"omitempty,oneof=hybrid neural keyword"`
}

// ScoreContribution is one stage's effect on a result's score.
type ScoreContribution struct {
	Stage string  `json:"stage"`
	Op    string  `json:"op"`
	Value float64 `json:"value"`
}

// SearchResultItem is one ranked result.
type SearchResultItem struct {
	ID         string              `json:"id"`
	Collection string              `json:"collection"`
	Score      float64             `json:"score"`
	Content    string              `json:"content"`
	Tags       map[string]string   `json:"tags,omitempty"`
	Numerics   map[string]float64  `json:"numerics,omitempty"`
	Timestamp  *time.Time          `json:"timestamp,omitempty"`
	Scoring    []ScoreContribution `json:"scoring,omitempty"`
}

// Completion is a generated answer.
type Completion struct {
	Text      string   `json:"text"`
	Citations []string `json:"citations"`
	Model     string   `json:"model,omitempty"`
}

// Degradation marks a stage, or one target of a stage, that was skipped.
type Degradation struct {
	Stage  string `json:"stage"`
	Target string `json:"target,omitempty"`
	Reason string `json:"reason"`
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	QueryID         string             `json:"query_id"`
	Status          string             `json:"status"`
	Results         []SearchResultItem `json:"results"`
	Completion      *Completion        `json:"completion,omitempty"`
	ExpandedQueries []string           `json:"expanded_queries"`
	Degraded        []Degradation      `json:"degraded,omitempty"`
	DurationMs      int64              `json:"duration_ms"`
}

// Collection is a searchable collection.
type Collection struct {
	ID             string   `json:"id"`
	Backend        string   `json:"backend"`
	EmbeddingModel string   `json:"embedding_model"`
	Dimensions     int      `json:"dimensions,omitempty"`
	Sources        []string `json:"sources,omitempty"`
}

// CollectionListResponse pages collections by cursor.
type CollectionListResponse struct {
	Items      []Collection `json:"items"`
	NextCursor *string      `json:"next_cursor,omitempty"`
	HasMore    bool         `json:"has_more"`
}

// ListCollectionsParams are the query parameters of GET /collections.
type ListCollectionsParams struct {
	Cursor *string
	Limit  *int
}

// HealthResponse reports component health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
