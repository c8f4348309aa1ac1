package airweave

import chitransport "github.com/AlejoJamC/airweave/internal/transport/chi"

// Wire types shared with the HTTP API.
type (
	SearchRequest     = chitransport.SearchRequest
	SearchResponse    = chitransport.SearchResponse
	SearchResultItem  = chitransport.SearchResultItem
	ScoreContribution = chitransport.ScoreContribution
	Completion        = chitransport.Completion
	Degradation       = chitransport.Degradation
	FilterExpression  = chitransport.FilterExpression
	FilterCondition   = chitransport.FilterCondition
	RangeFilter       = chitransport.RangeFilter
	Collection        = chitransport.Collection
)

// HealthStatus represents the aggregated service health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component → "ok"/"error"
}
