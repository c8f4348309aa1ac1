package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/AlejoJamC/airweave/internal/domain"
	"github.com/AlejoJamC/airweave/internal/domain/search/mode"
	"github.com/AlejoJamC/airweave/internal/domain/search/query"
	healthuc "github.com/AlejoJamC/airweave/internal/usecase/health"
	searchuc "github.com/AlejoJamC/airweave/internal/usecase/search"
)

const maxBodyBytes = 1 << 20

// Searcher runs a search request.
type Searcher interface {
	Search(ctx context.Context, req searchuc.Request) (*searchuc.Response, error)
}

// CollectionLister lists searchable collections.
type CollectionLister interface {
	List(ctx context.Context) []domain.Collection
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server implements ServerInterface for the chi router.
type Server struct {
	search        Searcher
	collections   CollectionLister
	health        HealthChecker
	validate      *validator.Validate
	logger        *zap.Logger
	errorHandlers []errorHandler
}

var _ ServerInterface = (*Server)(nil)

// NewServer creates an HTTP API server.
func NewServer(
	search Searcher,
	collections CollectionLister,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	return &Server{
		search:        search,
		collections:   collections,
		health:        health,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	s.runSearch(w, r, nil)
}

// SearchCollection handles POST /collections/{collection}/search.
func (s *Server) SearchCollection(w http.ResponseWriter, r *http.Request, collection string) {
	s.runSearch(w, r, []string{collection})
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, pathCollections []string) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "missing principal")
		return
	}

	var body SearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, validationMessage(err))
		return
	}

	req, err := searchRequestFromAPI(body, principal)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}
	if pathCollections != nil {
		req.Collections = pathCollections
	}

	resp, err := s.search.Search(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponseToAPI(resp))
}

// ListCollections handles GET /collections.
func (s *Server) ListCollections(w http.ResponseWriter, r *http.Request, params ListCollectionsParams) {
	cols := s.collections.List(r.Context())

	items := make([]Collection, len(cols))
	for i, c := range cols {
		items[i] = collectionToAPI(c)
	}

	writeJSON(w, http.StatusOK, paginateCollections(items, params.Cursor, params.Limit))
}

func paginateCollections(items []Collection, cursor *string, limitPtr *int) CollectionListResponse {
	limit := 20
	if limitPtr != nil && *limitPtr > 0 {
		limit = *limitPtr
	}

	startIdx := 0
	if cursor != nil && *cursor != "" {
		for i, item := range items {
			if item.ID == *cursor {
				startIdx = i + 1
				break
			}
		}
	}

	end := min(startIdx+limit, len(items))
	page := items[startIdx:end]
	hasMore := end < len(items)

	resp := CollectionListResponse{
		Items:   page,
		HasMore: hasMore,
	}
	if hasMore && len(page) > 0 {
		c := page[len(page)-1].ID
		resp.NextCursor = &c
	}
	return resp
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeStageError(w, status, code, message, "")
}

func writeStageError(w http.ResponseWriter, status int, code ErrorCode, message, stage string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{
		Code:    code,
		Message: message,
		Stage:   stage,
	}})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
}

func searchRequestFromAPI(body SearchRequest, principal domain.Principal) (searchuc.Request, error) {
	filters, err := filtersFromAPI(body.Filter)
	if err != nil {
		return searchuc.Request{}, fmt.Errorf("parse filter: %w", err)
	}

	o := searchuc.Overrides{
		ExpandQueries:  body.ExpandQuery,
		MaxExpansions:  body.MaxExpansions,
		FiltersEnabled: body.InterpretFilters,
		Rerank:         body.Rerank,
		TopK:           body.TopK,
	}
	if h := body.TemporalDecayHalflifeHours; h != nil {
		d := time.Duration(*h * float64(time.Hour))
		o.TemporalDecayHalflife = &d
	}
	if ms := body.FederationTimeoutMs; ms != nil {
		d := time.Duration(*ms) * time.Millisecond
		o.FederationTimeout = &d
	}
	if rs := body.RetrievalStrategy; rs != nil {
		m := mode.Mode(*rs)
		o.Strategy = &m
	}

	return searchuc.Request{
		Text:           body.Query,
		Principal:      principal,
		Collections:    body.Collections,
		Filters:        filters,
		Offset:         body.Offset,
		Limit:          body.Limit,
		ScoreThreshold: body.ScoreThreshold,
		ResponseType:   query.ResponseType(body.ResponseType),
		Overrides:      o,
	}, nil
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	for _, h := range s.errorHandlers {
		if h(w, err) {
			s.logger.Warn("search error", zap.String("kind", domain.ErrorKind(err)), zap.Error(err))
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
