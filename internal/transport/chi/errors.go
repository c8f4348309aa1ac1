package chi

import (
	"context"
	"errors"
	"net/http"

	"github.com/AlejoJamC/airweave/internal/domain"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// defaultErrorHandlers is ordered: client errors first, then the pipeline taxonomy.
func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, ErrorCodeInvalidQuery),
		sentinelHandler(domain.ErrUnauthorized, http.StatusUnauthorized, ErrorCodeUnauthorized),
		sentinelHandler(domain.ErrForbidden, http.StatusForbidden, ErrorCodeForbidden),
		sentinelHandler(domain.ErrCollectionNotFound, http.StatusNotFound, ErrorCodeCollectionNotFound),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, ErrorCodeRateLimited),
		typedHandler[*domain.EmptyResultError](http.StatusNotFound, ErrorCodeEmptyResult),
		typedHandler[*domain.EmbeddingError](http.StatusBadGateway, ErrorCodeEmbeddingError),
		typedHandler[*domain.FederationError](http.StatusBadGateway, ErrorCodeFederationError),
		typedHandler[*domain.RetrievalError](http.StatusBadGateway, ErrorCodeRetrievalError),
		typedHandler[*domain.GenerationError](http.StatusBadGateway, ErrorCodeGenerationError),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, ErrorCodeTimeout),
		typedHandler[*domain.PipelineError](http.StatusInternalServerError, ErrorCodePipelineError),
	}
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeStageError(w, status, code, sentinel.Error(), stageOf(err))
		return true
	}
}

// typedHandler matches a taxonomy error type anywhere in the chain.
func typedHandler[T error](status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		var target T
		if !errors.As(err, &target) {
			return false
		}
		writeStageError(w, status, code, target.Error(), stageOf(err))
		return true
	}
}

func stageOf(err error) string {
	var pErr *domain.PipelineError
	if errors.As(err, &pErr) {
		return pErr.Stage
	}
	return ""
}
