package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrCollectionNotFound signals an unknown collection identifier.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrInvalidQuery signals a malformed query value.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrUnauthorized signals a missing or invalid credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden signals a principal without access to any requested collection.
	ErrForbidden = errors.New("forbidden")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrLLMUnavailable signals that no chat provider could serve the request.
	ErrLLMUnavailable = errors.New("llm unavailable")
)

// EmbeddingError is returned when a query cannot be vectorized.
type EmbeddingError struct {
	Model string
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding error (model %s): %v", e.Model, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// RetrievalError is returned when one collection's vector store cannot be searched.
type RetrievalError struct {
	Collection string
	Err        error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval error (collection %s): %v", e.Collection, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// FederationError is returned when every federated branch failed.
type FederationError struct {
	Failures map[string]error
}

func (e *FederationError) Error() string {
	ids := e.collections()
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s: %v", id, e.Failures[id]))
	}
	return fmt.Sprintf("federation error: all %d collections failed (%s)", len(ids), strings.Join(parts, "; "))
}

// Unwrap exposes branch failures to errors.Is/As.
func (e *FederationError) Unwrap() []error {
	ids := e.collections()
	errs := make([]error, 0, len(ids))
	for _, id := range ids {
		errs = append(errs, e.Failures[id])
	}
	return errs
}

func (e *FederationError) collections() []string {
	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EmptyResultError is returned when retrieval succeeded but produced no candidates.
type EmptyResultError struct {
	Collections []string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("no results in collections %s", strings.Join(e.Collections, ", "))
}

// GenerationError is returned when answer synthesis fails.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation error (model %s): %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// PipelineError wraps a required stage failure with the stage name.
type PipelineError struct {
	Stage string
	Cause error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline stage %s failed: %v", e.Stage, e.Cause)
}

func (e *PipelineError) Unwrap() error { return e.Cause }

// ErrorKind names the taxonomy kind of err for API responses.
func ErrorKind(err error) string {
	var (
		embErr  *EmbeddingError
		retErr  *RetrievalError
		fedErr  *FederationError
		emptErr *EmptyResultError
		genErr  *GenerationError
	)
	switch {
	case errors.As(err, &embErr):
		return "embedding_error"
	case errors.As(err, &fedErr):
		return "federation_error"
	case errors.As(err, &retErr):
		return "retrieval_error"
	case errors.As(err, &emptErr):
		return "empty_result"
	case errors.As(err, &genErr):
		return "generation_error"
	default:
		return "pipeline_error"
	}
}
