package airweave

import (
	"fmt"

	"github.com/AlejoJamC/airweave/internal/domain"
	chitransport "github.com/AlejoJamC/airweave/internal/transport/chi"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidQuery       = domain.ErrInvalidQuery
	ErrUnauthorized       = domain.ErrUnauthorized
	ErrForbidden          = domain.ErrForbidden
	ErrCollectionNotFound = domain.ErrCollectionNotFound
	ErrRateLimited        = domain.ErrRateLimited
)

// APIError is a non-2xx response from the search API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Stage      string // pipeline stage that failed, if any
}

func (e *APIError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("airweave: %d %s at %s: %s", e.StatusCode, e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("airweave: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Is maps API error codes onto the re-exported sentinels.
func (e *APIError) Is(target error) bool {
	switch chitransport.ErrorCode(e.Code) {
	case chitransport.ErrorCodeInvalidQuery, chitransport.ErrorCodeValidationFailed:
		return target == ErrInvalidQuery
	case chitransport.ErrorCodeUnauthorized:
		return target == ErrUnauthorized
	case chitransport.ErrorCodeForbidden:
		return target == ErrForbidden
	case chitransport.ErrorCodeCollectionNotFound:
		return target == ErrCollectionNotFound
	case chitransport.ErrorCodeRateLimited:
		return target == ErrRateLimited
	}
	return false
}
