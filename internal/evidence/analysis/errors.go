package analysis

import (
	"errors"
	"fmt"

	"kycbuster/internal/evidence/models"
	dErrors "kycbuster/pkg/domain-errors"
)

// Category is the normalized failure taxonomy of the analysis capability.
type Category string

const (
	// CategoryUnconfigured means no credential or backend is available.
	// It blocks the whole workflow until configuration is fixed.
	CategoryUnconfigured Category = "unconfigured"

	// CategoryRateLimited means the backend refused the call for quota reasons.
	CategoryRateLimited Category = "rate_limited"

	// CategoryInvalidResponse means the backend answered but the payload does
	// not match the verdict shape.
	CategoryInvalidResponse Category = "invalid_response"

	// CategoryTransport covers network failures, timeouts and 5xx answers.
	CategoryTransport Category = "transport"
)

// Error is a categorized analysis failure.
type Error struct {
	Category Category
	Kind     models.Kind
	Message  string
	// Timeout marks transport failures caused by the call deadline.
	Timeout bool
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analysis %s [%s]: %s: %v", e.Kind, e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("analysis %s [%s]: %s", e.Kind, e.Category, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the user may retry the same stage action.
func (e *Error) Retryable() bool {
	return e.Category != CategoryUnconfigured
}

// NewError builds a categorized error. Backends use it so the service can
// keep their classification.
func NewError(category Category, message string, err error) *Error {
	return &Error{Category: category, Message: message, Err: err}
}

// CategoryOf extracts the category from an error chain, empty if none.
func CategoryOf(err error) Category {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Category
	}
	return ""
}

// IsRetryable reports whether err is a retryable analysis failure.
func IsRetryable(err error) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Retryable()
	}
	return false
}

// IsUnconfigured reports whether err means the capability is unavailable
// until configuration changes.
func IsUnconfigured(err error) bool {
	return CategoryOf(err) == CategoryUnconfigured
}

// toDomain wraps an analysis error with the domain code the HTTP layer maps
// to a status. The analysis error stays reachable through errors.As.
func toDomain(e *Error) error {
	switch e.Category {
	case CategoryUnconfigured:
		return dErrors.Wrap(e, dErrors.CodeUnavailable, "analysis capability is not configured")
	case CategoryRateLimited:
		return dErrors.Wrap(e, dErrors.CodeRateLimited, "analysis capability is rate limited, retry shortly")
	case CategoryInvalidResponse:
		return dErrors.Wrap(e, dErrors.CodeBadGateway, fmt.Sprintf("%s analysis returned an invalid response", e.Kind))
	default:
		if e.Timeout {
			return dErrors.Wrap(e, dErrors.CodeTimeout, fmt.Sprintf("%s analysis timed out", e.Kind))
		}
		return dErrors.Wrap(e, dErrors.CodeBadGateway, fmt.Sprintf("%s analysis failed", e.Kind))
	}
}
