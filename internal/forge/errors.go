package forge

import (
	"errors"
	"fmt"
	"net/http"

	derrors "github.com/climaterisk/sitedeploy/internal/errors"
)

// ErrTokenRequired is returned when a client is built without a credential.
var ErrTokenRequired = derrors.AuthError("GitHub token required").Build()

// APIError is a non-2xx response from the GitHub API.
type APIError struct {
	StatusCode       int
	Status           string
	Method           string
	Endpoint         string
	Message          string
	DocumentationURL string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("GitHub API error: %s %s: %s", e.Method, e.Endpoint, e.Status)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// IsConflict reports whether err is a 409 response.
func IsConflict(err error) bool {
	return statusOf(err) == http.StatusConflict
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// StatusCode returns the HTTP status of an API error, or 0.
func StatusCode(err error) int {
	return statusOf(err)
}

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// classify wraps an APIError in a ClassifiedError with a category matching its status.
func classify(apiErr *APIError) error {
	var b *derrors.ErrorBuilder
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		b = derrors.WrapError(apiErr, derrors.CategoryAuth, "GitHub rejected the credentials").UserAction()
	case http.StatusNotFound:
		b = derrors.WrapError(apiErr, derrors.CategoryNotFound, "GitHub resource not found")
	case http.StatusConflict:
		b = derrors.WrapError(apiErr, derrors.CategoryAlreadyExists, "GitHub resource already exists")
	case http.StatusTooManyRequests:
		b = derrors.WrapError(apiErr, derrors.CategoryForge, "GitHub rate limit exceeded").WithRetry(derrors.RetryRateLimit)
	default:
		b = derrors.WrapError(apiErr, derrors.CategoryForge, "GitHub API request failed")
		if apiErr.StatusCode >= 500 {
			b = b.Retryable()
		}
	}
	return b.WithContext("status", apiErr.StatusCode).
		WithContext("method", apiErr.Method).
		WithContext("endpoint", apiErr.Endpoint).
		Build()
}
