package utils

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrMappingNotConfigured marks a field mapping without a usable legacy key column.
var ErrMappingNotConfigured = errors.New("field mapping is not configured: key column is empty")

// NotFoundError is returned when a staged item or the legacy row it targets does not exist.
type NotFoundError struct {
	Resource string
	Key      string
	Message  string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Key == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s not found (%s)", e.Resource, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrorRecordNotFound }

func NewNotFound(resource, key string) error {
	return &NotFoundError{Resource: resource, Key: key}
}

// FetchError wraps network failures and non-2xx responses while fetching a source page.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError is returned when a fetched document cannot be parsed.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConfigurationError blocks reconciliation until the operator fixes the mapping.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func NewConfigurationError(reason string, err error) error {
	return &ConfigurationError{Reason: reason, Err: err}
}

// ValidationError is a malformed operator request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// HTTPStatus maps the error taxonomy onto response codes.
func HTTPStatus(err error) int {
	var (
		notFound   *NotFoundError
		fetchErr   *FetchError
		parseErr   *ParseError
		confErr    *ConfigurationError
		validation *ValidationError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound), errors.Is(err, ErrorRecordNotFound):
		return http.StatusNotFound
	case errors.As(err, &confErr), errors.Is(err, ErrMappingNotConfigured):
		return http.StatusConflict
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
