package utils

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

func ProcessValidationErrors(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}

	errorResponse := make(map[string]string)
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

// BindingError renders a gin binding failure as a ValidationError.
func BindingError(err error) error {
	fields := ProcessValidationErrors(err)
	if len(fields) == 0 {
		return NewValidationError("", "invalid request")
	}
	parts := make([]string, 0, len(fields))
	for field, tag := range fields {
		parts = append(parts, field+" ("+tag+")")
	}
	return NewValidationError("", "invalid fields: "+strings.Join(parts, ", "))
}
