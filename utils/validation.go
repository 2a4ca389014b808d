package utils

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate = validator.New()

// ValidateStruct validates a struct using go-playground/validator
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewValidationError(validationErrors)
		}
		return err
	}
	return nil
}

// ValidationError wraps validation errors with structured details
type ValidationError struct {
	Message string
	Fields  map[string]string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return e.Message
}

// Details converts field errors to the generic details map used in
// HTTP error responses.
func (e *ValidationError) Details() map[string]interface{} {
	details := make(map[string]interface{}, len(e.Fields))
	for field, msg := range e.Fields {
		details[field] = msg
	}
	return details
}

// NewValidationError creates a ValidationError from validator.ValidationErrors
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	fields := make(map[string]string)
	for _, err := range errs {
		field := err.Field()
		switch err.Tag() {
		case "required":
			fields[field] = fmt.Sprintf("%s is required", field)
		case "oneof":
			fields[field] = fmt.Sprintf("%s must be one of: %s", field, err.Param())
		case "min":
			fields[field] = fmt.Sprintf("%s is too short", field)
		case "max":
			fields[field] = fmt.Sprintf("%s is too long", field)
		default:
			fields[field] = fmt.Sprintf("%s failed %s validation", field, err.Tag())
		}
	}
	return &ValidationError{
		Message: "validation failed",
		Fields:  fields,
	}
}
