package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeCache         ErrorType = "cache_unavailable"
	ErrorTypeRetrieval     ErrorType = "retrieval"
	ErrorTypePolicyEngine  ErrorType = "policy_engine"
	ErrorTypeGuard         ErrorType = "guard"
	ErrorTypeGeneration    ErrorType = "generation"
	ErrorTypeInternal      ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Validation / configuration
	ErrEmptyQuery     = NewDomainError(ErrorTypeValidation, "query cannot be empty", nil)
	ErrUnknownRole    = NewDomainError(ErrorTypeConfiguration, "role is not defined by the access policy", nil)
	ErrUnknownProfile = NewDomainError(ErrorTypeConfiguration, "unknown application profile", nil)
	ErrMissingTenant  = NewDomainError(ErrorTypeConfiguration, "tenant is required", nil)

	// Cache: recovered locally, the pipeline proceeds without caching.
	ErrCacheUnavailable = NewDomainError(ErrorTypeCache, "semantic cache backend unreachable", nil)

	// Retrieval: an embedding failure only takes out the dense side, so
	// it classifies with retrieval and the hybrid survivor logic applies.
	ErrRetrieverFailed      = NewDomainError(ErrorTypeRetrieval, "retriever search failed", nil)
	ErrRetrievalUnavailable = NewDomainError(ErrorTypeRetrieval, "all retrievers failed", nil)
	ErrEmbeddingFailed      = NewDomainError(ErrorTypeRetrieval, "query embedding failed", nil)

	// Authorization: never swallowed as success. Every candidate is denied
	// when the policy engine cannot be reached (fail-closed).
	ErrPolicyEngineUnreachable = NewDomainError(ErrorTypePolicyEngine, "policy engine unreachable", nil)
	ErrPolicyCheckFailed       = NewDomainError(ErrorTypePolicyEngine, "policy check failed", nil)

	// Guard: recovered locally by permanent fallback to the base generator.
	ErrGuardInit        = NewDomainError(ErrorTypeGuard, "safety guard failed to initialize", nil)
	ErrGuardUnavailable = NewDomainError(ErrorTypeGuard, "safety guard unavailable", nil)

	// Generation
	ErrGenerationFailed = NewDomainError(ErrorTypeGeneration, "answer generation failed", nil)
)

// Error type checking helper functions

// IsConfigurationError checks if an error is a configuration error
func IsConfigurationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeConfiguration
	}
	return false
}

// IsCacheError checks if an error is a cache availability error
func IsCacheError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeCache
	}
	return false
}

// IsRetrievalError checks if an error is a retrieval error
func IsRetrievalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeRetrieval
	}
	return false
}

// IsPolicyEngineError checks if an error is a policy engine error
func IsPolicyEngineError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypePolicyEngine
	}
	return false
}

// IsGuardError checks if an error is a guard error
func IsGuardError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeGuard
	}
	return false
}

// IsGenerationError checks if an error is a generation error
func IsGenerationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeGeneration
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
