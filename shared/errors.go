package shared

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// StoreErrorCode is the closed set of failure tags reported by the store
// layer. Components branch on these tags, never on error message text.
type StoreErrorCode string

const (
	StoreErrTimeout            StoreErrorCode = "timeout"
	StoreErrNotFound           StoreErrorCode = "not_found"
	StoreErrEmptyResult        StoreErrorCode = "empty_result"
	StoreErrUniqueViolation    StoreErrorCode = "unique_violation"
	StoreErrCheckViolation     StoreErrorCode = "check_violation"
	StoreErrQueryExhausted     StoreErrorCode = "query_exhausted"
	StoreErrProvisioningFailed StoreErrorCode = "provisioning_failed"
	StoreErrGeneratorInvalid   StoreErrorCode = "generator_invalid"
)

// StoreError is a tagged store-layer failure.
type StoreError struct {
	Code    StoreErrorCode
	Message string
	Cause   error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[store:%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[store:%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewStoreError creates a tagged store error.
func NewStoreError(code StoreErrorCode, message string, cause error) *StoreError {
	return &StoreError{Code: code, Message: message, Cause: cause}
}

// IsStoreErrorCode reports whether err carries the given tag anywhere in its
// chain.
func IsStoreErrorCode(err error, code StoreErrorCode) bool {
	for err != nil {
		var storeErr *StoreError
		if !errors.As(err, &storeErr) {
			return false
		}
		if storeErr.Code == code {
			return true
		}
		err = storeErr.Cause
	}
	return false
}

// ErrorCategory represents different types of errors that can occur
type ErrorCategory string

const (
	ErrorCategoryConfiguration ErrorCategory = "configuration"
	ErrorCategoryDatabase      ErrorCategory = "database"
	ErrorCategoryValidation    ErrorCategory = "validation"
	ErrorCategoryResource      ErrorCategory = "resource"
	ErrorCategoryTimeout       ErrorCategory = "timeout"
	ErrorCategoryQuota         ErrorCategory = "quota"
)

// ServiceError represents a standardized error with additional context
type ServiceError struct {
	Category    ErrorCategory `json:"category"`
	Code        string        `json:"code"`
	Message     string        `json:"message"`
	Timestamp   time.Time     `json:"timestamp"`
	ServiceName string        `json:"service_name"`
	Operation   string        `json:"operation"`
	Retryable   bool          `json:"retryable"`
	Cause       error         `json:"-"` // Original error, not serialized
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// NewServiceError creates a new service error
func NewServiceError(category ErrorCategory, code, message, serviceName, operation string, retryable bool, cause error) *ServiceError {
	return &ServiceError{
		Category:    category,
		Code:        code,
		Message:     message,
		Timestamp:   time.Now(),
		ServiceName: serviceName,
		Operation:   operation,
		Retryable:   retryable,
		Cause:       cause,
	}
}

// IsRetryable returns whether the error is retryable
func (e *ServiceError) IsRetryable() bool {
	return e.Retryable
}

// LogError logs the error with structured fields
func (e *ServiceError) LogError() {
	logrus.WithFields(logrus.Fields{
		"error_category":   e.Category,
		"error_code":       e.Code,
		"error_message":    e.Message,
		"service_name":     e.ServiceName,
		"operation":        e.Operation,
		"retryable":        e.Retryable,
		"underlying_error": e.Cause,
	}).Error("Service error occurred")
}

// WrapError wraps an existing error with service error context
func WrapError(err error, category ErrorCategory, code, serviceName, operation string, retryable bool) *ServiceError {
	if err == nil {
		return nil
	}

	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		serviceErr.ServiceName = serviceName
		serviceErr.Operation = operation
		return serviceErr
	}

	return NewServiceError(category, code, err.Error(), serviceName, operation, retryable, err)
}

// IsRetryableError checks if an error is retryable. Timeouts and tagged
// not-found results are terminal: retrying cannot change their outcome.
func IsRetryableError(err error) bool {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.IsRetryable()
	}

	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		switch storeErr.Code {
		case StoreErrTimeout, StoreErrNotFound, StoreErrGeneratorInvalid:
			return false
		}
		return true
	}

	return true
}
