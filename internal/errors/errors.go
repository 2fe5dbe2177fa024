// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Fetch failure kinds. Every provider failure unwraps to exactly one of these.
var (
	ErrMissingCredential      = errors.New("missing credential")
	ErrUnsupportedGranularity = errors.New("unsupported granularity")
	ErrNoData                 = errors.New("no data")
	ErrNetworkTimeout         = errors.New("network timeout")
	ErrAllSourcesFailed       = errors.New("all sources failed")
)

// Standard sentinel errors
var (
	ErrCircuitOpen      = errors.New("circuit breaker is open")
	ErrRateLimited      = errors.New("rate limited")
	ErrUpstream         = errors.New("upstream error")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrDataNotFound     = errors.New("data not found")
	ErrDatabaseError    = errors.New("database error")
	ErrInputValidation  = errors.New("input validation failed")
	ErrCredentialAccess = errors.New("credential access denied")
)

// FetchError is a typed failure from a single provider attempt.
type FetchError struct {
	Provider string
	Symbol   string
	Kind     error
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch error [%s] %s: %v: %v", e.Provider, e.Symbol, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch error [%s] %s: %v", e.Provider, e.Symbol, e.Kind)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewFetchError creates a new FetchError.
func NewFetchError(provider, symbol string, kind, err error) *FetchError {
	return &FetchError{
		Provider: provider,
		Symbol:   symbol,
		Kind:     kind,
		Err:      err,
	}
}

// Attempt records the outcome of one provider attempt inside a fallback chain.
type Attempt struct {
	Provider string
	Err      error
}

// AllSourcesFailedError is returned when every provider, including the scraper, failed.
type AllSourcesFailedError struct {
	Symbol   string
	Range    string
	Attempts []Attempt
}

func (e *AllSourcesFailedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Provider, a.Err))
	}
	return fmt.Sprintf("all sources failed for %s (%s): [%s]", e.Symbol, e.Range, strings.Join(parts, "; "))
}

func (e *AllSourcesFailedError) Unwrap() error {
	return ErrAllSourcesFailed
}

// NewAllSourcesFailedError creates a new AllSourcesFailedError.
func NewAllSourcesFailedError(symbol, rangeTag string, attempts []Attempt) *AllSourcesFailedError {
	return &AllSourcesFailedError{
		Symbol:   symbol,
		Range:    rangeTag,
		Attempts: attempts,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// DataError represents a data-related error.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// NarrativeError is a failure from the optional narrative collaborator.
type NarrativeError struct {
	Model     string
	Operation string
	Err       error
}

func (e *NarrativeError) Error() string {
	return fmt.Sprintf("narrative error [%s] %s: %v", e.Model, e.Operation, e.Err)
}

func (e *NarrativeError) Unwrap() error {
	return e.Err
}

// NewNarrativeError creates a new NarrativeError.
func NewNarrativeError(model, operation string, err error) *NarrativeError {
	return &NarrativeError{
		Model:     model,
		Operation: operation,
		Err:       err,
	}
}

// SecurityError represents a security-related error.
type SecurityError struct {
	Operation string
	Reason    string
	Err       error
}

func (e *SecurityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("security error [%s]: %s: %v", e.Operation, e.Reason, e.Err)
	}
	return fmt.Sprintf("security error [%s]: %s", e.Operation, e.Reason)
}

func (e *SecurityError) Unwrap() error {
	return e.Err
}

// NewSecurityError creates a new SecurityError.
func NewSecurityError(operation, reason string, err error) *SecurityError {
	return &SecurityError{
		Operation: operation,
		Reason:    reason,
		Err:       err,
	}
}

// Recoverable reports whether err is a per-provider failure that the fallback
// chain should absorb by moving on to the next provider.
func Recoverable(err error) bool {
	return errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, ErrUnsupportedGranularity) ||
		errors.Is(err, ErrNoData) ||
		errors.Is(err, ErrNetworkTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUpstream) ||
		errors.Is(err, ErrCircuitOpen)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
