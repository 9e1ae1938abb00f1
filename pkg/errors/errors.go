// Package errors provides custom error types for the stocksync system.
// These errors enable programmatic classification of failures into the
// fatal, supplier-scoped and item-scoped tiers used by the sync orchestrator.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is, As and Join are re-exported so callers need a single errors import.
var (
	Is   = errors.Is
	As   = errors.As
	Join = errors.Join
)

// Common sentinel errors for the stocksync system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates that the API rate limit has been exceeded
	ErrRateLimited = errors.New("rate limited")

	// ErrPlatformUnavailable indicates a 5xx or network failure talking to an API
	ErrPlatformUnavailable = errors.New("platform unavailable")

	// ErrAuthenticationFailed indicates a supplier or platform rejected our credentials
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrAborted indicates a supplier run was stopped by the zero-found guard
	ErrAborted = errors.New("sync aborted")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrNotImplemented indicates a supplier driver lacks a capability
	ErrNotImplemented = errors.New("not implemented")
)

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// APIError represents a non-success response from the commerce platform or a supplier API.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	Endpoint   string
	Err        error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error from %s (status %d): %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error from %s: %s", e.Service, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *APIError) Is(target error) bool {
	if e.StatusCode == http.StatusTooManyRequests {
		return target == ErrRateLimited
	}
	if e.StatusCode >= 500 {
		return target == ErrPlatformUnavailable
	}
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return target == ErrAuthenticationFailed
	}
	return false
}

// Transient reports whether the failure is worth retrying with backoff.
func (e *APIError) Transient() bool {
	return e.StatusCode >= 500 || (e.StatusCode == 0 && e.Err != nil)
}

// NewAPIError creates a new APIError
func NewAPIError(service string, statusCode int, message string) *APIError {
	return &APIError{
		Service:    service,
		StatusCode: statusCode,
		Message:    message,
	}
}

// ConfigError represents a configuration error. Configuration errors are fatal to a run.
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// AuthenticationError represents an authentication failure against a supplier or the platform
type AuthenticationError struct {
	Service string
	Method  string // "form", "token", "file", "header"
	Message string
	Err     error
}

// Error implements the error interface
func (e *AuthenticationError) Error() string {
	if e.Service != "" {
		return fmt.Sprintf("authentication error for %s (%s): %s", e.Service, e.Method, e.Message)
	}
	return fmt.Sprintf("authentication error (%s): %s", e.Method, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthenticationFailed
}

// NewAuthenticationError creates a new AuthenticationError
func NewAuthenticationError(service, method, message string, err error) *AuthenticationError {
	return &AuthenticationError{
		Service: service,
		Method:  method,
		Message: message,
		Err:     err,
	}
}

// SupplierError represents a supplier-scoped failure: the supplier's run stops,
// other suppliers continue.
type SupplierError struct {
	Supplier string
	State    string // pipeline state that was being entered when the failure happened
	Err      error
}

// Error implements the error interface
func (e *SupplierError) Error() string {
	if e.State != "" {
		return fmt.Sprintf("supplier %s failed at %s: %v", e.Supplier, e.State, e.Err)
	}
	return fmt.Sprintf("supplier %s failed: %v", e.Supplier, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *SupplierError) Unwrap() error {
	return e.Err
}

// NewSupplierError creates a new SupplierError
func NewSupplierError(supplier, state string, err error) *SupplierError {
	return &SupplierError{Supplier: supplier, State: state, Err: err}
}

// AbortError is raised when a search-based supplier returns nothing for a non-empty
// identifier set. It is treated as a systemic failure, never as "everything sold out".
type AbortError struct {
	Supplier string
	Searched int
	Found    int
}

// Error implements the error interface
func (e *AbortError) Error() string {
	return fmt.Sprintf("aborting sync for %s: 0 of %d searched identifiers found on supplier; "+
		"treating as authentication or scraping failure", e.Supplier, e.Searched)
}

// Is implements errors.Is support
func (e *AbortError) Is(target error) bool {
	return target == ErrAborted
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml", "csv"
	File    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("parse error in %s %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create", "open"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// ResourceError represents an error during resource operations
type ResourceError struct {
	Operation string // "fetch", "set", "resolve", "create"
	Resource  string // "products", "locations", "inventory level", "supplier"
	ID        string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ResourceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("failed to %s %s %s: %s", e.Operation, e.Resource, e.ID, e.Message)
	}
	return fmt.Sprintf("failed to %s %s: %s", e.Operation, e.Resource, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError creates a new ResourceError
func NewResourceError(operation, resource, id string, err error) *ResourceError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ResourceError{
		Operation: operation,
		Resource:  resource,
		ID:        id,
		Message:   message,
		Err:       err,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsRateLimited checks if an error is a rate limit error
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsPlatformUnavailable checks if an error indicates a 5xx or network failure
func IsPlatformUnavailable(err error) bool {
	return errors.Is(err, ErrPlatformUnavailable)
}

// IsAuthentication checks if an error is an authentication failure
func IsAuthentication(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed)
}

// IsAborted checks if an error came from the zero-found abort guard
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}

// AsAbort returns the AbortError in err's chain, if any.
func AsAbort(err error) (*AbortError, bool) {
	var abort *AbortError
	ok := errors.As(err, &abort)
	return abort, ok
}

// IsConfig checks if an error is a configuration error
func IsConfig(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// Helper wrapping functions for common patterns

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapResource wraps an error as a ResourceError
func WrapResource(operation, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return NewResourceError(operation, resource, id, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}
