package domain

import "fmt"

// Error types for consistent error handling across the service.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrDuplicateKey is returned by a store Create when the email already exists.
type ErrDuplicateKey struct {
	Key string
}

func (e *ErrDuplicateKey) Error() string {
	return fmt.Sprintf("duplicate key: %s", e.Key)
}

// ErrStoreFailure wraps a backend failure with the operation that hit it.
type ErrStoreFailure struct {
	Op  string
	Err error
}

func (e *ErrStoreFailure) Error() string {
	return fmt.Sprintf("store failure [%s]: %v", e.Op, e.Err)
}

func (e *ErrStoreFailure) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrLinkRepair means the customer record itself was written but the
// counterpart links were not. Retrying the same request converges.
type ErrLinkRepair struct {
	Email string
	Err   error
}

func (e *ErrLinkRepair) Error() string {
	return fmt.Sprintf("customer %s saved but reporting links were not repaired, retry the request: %v", e.Email, e.Err)
}

func (e *ErrLinkRepair) Unwrap() error {
	return e.Err
}
