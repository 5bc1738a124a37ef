package domain

import "fmt"

// Error types for consistent error handling across the engine. All errors
// are recoverable at the boundary: a failed mutation reports one of these
// and leaves every collection exactly as it was.

// ErrNotFound indicates a referenced entity does not exist in the store.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates malformed input to a mutation (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrConstraint indicates a structural invariant would break: deleting an
// account or category still referenced by transactions, or removing the
// last category of a type. The operation is refused, state unchanged.
type ErrConstraint struct {
	Message string
}

func (e *ErrConstraint) Error() string {
	return e.Message
}

// ErrImportFormat indicates a backup payload is missing required
// collections. Import aborts before any collection is touched.
type ErrImportFormat struct {
	Reason string
}

func (e *ErrImportFormat) Error() string {
	return fmt.Sprintf("invalid backup format: %s", e.Reason)
}

// ErrUnauthorized indicates an invalid PIN or unlock token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConflict indicates a resource already exists.
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrPersistence indicates a failure in the persistence collaborator. The
// in-memory state is only updated after the durable write succeeds, so a
// persistence error always means "nothing changed".
type ErrPersistence struct {
	Collection string
	Err        error
}

func (e *ErrPersistence) Error() string {
	return fmt.Sprintf("persistence error [%s]: %v", e.Collection, e.Err)
}

func (e *ErrPersistence) Unwrap() error {
	return e.Err
}
