/*
errors.go - Centralized error taxonomy for the clinic domain

PURPOSE:
  All domain error types in one place. The API layer maps these onto HTTP
  status codes; the billing workflows return them to force a full rollback.

ERROR CATEGORIES:
  1. Validation - rejected before any mutation (missing patientId, bad date)
  2. Not found - no matching row, no mutation attempted
  3. Conflict - duplicate active queue entry; existing record surfaced
  4. Precondition - treatment intake without a queued patient; rolls back
  5. Internal - unexpected store failure mid-transaction; rolls back

USAGE:
  if errors.Is(err, clinic.ErrNotQueued) { ... }

SEE ALSO:
  - ../billing: returns these from workflow transactions
  - ../api/handlers.go: status-code mapping
*/
package clinic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed or incomplete input. Nothing
	// has been written when it is returned.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an insert would violate a uniqueness rule,
	// e.g. a second active queue entry for the same patient and date.
	ErrConflict = errors.New("conflict")

	// ErrNotQueued is returned by treatment intake when the patient has no
	// active queue entry today. The entire intake transaction is rolled back.
	ErrNotQueued = errors.New("no queue entry found for this patient today")

	// ErrUnauthorized is returned by the credential check on a bad login.
	ErrUnauthorized = errors.New("unauthorized")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the field that failed validation.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("missing %s", e.Field)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// MissingField builds the common "required field absent" validation error.
func MissingField(field string) error {
	return &ValidationError{Field: field}
}

// QueueConflictError is returned when a patient already has an active queue
// entry for the date. The existing entry is surfaced so the caller can show
// it instead of creating a duplicate.
type QueueConflictError struct {
	Existing QueueEntry
}

func (e *QueueConflictError) Error() string {
	return fmt.Sprintf("patient %d is already in the queue for %s (entry %d)",
		e.Existing.PatientID, e.Existing.Date, e.Existing.ID)
}

func (e *QueueConflictError) Unwrap() error { return ErrConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError reports whether the error is the caller's fault rather than
// a store failure. Client errors never leave partial financial state behind.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNotQueued) ||
		errors.Is(err, ErrUnauthorized)
}
