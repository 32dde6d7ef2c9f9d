package workout

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the engine. Callers match them with errors.Is.
var (
	ErrNotFoundOrUnauthorized = errors.New("not found or unauthorized")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrValidation             = errors.New("validation failed")
	ErrPersistence            = errors.New("persistence failure")
	ErrInconsistentData       = errors.New("workout missing denormalized data, reset and restart the workout")
)

// Store-level conditions. Store and Catalog implementations return these and
// the engine translates them into the kinds above.
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("unique constraint conflict")
)

// Kind returns a short label for the error kind, used for metrics and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFoundOrUnauthorized):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrInconsistentData):
		return "inconsistent_data"
	default:
		return "persistence"
	}
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func transitionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}

// classify maps a store or catalog error onto an engine error kind. Errors
// that already carry a kind pass through with the operation prefixed.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFoundOrUnauthorized)
	case errors.Is(err, ErrNotFoundOrUnauthorized),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrInconsistentData),
		errors.Is(err, ErrPersistence):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
	}
}
