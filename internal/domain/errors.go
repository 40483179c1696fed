package domain

import (
	"fmt"
	"strings"
)

// ValidationError means required user input was missing or malformed.
// Nothing is mutated when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NotFoundError means an operation referenced an unknown record id.
type NotFoundError struct {
	Kind string // "patient", "session"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// GenerationError wraps a network, timeout or service failure of the
// routine generation call.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return "routine generation failed: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error { return e.Err }

// SchemaValidationError means the generation service answered with data that
// does not match the routine schema.
type SchemaValidationError struct {
	Problems []string
	Err      error
}

func (e *SchemaValidationError) Error() string {
	msg := "generation response does not match routine schema"
	if len(e.Problems) > 0 {
		msg += ": " + strings.Join(e.Problems, "; ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaValidationError) Unwrap() error { return e.Err }

// CorruptStateError means the stored patient document could not be decoded.
type CorruptStateError struct {
	Slot string
	Err  error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("stored state in slot %q is corrupt: %v", e.Slot, e.Err)
}

func (e *CorruptStateError) Unwrap() error { return e.Err }
