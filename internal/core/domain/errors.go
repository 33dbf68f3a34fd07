package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrStaleVersion       = errors.New("stale record version")
	ErrDuplicateSignature = errors.New("duplicate signature")
	ErrAtomicity          = errors.New("atomic commit failed")
)

// ValidationError reports a malformed request. Nothing was persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StaleVersionError is returned when a signer reviewed a state of the record
// that is no longer the live one.
type StaleVersionError struct {
	Kind         Kind
	ID           int64
	Reviewed     int64
	Live         int64
	HashMismatch bool
}

func (e *StaleVersionError) Error() string {
	if e.HashMismatch {
		return fmt.Sprintf("stale record version: %s %d record hash does not match live version %d", e.Kind, e.ID, e.Live)
	}
	return fmt.Sprintf("stale record version: %s %d reviewed at version %d, live version is %d", e.Kind, e.ID, e.Reviewed, e.Live)
}

func (e *StaleVersionError) Unwrap() error { return ErrStaleVersion }

type NotFoundError struct {
	Kind Kind
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

type DuplicateSignatureError struct {
	TargetType Kind
	TargetID   int64
	Version    int64
	ReasonCode string
	SignerID   int64
}

func (e *DuplicateSignatureError) Error() string {
	return fmt.Sprintf("duplicate signature: %s %d version %d reason %s signer %d already signed",
		e.TargetType, e.TargetID, e.Version, e.ReasonCode, e.SignerID)
}

func (e *DuplicateSignatureError) Unwrap() error { return ErrDuplicateSignature }

// AtomicityError wraps a transaction that could not commit. No partial effect
// is visible, but the caller should re-query before retrying.
type AtomicityError struct {
	Op  string
	Err error
}

func (e *AtomicityError) Error() string {
	return fmt.Sprintf("atomic commit failed: %s: %v", e.Op, e.Err)
}

func (e *AtomicityError) Unwrap() []error { return []error{ErrAtomicity, e.Err} }

func (e *AtomicityError) Retryable() bool { return true }

// SchemaViolationError is returned by the validation layer when entity fields do
// not conform to the kind's JSON schema.
type SchemaViolationError struct {
	Errors []string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("schema validation failed: %s", strings.Join(e.Errors, "; "))
}
