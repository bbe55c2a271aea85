package contract

import (
	"errors"
	"fmt"

	"github.com/draftline/draftline/internal/rules"
)

// ErrorCode categorizes lifecycle errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a missing instance, block, or version.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeNoPublishedVersion indicates a block with no published
	// version blocked instance creation or pin resolution.
	ErrCodeNoPublishedVersion ErrorCode = "NO_PUBLISHED_VERSION"

	// ErrCodeTargetNotPublished indicates an upgrade target template
	// version that is not in published status.
	ErrCodeTargetNotPublished ErrorCode = "TARGET_NOT_PUBLISHED"

	// ErrCodeInvalidState indicates an operation that is not valid for
	// the instance's current lifecycle state or its preconditions.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"

	// ErrCodeImmutabilityViolation indicates an attempted mutation of
	// frozen fields on a completed or archived instance.
	ErrCodeImmutabilityViolation ErrorCode = "IMMUTABILITY_VIOLATION"

	// ErrCodeConcurrentModification indicates a lost optimistic-lock
	// race. The whole operation is safe to retry.
	ErrCodeConcurrentModification ErrorCode = "CONCURRENT_MODIFICATION"

	// ErrCodeConflictBlocking indicates completion was attempted while
	// hard conflicts exist. The error carries the conflict list.
	ErrCodeConflictBlocking ErrorCode = "CONFLICT_BLOCKING"
)

// Error is a structured lifecycle error. The structured fields give the
// caller enough detail to drive a corrective action: the conflict list
// for blocked completions, the missing ids for incomplete drafts.
type Error struct {
	Code       ErrorCode
	Message    string
	InstanceID string

	// Conflicts is populated for CONFLICT_BLOCKING.
	Conflicts []rules.Conflict

	// Details carries additional context such as missing question or
	// slot ids.
	Details map[string]string

	// Err is the wrapped cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.InstanceID != "" {
		return fmt.Sprintf("%s: %s (instance=%s)", e.Code, e.Message, e.InstanceID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the error code, or "" for foreign errors.
func CodeOf(err error) ErrorCode {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsNotFound reports whether err is a NOT_FOUND lifecycle error.
func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }

// IsInvalidState reports whether err is an INVALID_STATE lifecycle error.
func IsInvalidState(err error) bool { return CodeOf(err) == ErrCodeInvalidState }

// IsImmutabilityViolation reports whether err rejects mutation of a
// frozen instance.
func IsImmutabilityViolation(err error) bool { return CodeOf(err) == ErrCodeImmutabilityViolation }

// IsConcurrentModification reports whether err is a lost optimistic
// write. Callers may retry the whole operation.
func IsConcurrentModification(err error) bool { return CodeOf(err) == ErrCodeConcurrentModification }

// IsConflictBlocking reports whether err blocked completion on hard
// conflicts.
func IsConflictBlocking(err error) bool { return CodeOf(err) == ErrCodeConflictBlocking }

func newError(code ErrorCode, instanceID, format string, args ...any) *Error {
	return &Error{Code: code, InstanceID: instanceID, Message: fmt.Sprintf(format, args...)}
}
