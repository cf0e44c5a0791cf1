package service

import (
	"errors"
	"fmt"
)

// Authorization failures. Terminal for the operation; nothing is persisted.
var (
	// ErrBlocked: the receiver has an active block against the sender.
	ErrBlocked = errors.New("blocked by receiver")
	// ErrNotMember: sender is not an active member of the target group.
	ErrNotMember = errors.New("not an active group member")
)

// ErrNotFound wraps unknown message/group/user references.
var ErrNotFound = errors.New("not found")

// ValidationError reports a malformed or incomplete payload, rejected before
// any persistence happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsAuthorization reports whether err is an authorization failure
// (blocked send or non-member group send).
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrBlocked) || errors.Is(err, ErrNotMember)
}

// TransientError marks persistence-tier failures the client may retry.
// The core never retries on its own.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}
