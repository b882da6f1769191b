package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies lifecycle failures for the transport layer
type ErrorKind string

const (
	KindUnauthenticated     ErrorKind = "UNAUTHENTICATED"
	KindForbidden           ErrorKind = "FORBIDDEN"
	KindMissingContext      ErrorKind = "MISSING_CONTEXT"
	KindTemplateNotFound    ErrorKind = "TEMPLATE_NOT_FOUND"
	KindInvalidInvite       ErrorKind = "INVALID_INVITE"
	KindInviteMismatch      ErrorKind = "INVITE_MISMATCH"
	KindInviteExpired       ErrorKind = "INVITE_EXPIRED"
	KindInviteCancelled     ErrorKind = "INVITE_CANCELLED"
	KindAlreadyCompleted    ErrorKind = "ALREADY_COMPLETED"
	KindAttemptLimitReached ErrorKind = "ATTEMPT_LIMIT_REACHED"
	KindAttemptNotFound     ErrorKind = "ATTEMPT_NOT_FOUND"
	KindContextMismatch     ErrorKind = "CONTEXT_MISMATCH"
	KindValidation          ErrorKind = "VALIDATION"
	KindUnexpected          ErrorKind = "UNEXPECTED"
)

// AttemptError carries a kind and a short caller-safe message
type AttemptError struct {
	Kind    ErrorKind
	Message string
	Op      string
	Err     error
}

func (e *AttemptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return e.Message
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// Is matches any AttemptError of the same kind
func (e *AttemptError) Is(target error) bool {
	var t *AttemptError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// IsUserFacing reports whether the error is a validation-category rejection
func (e *AttemptError) IsUserFacing() bool {
	return e.Kind != KindUnexpected
}

var (
	ErrUnauthenticated     = &AttemptError{Kind: KindUnauthenticated, Message: "authentication required"}
	ErrForbidden           = &AttemptError{Kind: KindForbidden, Message: "you do not have access to this resource"}
	ErrMissingContext      = &AttemptError{Kind: KindMissingContext, Message: "an invite token, application or attempt is required"}
	ErrTemplateNotFound    = &AttemptError{Kind: KindTemplateNotFound, Message: "assessment not found"}
	ErrInvalidInvite       = &AttemptError{Kind: KindInvalidInvite, Message: "invalid invite"}
	ErrInviteMismatch      = &AttemptError{Kind: KindInviteMismatch, Message: "invite does not match this assessment"}
	ErrInviteExpired       = &AttemptError{Kind: KindInviteExpired, Message: "invite has expired"}
	ErrInviteCancelled     = &AttemptError{Kind: KindInviteCancelled, Message: "invite has been cancelled"}
	ErrAlreadyCompleted    = &AttemptError{Kind: KindAlreadyCompleted, Message: "assessment already completed"}
	ErrAttemptLimitReached = &AttemptError{Kind: KindAttemptLimitReached, Message: "maximum number of attempts reached"}
	ErrAttemptNotFound     = &AttemptError{Kind: KindAttemptNotFound, Message: "attempt not found"}
	ErrContextMismatch     = &AttemptError{Kind: KindContextMismatch, Message: "application does not match this assessment"}
	ErrUnexpected          = &AttemptError{Kind: KindUnexpected, Message: "internal server error"}
)

// ErrUnauthorizedInvite is an invite owned by someone else. It shares
// InvalidInvite's kind and message so existence never leaks.
var ErrUnauthorizedInvite = &AttemptError{Kind: KindInvalidInvite, Message: "invalid invite"}

// NewUnexpectedError wraps a store or programming failure
func NewUnexpectedError(op string, err error) error {
	return &AttemptError{Kind: KindUnexpected, Message: ErrUnexpected.Message, Op: op, Err: err}
}

// NewValidationError wraps request validation failures
func NewValidationError(details error) error {
	return &AttemptError{Kind: KindValidation, Message: "invalid request", Op: "validate", Err: details}
}

// KindOf returns the kind of err, treating foreign errors as unexpected
func KindOf(err error) ErrorKind {
	var attemptErr *AttemptError
	if errors.As(err, &attemptErr) {
		return attemptErr.Kind
	}
	return KindUnexpected
}
