// Package apperr defines the error taxonomy shared by the device registry,
// the message relay and the marketplace engine. Every failure carries a
// Kind for programmatic handling, a stable Code, and the offending field
// or identifier.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindInvalidInput
	KindDecryption
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidInput:
		return "invalid_input"
	case KindDecryption:
		return "decryption_failed"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error codes.
const (
	CodeSourceNotFound         = "SOURCE_NOT_FOUND"
	CodeDestinationNotFound    = "DESTINATION_NOT_FOUND"
	CodeDeviceNotFound         = "DEVICE_NOT_FOUND"
	CodeListingNotFound        = "LISTING_NOT_FOUND"
	CodeMessageNotFound        = "MESSAGE_NOT_FOUND"
	CodeDuplicateMessage       = "DUPLICATE_MESSAGE"
	CodeDuplicateBroadcast     = "DUPLICATE_BROADCAST_MESSAGE"
	CodeListingAlreadyResolved = "LISTING_ALREADY_RESOLVED"
	CodeListingExpired         = "LISTING_EXPIRED"
	CodeInvalidInput           = "INVALID_INPUT"
	CodeDecryptionFailed       = "DECRYPTION_FAILED"
	CodePushDisabled           = "PUSH_DISABLED"
)

// Sentinels for errors.Is matching by kind alone.
var (
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrInvalidInput = &Error{Kind: KindInvalidInput}
	ErrDecryption   = &Error{Kind: KindDecryption}
	ErrUnavailable  = &Error{Kind: KindUnavailable}
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Code    string
	Field   string // offending input field, if any
	ID      string // offending identifier, if any
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind, and on Code when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// NotFound reports a reference that does not resolve.
func NotFound(code, id, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, ID: id, Message: message}
}

// Conflict reports a write that collides with existing state.
func Conflict(code, id, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, ID: id, Message: message}
}

// Invalid reports a malformed or out-of-range input field.
func Invalid(field, message string) *Error {
	return &Error{Kind: KindInvalidInput, Code: CodeInvalidInput, Field: field, Message: message}
}

// Decryption wraps a failure from the encryption collaborator.
func Decryption(id string, err error) *Error {
	return &Error{Kind: KindDecryption, Code: CodeDecryptionFailed, ID: id, Message: "decryption failed", Err: err}
}

// Unavailable reports an optional feature that is switched off.
func Unavailable(code, message string) *Error {
	return &Error{Kind: KindUnavailable, Code: code, Message: message}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
