// Package failure classifies what went wrong during a saga run so callers can
// decide between rollback, retry, rejection and manual intervention.
package failure

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// External is a structured per-line error returned by the Planner or the Ledger.
	External Kind = "external"
	// Transport is a timeout or connection error. Always retryable.
	Transport Kind = "transport"
	// Validation is caller input inconsistent with the current line state. Never retried.
	Validation Kind = "validation"
	// Integrity is a violated local persistence invariant. Needs manual intervention.
	Integrity Kind = "integrity"
)

type Error struct {
	Kind    Kind
	Op      string
	ItemNo  string
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.ItemNo != "" {
		return fmt.Sprintf("%s failure in %s (item %s): %s", e.Kind, e.Op, e.ItemNo, msg)
	}
	return fmt.Sprintf("%s failure in %s: %s", e.Kind, e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func NewExternal(op, itemNo, code, message string) *Error {
	return &Error{Kind: External, Op: op, ItemNo: itemNo, Code: code, Message: message}
}

func NewTransport(op string, err error) *Error {
	return &Error{Kind: Transport, Op: op, Err: err}
}

func NewValidation(op, itemNo, message string) *Error {
	return &Error{Kind: Validation, Op: op, ItemNo: itemNo, Message: message}
}

func NewIntegrity(op string, err error) *Error {
	return &Error{Kind: Integrity, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, empty if none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsRetryable reports whether the failure may succeed when attempted again.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case Transport, External:
		return true
	}
	return false
}
