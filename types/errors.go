package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every pipeline failure into a small taxonomy
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindNetwork        ErrorKind = "network"
	KindSimulation     ErrorKind = "simulation_failure"
	KindSigningTimeout ErrorKind = "signing_timeout"
	KindSubmission     ErrorKind = "submission_failure"
	KindUnknown        ErrorKind = "unknown"
)

// Error is the terminal failure reported by the pipeline.
// Message is safe to show to end users; Err keeps the technical cause.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	TxHash  string
	Err     error
}

// Sentinels for errors.Is matching on kind
var (
	ErrValidation     = &Error{Kind: KindValidation}
	ErrNetwork        = &Error{Kind: KindNetwork}
	ErrSimulation     = &Error{Kind: KindSimulation}
	ErrSigningTimeout = &Error{Kind: KindSigningTimeout}
	ErrSubmission     = &Error{Kind: KindSubmission}
	ErrUnknown        = &Error{Kind: KindUnknown}
)

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Code)
	}
	if e.TxHash != "" {
		msg = fmt.Sprintf("%s [tx %s]", msg, e.TxHash)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap exposes the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNetwork) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewValidationError reports bad user input, detected before any network call
func NewValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewNetworkError hides transport detail behind a generic message
func NewNetworkError(message string, err error) *Error {
	return &Error{Kind: KindNetwork, Message: message, Err: err}
}

// NewSimulationError reports a classified on-chain abort found before signing
func NewSimulationError(code, message string) *Error {
	return &Error{Kind: KindSimulation, Code: code, Message: message}
}

// NewSubmissionError reports a rejected or aborted transaction
func NewSubmissionError(message, txHash string, err error) *Error {
	return &Error{Kind: KindSubmission, Message: message, TxHash: txHash, Err: err}
}

// KindOf returns the taxonomy kind of err, KindUnknown for foreign errors
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// AsError converts any error into a taxonomy error, wrapping foreign ones as unknown
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindUnknown, Message: err.Error(), Err: err}
}
