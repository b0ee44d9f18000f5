// Package apperrors defines the closed error taxonomy shared by the compiler,
// interpreter, executors, and dispatcher, following the same typed-error,
// chainable-cause shape as the teacher's toolerrors.ToolError and
// model.ProviderError: a small struct implementing error, carrying a stable
// Kind (mapped to the HTTP envelope's code by the httpapi package), a
// Retryable flag, and a Cause that participates in errors.Is/As via Unwrap.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure into the closed taxonomy of §7.
type Kind string

const (
	KindValidation         Kind = "ValidationError"
	KindPortUnresolved     Kind = "PortUnresolved"
	KindTemplateError      Kind = "TemplateError"
	KindEvalError          Kind = "EvalError"
	KindLLMValidationError Kind = "LLMValidationError"
	KindProviderError      Kind = "ProviderError"
	KindPlatformError      Kind = "PlatformError"
	KindProjectApiError    Kind = "ProjectApiError"
	KindCommandTimeout     Kind = "CommandTimeout"
	KindWorkflowTimeout    Kind = "WorkflowTimeout"
	KindDeploymentTimeout  Kind = "DeploymentTimeout"
	KindUnauthorizedWebhook Kind = "UnauthorizedWebhook"
	KindStaleExecution     Kind = "StaleExecution"
	KindCancelled          Kind = "Cancelled"
	KindInternalError      Kind = "InternalError"
	KindNotFound           Kind = "NotFound"
	KindDuplicateID        Kind = "DuplicateId"
	KindConflict           Kind = "Conflict"
	KindUnauthorized       Kind = "Unauthorized"
)

// retryable reports the default recovery semantics from §7's table. Callers
// may still override per error instance via WithRetryable.
var retryable = map[Kind]bool{
	KindValidation:          false,
	KindPortUnresolved:      true,
	KindTemplateError:       true,
	KindEvalError:           true,
	KindLLMValidationError:  true,
	KindProviderError:       true,
	KindPlatformError:       true,
	KindProjectApiError:     true,
	KindCommandTimeout:      true,
	KindWorkflowTimeout:     true,
	KindDeploymentTimeout:   true,
	KindUnauthorizedWebhook: false,
	KindStaleExecution:      false,
	KindCancelled:           false,
	KindInternalError:       true,
	KindNotFound:            false,
	KindDuplicateID:         false,
	KindConflict:            false,
	KindUnauthorized:        false,
}

// Error is the concrete error type raised by every component in the engine.
// It preserves a causal chain via Unwrap so errors.Is/As work across package
// boundaries, while remaining serializable for the HTTP error envelope (§6).
type Error struct {
	kind      Kind
	op        string
	message   string
	retryable bool
	retryHintSeconds int
	cause     error
}

// New constructs an Error of the given kind with a message.
func New(kind Kind, op, message string) *Error {
	return &Error{kind: kind, op: op, message: message, retryable: retryable[kind]}
}

// Wrap constructs an Error of the given kind, wrapping an underlying cause.
func Wrap(kind Kind, op string, cause error) *Error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{kind: kind, op: op, message: msg, retryable: retryable[kind], cause: cause}
}

// Errorf constructs an Error of the given kind with a formatted message.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return New(kind, op, fmt.Sprintf(format, args...))
}

// WithRetryable overrides the default retryable flag for this error instance,
// used e.g. to honour provider retry-after hints per §7.
func (e *Error) WithRetryable(retry bool) *Error {
	e.retryable = retry
	return e
}

// WithRetryAfter records a provider-supplied retry-after hint in seconds.
func (e *Error) WithRetryAfter(seconds int) *Error {
	e.retryHintSeconds = seconds
	return e
}

// Kind returns the error's taxonomy kind.
func (e *Error) Kind() Kind { return e.kind }

// Op returns the operation name that raised the error (for example, a node id
// or executor name), when known.
func (e *Error) Op() string { return e.op }

// Retryable reports whether the caller may retry this failure (§7).
func (e *Error) Retryable() bool { return e.retryable }

// RetryAfterSeconds returns the provider-supplied retry-after hint, or 0 if none.
func (e *Error) RetryAfterSeconds() int { return e.retryHintSeconds }

// Error implements the error interface.
func (e *Error) Error() string {
	if e.op != "" {
		return fmt.Sprintf("%s: %s: %s", e.kind, e.op, e.message)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

// Unwrap returns the underlying cause, enabling errors.Is/As across the chain.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error with the same Kind, supporting
// errors.Is(err, apperrors.New(KindPortUnresolved, "", "")) idioms.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return te.kind == e.kind
	}
	return false
}

// As extracts the first *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, or
// KindInternalError for unclassified errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.kind
	}
	if err == nil {
		return ""
	}
	return KindInternalError
}
