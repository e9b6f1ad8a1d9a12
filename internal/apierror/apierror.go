// Package apierror implements the error taxonomy in spec §7: a closed set of
// kinds shared between the non-streaming HTTP error body and the streaming
// response.error/response.failed event payload.
package apierror

import "fmt"

// Kind is one of the taxonomy entries from spec §7. It is not a Go error
// type hierarchy on purpose — callers switch on Kind, not on type assertions.
type Kind string

const (
	KindInvalidRequest       Kind = "invalid_request"
	KindInvalidConfiguration Kind = "invalid_configuration"
	KindNotFound             Kind = "not_found"
	KindRateLimitExceeded    Kind = "rate_limit_exceeded"
	KindTimeout              Kind = "timeout"
	KindTooManyToolCalls     Kind = "too_many_tool_calls"
	KindGenerationError      Kind = "generation_error"
	KindToolExecutionError   Kind = "tool_execution_error"
	KindInternalError        Kind = "internal_error"
)

// Error is the structured error carried through the orchestration engine.
// Its JSON shape matches the non-stream error body in spec §6:
// {"type","message","param","code"}.
type Error struct {
	Kind    Kind   `json:"type"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`

	// Wrapped is the underlying cause, if any, kept for logs only — it is
	// never marshaled into the client-facing payload.
	Wrapped error `json:"-"`
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// New builds an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error that carries an underlying cause for logging.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Wrapped: cause}
}

// WithParam returns a copy of e with Param set, for field-specific validation
// failures (e.g. "input", "tools[0].name").
func (e *Error) WithParam(param string) *Error {
	clone := *e
	clone.Param = param
	return &clone
}

// HTTPStatus maps a Kind to the HTTP status code used for non-streaming
// responses per spec §7 ("4xx/5xx with the error JSON above").
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidRequest:
		return 400
	case KindInvalidConfiguration:
		return 401
	case KindNotFound:
		return 404
	case KindRateLimitExceeded:
		return 429
	case KindTimeout:
		return 504
	case KindTooManyToolCalls:
		return 422
	case KindToolExecutionError:
		return 502
	case KindGenerationError:
		return 502
	case KindInternalError:
		return 500
	default:
		return 500
	}
}

// As extracts an *Error from a generic error, synthesising an internal_error
// wrapper for anything that isn't already one of ours. Used at the outermost
// handler boundary so every response — success or failure — emits the same
// taxonomy.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	if apiErr, ok := err.(*Error); ok {
		return apiErr
	}
	return Wrap(KindInternalError, "unexpected internal error", err)
}
