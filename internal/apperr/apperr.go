// Package apperr implements the error taxonomy from spec §7 as a single
// typed error, generalizing the teacher's pkg/errors.ClassifiedError (which
// classifies by ErrorClass/RetryStrategy for its own GitHub-adapter domain)
// to this system's fixed set of Kinds.
package apperr

import (
	"fmt"
	"net/http"
	"time"
)

// Kind is one of the surface labels from spec §7. It is what callers branch
// on; Code/Message are for humans and logs.
type Kind string

const (
	InvalidInput       Kind = "InvalidInput"
	Timeout            Kind = "Timeout"
	CircuitOpen        Kind = "CircuitOpen"
	Transport          Kind = "Transport"
	ProviderError      Kind = "ProviderError"
	RateLimited        Kind = "RateLimited"
	LLMUnavailable     Kind = "LLMUnavailable"
	InsufficientData   Kind = "InsufficientData"
	SchemaMismatch     Kind = "SchemaMismatch"
	WorkflowTimeout    Kind = "WorkflowTimeout"
	Cancelled          Kind = "Cancelled"
	StorageUnavailable Kind = "StorageUnavailable"
	NotFound           Kind = "NotFound"
	InternalError      Kind = "InternalError"
)

// Error is the single error type returned across the engine. It implements
// error and supports errors.Unwrap/errors.Is against cause.
type Error struct {
	Kind      Kind
	Message   string
	RequestID string
	Service   string
	Operation string
	At        time.Time
	cause     error
}

func (e *Error) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Operation, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a Kind-classified error with no cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, At: time.Now()}
}

// Wrap classifies an existing error under kind, preserving it as cause.
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, At: time.Now(), cause: err}
}

// WithOperation annotates which component/operation raised the error.
func (e *Error) WithOperation(service, operation string) *Error {
	e.Service = service
	e.Operation = operation
	return e
}

// WithRequestID stamps the inbound request id for the API error envelope.
func (e *Error) WithRequestID(id string) *Error {
	e.RequestID = id
	return e
}

// As reports whether err is an *Error of the given kind.
func As(err error, kind Kind) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Kind == kind
}

// KindOf extracts the Kind of err, defaulting to InternalError for anything
// not already classified.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return InternalError
}

// ClassifyHTTPStatus maps an upstream HTTP status code to a Kind, mirroring
// the teacher's ClassifyHTTPError but collapsed onto this system's taxonomy
// (spec §7: 4xx except 429 is terminal ProviderError, 429/5xx are retryable).
func ClassifyHTTPStatus(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return RateLimited
	case status == http.StatusGatewayTimeout:
		return Timeout
	case status >= 500:
		return Transport
	case status >= 400:
		return ProviderError
	default:
		return InternalError
	}
}

// Retryable reports whether a Kind is one the resilient HTTP core's retry
// policy should attempt again (spec §4.1: transport errors and 5xx/429).
func Retryable(kind Kind) bool {
	switch kind {
	case Transport, Timeout, RateLimited:
		return true
	default:
		return false
	}
}

// HTTPStatus maps a Kind to the status code the REST surface returns
// (§7 "REST returns an error object").
func HTTPStatus(kind Kind) int {
	switch kind {
	case InvalidInput, SchemaMismatch:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case RateLimited:
		return http.StatusTooManyRequests
	case Timeout, WorkflowTimeout:
		return http.StatusGatewayTimeout
	case Cancelled:
		return http.StatusConflict
	case CircuitOpen, StorageUnavailable:
		return http.StatusServiceUnavailable
	case InsufficientData, LLMUnavailable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Envelope is the JSON shape REST and SSE both use for errors (§7).
type Envelope struct {
	Kind      Kind   `json:"kind"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ToEnvelope converts err (classified or not) into the wire shape.
func ToEnvelope(err error) Envelope {
	if e, ok := err.(*Error); ok {
		return Envelope{Kind: e.Kind, Message: e.Message, RequestID: e.RequestID}
	}
	return Envelope{Kind: InternalError, Message: err.Error()}
}
