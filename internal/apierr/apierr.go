// Package apierr defines the error envelope exchanged between the API and its
// clients, and how clients turn failures into operator-facing messages.
package apierr

import (
	"errors"
	"fmt"
	"strings"
)

// Standard error codes.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeValidation         = "VALIDATION_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
	CodeBackendUnavailable = "BACKEND_UNAVAILABLE"
)

// Envelope is the error body returned by the API. It implements error.
type Envelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *Envelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func NewBadRequest(msg string) *Envelope {
	return &Envelope{Code: CodeBadRequest, Message: msg}
}

func NewUnauthorized(msg string) *Envelope {
	return &Envelope{Code: CodeUnauthorized, Message: msg}
}

func NewNotFound(msg string) *Envelope {
	return &Envelope{Code: CodeNotFound, Message: msg}
}

func NewConflict(msg string) *Envelope {
	return &Envelope{Code: CodeConflict, Message: msg}
}

// NewValidation returns a VALIDATION_ERROR; with no details the message
// carries the reason.
func NewValidation(msg string, details ...FieldError) *Envelope {
	return &Envelope{Code: CodeValidation, Message: msg, Details: details}
}

func NewInternal() *Envelope {
	return &Envelope{Code: CodeInternal, Message: "An unexpected error occurred"}
}

func NewBackendUnavailable() *Envelope {
	return &Envelope{Code: CodeBackendUnavailable, Message: "The service is temporarily unavailable"}
}

// MessageFor derives the message an operator sees for a failed operation:
// the envelope's message (plus field details) when the failure carries one,
// otherwise the per-operation fallback.
func MessageFor(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var env *Envelope
	if !errors.As(err, &env) || strings.TrimSpace(env.Message) == "" {
		return fallback
	}
	if len(env.Details) == 0 {
		return env.Message
	}
	parts := make([]string, 0, len(env.Details))
	for _, d := range env.Details {
		parts = append(parts, fmt.Sprintf("%s: %s", d.Field, d.Message))
	}
	return env.Message + " (" + strings.Join(parts, "; ") + ")"
}

// Per-operation fallbacks used when the failure has no envelope.
const (
	FallbackLoadTree        = "Could not load the category tree. Please try again."
	FallbackLoadParts       = "Could not load spare parts. Please try again."
	FallbackLoadRules       = "Could not load pricing rules. Please try again."
	FallbackSaveRule        = "Could not save the pricing rule. A rule for this category may already exist."
	FallbackCalculateCost   = "Could not calculate the estimate. Please try again."
	FallbackSaveJob         = "Could not save the job. Please try again."
	FallbackCalculateInBusy = "An estimate is already being calculated."
)
