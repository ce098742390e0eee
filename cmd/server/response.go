package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Simplici0/watchdesk/internal/apierr"
	"github.com/Simplici0/watchdesk/internal/catalog"
	"github.com/Simplici0/watchdesk/internal/logging"
	"github.com/Simplici0/watchdesk/internal/pricing"
	"github.com/Simplici0/watchdesk/internal/service"
	"github.com/Simplici0/watchdesk/internal/store"
	"github.com/Simplici0/watchdesk/internal/taxonomy"
)

const maxBodyBytes = 1 << 20

var (
	errUnauthenticated = apierr.NewUnauthorized("Please sign in to continue")
	errBadCredentials  = apierr.NewUnauthorized("Invalid email or password")
	errRouteNotFound   = apierr.NewNotFound("No such endpoint")
)

var statusForCode = map[string]int{
	apierr.CodeBadRequest:         http.StatusBadRequest,
	apierr.CodeUnauthorized:       http.StatusUnauthorized,
	apierr.CodeNotFound:           http.StatusNotFound,
	apierr.CodeConflict:           http.StatusConflict,
	apierr.CodeValidation:         http.StatusUnprocessableEntity,
	apierr.CodeInternal:           http.StatusInternalServerError,
	apierr.CodeBackendUnavailable: http.StatusServiceUnavailable,
}

// validationErrors are domain failures whose text is safe to show.
var validationErrors = []error{
	taxonomy.ErrCycleDetected,
	taxonomy.ErrEmptyLabel,
	taxonomy.ErrDefaultPartOnBranch,
	taxonomy.ErrDefaultPartNotAllowed,
	taxonomy.ErrParentNotAllowed,
	taxonomy.ErrDuplicateNode,
	catalog.ErrPartNameRequired,
	catalog.ErrPartNameTooLong,
	catalog.ErrDeliveryDays,
	catalog.ErrNegativePrice,
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// writeError maps err to an envelope. Unrecognised errors are logged and
// reported as INTERNAL_ERROR without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	env := envelopeFor(err)
	if env.Code == apierr.CodeInternal {
		logging.From(r.Context(), nil).Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	status := statusForCode[env.Code]
	if status == 0 {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, env)
}

func envelopeFor(err error) *apierr.Envelope {
	var env *apierr.Envelope
	if errors.As(err, &env) {
		return env
	}

	switch {
	case errors.Is(err, taxonomy.ErrUnknownKind):
		return apierr.NewNotFound("Unknown category tree")
	case errors.Is(err, taxonomy.ErrNodeNotFound):
		return apierr.NewNotFound("Category not found")
	case errors.Is(err, store.ErrNotFound):
		return apierr.NewNotFound("Record not found")
	case errors.Is(err, service.ErrJobAccepted):
		return apierr.NewConflict("The estimate for this job has already been accepted")
	case errors.Is(err, pricing.ErrDuplicateRule):
		return apierr.NewConflict("A rule for this category already exists")
	case errors.Is(err, store.ErrConflict):
		return apierr.NewConflict("A record with these values already exists")
	case errors.Is(err, store.ErrInvalidReference):
		return apierr.NewValidation("A referenced record does not exist")
	case errors.Is(err, service.ErrInvalidInput):
		return apierr.NewValidation(invalidInputReason(err))
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return apierr.NewValidation(capitalize(v.Error()))
		}
	}
	return apierr.NewInternal()
}

// invalidInputReason is the text following the ErrInvalidInput marker.
func invalidInputReason(err error) string {
	_, reason, ok := strings.Cut(err.Error(), service.ErrInvalidInput.Error()+": ")
	if !ok || reason == "" {
		return "One or more fields are invalid"
	}
	return capitalize(reason)
}

// capitalize upper-cases the first letter unless the text opens with a
// field name.
func capitalize(s string) string {
	first, _, _ := strings.Cut(s, " ")
	if s == "" || strings.Contains(first, "_") {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apierr.NewBadRequest(fmt.Sprintf("Invalid request body: %v", err))
	}
	return nil
}
