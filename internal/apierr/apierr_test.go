package apierr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageFor(t *testing.T) {
	assert.Equal(t, "", MessageFor(nil, FallbackSaveJob))
	assert.Equal(t, FallbackSaveJob, MessageFor(errors.New("dial tcp: refused"), FallbackSaveJob))

	wrapped := fmt.Errorf("create rule: %w", NewConflict("A rule for this category already exists"))
	assert.Equal(t, "A rule for this category already exists", MessageFor(wrapped, FallbackSaveRule))

	assert.Equal(t, FallbackSaveRule, MessageFor(&Envelope{Code: CodeConflict}, FallbackSaveRule))

	v := NewValidation("One or more fields are invalid", FieldError{Field: "label", Message: "is required"})
	assert.Equal(t, "One or more fields are invalid (label: is required)", MessageFor(v, FallbackSaveRule))
}

func TestEnvelopeError(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: node not found", NewNotFound("node not found").Error())
}
