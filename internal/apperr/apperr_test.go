package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsByKindAndCode(t *testing.T) {
	err := NotFound(CodeSourceNotFound, "dev-1", "source device not found")
	wrapped := fmt.Errorf("submit: %w", err)

	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.True(t, errors.Is(wrapped, &Error{Kind: KindNotFound, Code: CodeSourceNotFound}))
	assert.False(t, errors.Is(wrapped, &Error{Kind: KindNotFound, Code: CodeDestinationNotFound}))
	assert.False(t, errors.Is(wrapped, ErrConflict))
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "title must not be empty", Invalid("title", "title must not be empty").Error())

	inner := errors.New("cipher: message authentication failed")
	err := Decryption("msg-1", inner)
	assert.Equal(t, "decryption failed: cipher: message authentication failed", err.Error())
	assert.True(t, errors.Is(err, inner))
	assert.Equal(t, "internal", (&Error{}).Error())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("x: %w", Conflict(CodeDuplicateMessage, "", "dup"))))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))

	e, ok := As(Invalid("max_hops", "out of range"))
	assert.True(t, ok)
	assert.Equal(t, "max_hops", e.Field)
}

func TestUnavailable(t *testing.T) {
	err := Unavailable(CodePushDisabled, "vapid keys are not configured")
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, KindUnavailable, KindOf(err))
	assert.Equal(t, "unavailable", KindUnavailable.String())
}
