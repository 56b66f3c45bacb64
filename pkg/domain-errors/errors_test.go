package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	t.Run("coded error returns its code", func(t *testing.T) {
		err := New(CodeNotFound, "alert missing")
		assert.Equal(t, CodeNotFound, CodeOf(err))
	})

	t.Run("wrapped coded error survives fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("handler: %w", New(CodeBusy, "fusion in flight"))
		assert.Equal(t, CodeBusy, CodeOf(err))
	})

	t.Run("plain error defaults to internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestHasCode(t *testing.T) {
	err := Wrap(CodeUnavailable, "audit append failed", errors.New("connection refused"))
	assert.True(t, HasCode(err, CodeUnavailable))
	assert.False(t, HasCode(err, CodeNotFound))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodeUnavailable, "audit append failed", cause)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}
