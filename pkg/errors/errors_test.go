package errors

import (
	stderr "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	sentinel := New("sentinel")
	inner := stderr.New("inner")

	wrapped := sentinel.Wrap(inner)
	require.Error(t, wrapped)

	assert.True(t, Is(wrapped, sentinel))
	assert.True(t, Is(wrapped, inner))
	assert.Contains(t, wrapped.Error(), "sentinel")
	assert.Contains(t, wrapped.Error(), "inner")

	// the sentinel itself is untouched
	assert.NoError(t, sentinel.Unwrap())
}

func TestWrapMessage(t *testing.T) {
	sentinel := New("sentinel")
	wrapped := sentinel.WrapMessage("details")

	assert.True(t, Is(wrapped, sentinel))
	assert.Contains(t, wrapped.Error(), "details")
}

func TestIsThroughFmt(t *testing.T) {
	sentinel := New("sentinel")
	err := fmt.Errorf("outer: %w", sentinel.Wrap(stderr.New("cause")))

	assert.True(t, Is(err, sentinel))
}

func TestAs(t *testing.T) {
	sentinel := New("sentinel")
	err := fmt.Errorf("outer: %w", sentinel.Wrap(stderr.New("cause")))

	var target *Error
	require.True(t, As(err, &target))
	assert.True(t, Is(target, sentinel))
}
