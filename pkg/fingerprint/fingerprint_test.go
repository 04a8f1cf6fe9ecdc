package fingerprint

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/deckmon/internal/rand"
)

func TestKeyFromString(t *testing.T) {
	payload := rand.Bytes(KeySize)
	key := MustNewKey(payload)
	require.Len(t, key.String(), KeySizeHex)

	parsed, err := KeyFromString(key.String())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = KeyFromString("deadbeef")
	assert.Error(t, err)
	_, err = KeyFromString(key.String()[:KeySizeHex-2] + "zz")
	assert.Error(t, err)
}

func TestNewKeyBadSize(t *testing.T) {
	_, err := NewKey(rand.Bytes(KeySize - 1))
	require.Error(t, err)
	var bad *BadKeySize
	assert.ErrorAs(t, err, &bad)
}

func TestProcessMatchesSum(t *testing.T) {
	payload := rand.Bytes(3 * 1024 * 1024)

	maker := New(BufferSize(64 * 1024))
	streamed, err := maker.Process(bytes.NewReader(payload))
	require.NoError(t, err)

	assert.Equal(t, Sum(payload), streamed)
	assert.False(t, streamed.IsZero())

	other, err := maker.Process(bytes.NewReader(append(payload, 0x01)))
	require.NoError(t, err)
	assert.NotEqual(t, streamed, other)
}
