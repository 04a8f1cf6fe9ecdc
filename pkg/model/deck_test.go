package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/deckmon/pkg/fingerprint"
)

func TestNextVersion(t *testing.T) {
	first := NewDeckManifest("all-hands", []fingerprint.Key{
		fingerprint.Sum([]byte("one")),
	})
	require.Equal(t, uint64(1), first.Version)
	require.NotEmpty(t, first.ID)

	slides := []fingerprint.Key{
		fingerprint.Sum([]byte("one")),
		fingerprint.Sum([]byte("three")),
	}
	assets := []fingerprint.Key{fingerprint.Sum([]byte("pic"))}
	next := first.NextVersion(slides, assets)

	assert.Equal(t, uint64(2), next.Version)
	assert.Equal(t, first.DeckID, next.DeckID)
	assert.NotEqual(t, first.ID, next.ID)
	assert.Equal(t, slides, next.Slides)
	assert.Len(t, next.Citations(), 3)

	// the superseded manifest is untouched
	assert.Equal(t, uint64(1), first.Version)
	assert.Len(t, first.Slides, 1)
}
