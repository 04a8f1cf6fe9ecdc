package engine

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestTree(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	f.writeArchive(t, "/library/quarterly.key", deckEntries())

	other := deckEntries()
	other["Metadata/DocumentIdentifier"] = []byte("doc-2")
	other["Index/Slide-2.iwa"] = []byte("different agenda")
	f.writeArchive(t, "/library/sub/board.key", other)

	// excluded, empty and corrupt archives must not block the walk
	f.writeArchive(t, "/library/.dropbox.cache/stale.key", deckEntries())
	f.writeArchive(t, "/library/handout-copy.key", deckEntries())
	require.NoError(t, afero.WriteFile(f.fs, "/library/empty.key", nil, 0600))
	require.NoError(t, afero.WriteFile(f.fs, "/library/corrupt.key", []byte("not a zip"), 0600))
	require.NoError(t, afero.WriteFile(f.fs, "/library/notes.txt", []byte("hello"), 0600))

	manifests, err := f.eng.IngestTree(ctx, "/library")
	require.NoError(t, err)

	require.Len(t, manifests, 2)
	assert.Equal(t, "board", manifests[0].DeckID)
	assert.Equal(t, "quarterly", manifests[1].DeckID)

	decks, err := f.ix.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"board", "quarterly"}, decks)

	// slides shared between the two decks carry one citation per deck
	shared := manifests[0].Slides[0] // identical opening slide
	assert.Equal(t, shared, manifests[1].Slides[0])
	count, err := f.blobs.RefCount(ctx, shared)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	// slides differing between decks carry a single citation
	count, err = f.blobs.RefCount(ctx, manifests[0].Slides[1])
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestIngestParseErrorPropagates(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, afero.WriteFile(f.fs, "/bad.key", []byte("junk"), 0600))

	_, err := f.eng.Ingest(context.Background(), "bad", "/bad.key")
	require.Error(t, err)
}

func TestDeckIDFromPath(t *testing.T) {
	assert.Equal(t, "quarterly", deckIDFromPath("/library/quarterly.key"))
	assert.Equal(t, "a.b", deckIDFromPath("a.b.key"))
}
