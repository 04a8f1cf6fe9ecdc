package keynote

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/deckmon/pkg/errors"
	"github.com/oneconcern/deckmon/pkg/extract/status"
	"github.com/oneconcern/deckmon/pkg/fingerprint"
)

func writeArchive(t *testing.T, fs afero.Fs, path string, entries map[string][]byte) {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for name, payload := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(payload)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, afero.WriteFile(fs, path, buf.Bytes(), 0600))
}

func fixtureEntries() map[string][]byte {
	return map[string][]byte{
		"Metadata/DocumentIdentifier": []byte("doc-12345\n"),
		"Index/Slide-2.iwa":           []byte("second slide cites chart.png here"),
		"Index/Slide-1.iwa":           []byte("first slide plain"),
		"Index/Slide-10.iwa":          []byte("tenth slide"),
		"Data/chart.png":              []byte("png-bytes"),
		"Data/unused.mov":             []byte("mov-bytes"),
		"preview.jpg":                 []byte("ignored"),
	}
}

func TestHandles(t *testing.T) {
	k := New()
	assert.True(t, k.Handles("/decks/q3.key"))
	assert.True(t, k.Handles("UPPER.KEY"))
	assert.False(t, k.Handles("notes.txt"))
	assert.False(t, k.Handles("archive.zip"))
}

func TestExtract(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeArchive(t, fs, "/decks/q3.key", fixtureEntries())
	k := New(FS(fs))

	archive, err := k.Extract(context.Background(), "/decks/q3.key")
	require.NoError(t, err)

	assert.Equal(t, "doc-12345", archive.DocumentID)
	assert.Equal(t, "/decks/q3.key", archive.Path)
	require.Len(t, archive.Slides, 3)

	// numeric order, not lexical: 1, 2, 10
	assert.Equal(t, []byte("first slide plain"), archive.Slides[0].Content)
	assert.Equal(t, []byte("second slide cites chart.png here"), archive.Slides[1].Content)
	assert.Equal(t, []byte("tenth slide"), archive.Slides[2].Content)
	for i, slide := range archive.Slides {
		assert.Equal(t, i+1, slide.Ordinal)
	}

	// asset association by filename reference
	require.Len(t, archive.Slides[1].Assets, 1)
	ref := archive.Slides[1].Assets[0]
	assert.Equal(t, "chart.png", ref.Name)
	assert.Equal(t, fingerprint.Sum([]byte("png-bytes")), ref.Fingerprint)
	assert.Empty(t, archive.Slides[0].Assets)

	assert.Equal(t, []string{"chart.png"}, archive.AssetNames())

	rdr, err := archive.OpenAsset("chart.png")
	require.NoError(t, err)
	payload, err := io.ReadAll(rdr)
	require.NoError(t, err)
	require.NoError(t, rdr.Close())
	assert.Equal(t, []byte("png-bytes"), payload)

	_, err = archive.OpenAsset("nowhere.png")
	assert.True(t, errors.Is(err, status.ErrParse))
}

func TestExtractMalformed(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	k := New(FS(fs))

	// not a zip at all
	require.NoError(t, afero.WriteFile(fs, "/garbage.key", []byte("not a zip"), 0600))
	_, err := k.Extract(ctx, "/garbage.key")
	assert.True(t, errors.Is(err, status.ErrParse))

	// empty file
	require.NoError(t, afero.WriteFile(fs, "/empty.key", nil, 0600))
	_, err = k.Extract(ctx, "/empty.key")
	assert.True(t, errors.Is(err, status.ErrParse))

	// zip without a document identifier
	entries := fixtureEntries()
	delete(entries, "Metadata/DocumentIdentifier")
	writeArchive(t, fs, "/anonymous.key", entries)
	_, err = k.Extract(ctx, "/anonymous.key")
	assert.True(t, errors.Is(err, status.ErrParse))

	// zip without slides
	writeArchive(t, fs, "/slideless.key", map[string][]byte{
		"Metadata/DocumentIdentifier": []byte("doc-1"),
	})
	_, err = k.Extract(ctx, "/slideless.key")
	assert.True(t, errors.Is(err, status.ErrParse))

	// missing file surfaces the underlying error, not a parse error
	_, err = k.Extract(ctx, "/nonexistent.key")
	require.Error(t, err)
	assert.False(t, errors.Is(err, status.ErrParse))
}

func TestExtractDeterministic(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeArchive(t, fs, "/a.key", fixtureEntries())
	writeArchive(t, fs, "/b.key", fixtureEntries())
	k := New(FS(fs))

	first, err := k.Extract(context.Background(), "/a.key")
	require.NoError(t, err)
	second, err := k.Extract(context.Background(), "/b.key")
	require.NoError(t, err)

	// same content in another file yields the same fingerprints
	for i := range first.Slides {
		assert.Equal(t, first.Slides[i].Fingerprint(), second.Slides[i].Fingerprint())
	}
}
