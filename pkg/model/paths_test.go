package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/oneconcern/deckmon/pkg/fingerprint"
)

func TestBlobPath(t *testing.T) {
	key := fingerprint.Sum([]byte("payload"))
	path := BlobPath(key)
	assert.Equal(t, "blobs/"+key.String(), path)

	parsed, err := ParseBlobPath(path)
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = ParseBlobPath("manifests/" + key.String())
	assert.Error(t, err)
	_, err = ParseBlobPath("blobs/not-a-key")
	assert.Error(t, err)
}

func TestManifestPath(t *testing.T) {
	path := ManifestPath("all-hands")
	assert.Equal(t, "manifests/all-hands/manifest.yaml", path)

	deckID, err := ParseManifestPath(path)
	require.NoError(t, err)
	assert.Equal(t, "all-hands", deckID)

	_, err = ParseManifestPath("manifests/all-hands/other.yaml")
	assert.Error(t, err)
	_, err = ParseManifestPath("manifests//manifest.yaml")
	assert.Error(t, err)
}

func TestRemoteManifestYAML(t *testing.T) {
	m := RemoteManifest{
		DeckID:  "all-hands",
		Version: 4,
		Slides: []fingerprint.Key{
			fingerprint.Sum([]byte("one")),
			fingerprint.Sum([]byte("two")),
		},
	}

	data, err := yaml.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(data), m.Slides[0].String(),
		"fingerprints serialize as hex strings")

	var back RemoteManifest
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, m.Slides, back.Slides)
	assert.Equal(t, m.Version, back.Version)
}
