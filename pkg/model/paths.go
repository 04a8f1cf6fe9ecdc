package model

import (
	"fmt"
	"strings"

	"github.com/oneconcern/deckmon/pkg/fingerprint"
)

const (
	blobsPrefix     = "blobs"
	manifestsPrefix = "manifests"
	manifestObject  = "manifest.yaml"
)

// BlobPath yields the remote object key hosting a blob payload
func BlobPath(key fingerprint.Key) string {
	return fmt.Sprintf("%s/%s", blobsPrefix, key)
}

// BlobPathPrefix yields the remote key prefix under which all blobs live
func BlobPathPrefix() string {
	return blobsPrefix + "/"
}

// ManifestPath yields the remote object key hosting a deck manifest
func ManifestPath(deckID string) string {
	return fmt.Sprintf("%s/%s/%s", manifestsPrefix, deckID, manifestObject)
}

// ManifestPathPrefix yields the remote key prefix under which all deck
// manifests live
func ManifestPathPrefix() string {
	return manifestsPrefix + "/"
}

// ParseBlobPath extracts the fingerprint from a remote blob key
func ParseBlobPath(path string) (fingerprint.Key, error) {
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] != blobsPrefix {
		return fingerprint.Key{}, fmt.Errorf("expected path of the form %s/<fingerprint>, got %q", blobsPrefix, path)
	}
	return fingerprint.KeyFromString(parts[1])
}

// ParseManifestPath extracts the deck id from a remote manifest key
func ParseManifestPath(path string) (string, error) {
	parts := strings.Split(path, "/")
	if len(parts) != 3 || parts[0] != manifestsPrefix || parts[2] != manifestObject {
		return "", fmt.Errorf("expected path of the form %s/<deck-id>/%s, got %q", manifestsPrefix, manifestObject, path)
	}
	if parts[1] == "" {
		return "", fmt.Errorf("empty deck id in path %q", path)
	}
	return parts[1], nil
}
