// Package remote adapts a blob store into the synchronization surface
// used by the engine: content-addressed blob transfer plus an atomic
// compare-and-swap on per-deck manifests.
package remote

import (
	"bytes"
	"context"
	"io"
	"strconv"

	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v2"

	"github.com/oneconcern/deckmon/pkg/dlogger"
	"github.com/oneconcern/deckmon/pkg/errors"
	"github.com/oneconcern/deckmon/pkg/fingerprint"
	"github.com/oneconcern/deckmon/pkg/model"
	"github.com/oneconcern/deckmon/pkg/storage"
	"github.com/oneconcern/deckmon/pkg/storage/status"
)

// Adapter is the remote surface the sync engine talks to.
//
// Blob operations are content-addressed and idempotent. Manifest
// updates are atomic compare-and-swap on the manifest version: the
// remote moves from version N to N+1 or the update fails with
// status.ErrVersionConflict, never in between.
type Adapter interface {
	// HasBlob reports whether the remote hosts a blob
	HasBlob(ctx context.Context, key fingerprint.Key) (bool, error)

	// GetBlob downloads a blob payload
	GetBlob(ctx context.Context, key fingerprint.Key) (io.ReadCloser, error)

	// PutBlob uploads a blob payload. Racing uploads of the same
	// fingerprint are harmless: first writer wins, the payload is the
	// same.
	PutBlob(ctx context.Context, key fingerprint.Key, src io.Reader) error

	// DeleteBlob removes a blob from the remote
	DeleteBlob(ctx context.Context, key fingerprint.Key) error

	// GetManifest fetches the published manifest of a deck.
	// status.ErrNotFound when the deck was never pushed.
	GetManifest(ctx context.Context, deckID string) (model.RemoteManifest, error)

	// CASManifest publishes a manifest if and only if the remote still
	// holds expectedVersion (0 meaning no manifest published yet).
	CASManifest(ctx context.Context, deckID string, expectedVersion uint64, manifest model.RemoteManifest) error

	// ListDecks enumerates the deck ids with a published manifest
	ListDecks(ctx context.Context) ([]string, error)

	// String identifies the remote for logs
	String() string
}

// Option to tune the adapter
type Option func(*objStore)

// Logger sets a logger on the adapter
func Logger(l *zap.Logger) Option {
	return func(o *objStore) {
		if l != nil {
			o.l = l
		}
	}
}

// New builds an adapter over an object store.
//
// Manifest operations require the store to support conditional writes
// (storage.Versioned); on a blob-only backend they fail with
// status.ErrNotSupported.
func New(store storage.Store, opts ...Option) Adapter {
	o := &objStore{
		store: store,
		l:     dlogger.MustGetLogger(dlogger.LogLevelInfo),
	}
	o.versioned, _ = store.(storage.Versioned)
	for _, apply := range opts {
		apply(o)
	}
	return o
}

type objStore struct {
	store     storage.Store
	versioned storage.Versioned
	l         *zap.Logger
}

func (o *objStore) String() string {
	return o.store.String()
}

func (o *objStore) HasBlob(ctx context.Context, key fingerprint.Key) (bool, error) {
	return o.store.Has(ctx, model.BlobPath(key))
}

func (o *objStore) GetBlob(ctx context.Context, key fingerprint.Key) (io.ReadCloser, error) {
	return o.store.Get(ctx, model.BlobPath(key))
}

func (o *objStore) PutBlob(ctx context.Context, key fingerprint.Key, src io.Reader) error {
	err := o.store.Put(ctx, model.BlobPath(key), src, storage.NoOverWrite)
	if err != nil && errors.Is(err, status.ErrExists) {
		return nil
	}
	return err
}

func (o *objStore) DeleteBlob(ctx context.Context, key fingerprint.Key) error {
	return o.store.Delete(ctx, model.BlobPath(key))
}

func (o *objStore) GetManifest(ctx context.Context, deckID string) (model.RemoteManifest, error) {
	manifest, _, err := o.getManifestVersioned(ctx, deckID)
	return manifest, err
}

func (o *objStore) getManifestVersioned(ctx context.Context, deckID string) (model.RemoteManifest, int64, error) {
	var manifest model.RemoteManifest
	if o.versioned == nil {
		return manifest, 0, status.ErrNotSupported.WrapMessage(o.String())
	}
	rdr, generation, err := o.versioned.GetVersioned(ctx, model.ManifestPath(deckID))
	if err != nil {
		return manifest, 0, err
	}
	defer func() { _ = rdr.Close() }()

	data, err := storage.ReadAllLimited(rdr, storage.MaxObjectSizeInMemory)
	if err != nil {
		return manifest, 0, err
	}
	if err = yaml.Unmarshal(data, &manifest); err != nil {
		return model.RemoteManifest{}, 0, status.ErrInvalidResource.Wrap(err)
	}
	return manifest, generation, nil
}

func (o *objStore) CASManifest(ctx context.Context, deckID string, expectedVersion uint64, manifest model.RemoteManifest) error {
	if o.versioned == nil {
		return status.ErrNotSupported.WrapMessage(o.String())
	}

	var generation int64
	current, generation, err := o.getManifestVersioned(ctx, deckID)
	switch {
	case err == nil:
		if current.Version != expectedVersion {
			return status.ErrVersionConflict.WrapMessage(
				"remote moved to version " + strconv.FormatUint(current.Version, 10))
		}
	case errors.Is(err, status.ErrNotFound):
		if expectedVersion != 0 {
			return status.ErrVersionConflict.WrapMessage("manifest vanished from remote")
		}
		generation = 0
	default:
		return err
	}

	data, err := yaml.Marshal(manifest)
	if err != nil {
		return status.ErrInvalidResource.Wrap(err)
	}

	// the generation precondition closes the read-check-write race:
	// a concurrent publisher bumps the generation and we conflict
	newGeneration, err := o.versioned.PutVersioned(ctx, model.ManifestPath(deckID), bytes.NewReader(data), generation)
	if err != nil {
		return err
	}

	o.l.Info("manifest published",
		zap.String("deck", deckID),
		zap.Uint64("version", manifest.Version),
		zap.Int64("generation", newGeneration),
	)
	return nil
}

func (o *objStore) ListDecks(ctx context.Context) ([]string, error) {
	var decks []string
	token := ""
	for {
		page, next, err := o.store.KeysPrefix(ctx, token, model.ManifestPathPrefix(), "", 1024)
		if err != nil {
			return nil, err
		}
		for _, path := range page {
			deckID, perr := model.ParseManifestPath(path)
			if perr != nil {
				continue
			}
			decks = append(decks, deckID)
		}
		if next == "" {
			break
		}
		token = next
	}
	return decks, nil
}
