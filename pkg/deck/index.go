// Package deck maintains the local deck index: the current composition
// of each deck, its append-only version history and its sync state.
package deck

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v2"

	"github.com/oneconcern/deckmon/pkg/cas"
	casstatus "github.com/oneconcern/deckmon/pkg/cas/status"
	"github.com/oneconcern/deckmon/pkg/deck/status"
	"github.com/oneconcern/deckmon/pkg/dlogger"
	"github.com/oneconcern/deckmon/pkg/errors"
	"github.com/oneconcern/deckmon/pkg/fingerprint"
	"github.com/oneconcern/deckmon/pkg/model"
)

// IndexOption to tune the deck index
type IndexOption func(*Index)

// IndexLogger sets a logger on the index
func IndexLogger(l *zap.Logger) IndexOption {
	return func(ix *Index) {
		if l != nil {
			ix.l = l
		}
	}
}

// NewIndex builds a deck index over a badger database and a content store
func NewIndex(db *badger.DB, blobs cas.Store, opts ...IndexOption) *Index {
	ix := &Index{
		db:    db,
		blobs: blobs,
		l:     dlogger.MustGetLogger(dlogger.LogLevelInfo),
		locks: make(map[string]*sync.Mutex),
	}
	for _, apply := range opts {
		apply(ix)
	}
	return ix
}

// Index tracks deck compositions in a local badger database.
//
// The index owns composition references on the content store: recording
// a new composition acquires a citation per cited fingerprint and
// releases the citations of the superseded version.
type Index struct {
	db    *badger.DB
	blobs cas.Store
	l     *zap.Logger

	lockMx sync.Mutex
	locks  map[string]*sync.Mutex
}

func currentKey(deckID string) []byte {
	return []byte("decks/" + deckID + "/current")
}

func historyKey(deckID string, version uint64) []byte {
	return []byte(fmt.Sprintf("decks/%s/history/%020d", deckID, version))
}

func historyPrefix(deckID string) []byte {
	return []byte("decks/" + deckID + "/history/")
}

func syncKey(deckID string) []byte {
	return []byte("decks/" + deckID + "/sync")
}

// lockDeck serializes mutations of a single deck
func (ix *Index) lockDeck(deckID string) func() {
	ix.lockMx.Lock()
	mx, ok := ix.locks[deckID]
	if !ok {
		mx = &sync.Mutex{}
		ix.locks[deckID] = mx
	}
	ix.lockMx.Unlock()
	mx.Lock()
	return mx.Unlock
}

func getManifest(txn *badger.Txn, key []byte) (model.DeckManifest, bool, error) {
	var manifest model.DeckManifest
	item, err := txn.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return manifest, false, nil
		}
		return manifest, false, err
	}
	err = item.Value(func(val []byte) error {
		return yaml.Unmarshal(val, &manifest)
	})
	return manifest, err == nil, err
}

func setYAML(txn *badger.Txn, key []byte, value interface{}) error {
	data, err := yaml.Marshal(value)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// RecordComposition records a new composition for a deck, superseding
// the current one.
//
// Every cited fingerprint must already be present in the content store.
// The new version acquires one citation per cited fingerprint and the
// superseded version's citations are released, so reference counts
// reflect current compositions only. A pure reorder is a metadata-only
// update: acquisitions and releases cancel out blob-wise.
func (ix *Index) RecordComposition(ctx context.Context, deckID string, slides, assets []fingerprint.Key) (model.DeckManifest, error) {
	if deckID == "" || strings.Contains(deckID, "/") {
		return model.DeckManifest{}, status.ErrIndexInternal.WrapMessage(fmt.Sprintf("invalid deck id %q", deckID))
	}

	unlock := ix.lockDeck(deckID)
	defer unlock()

	var previous model.DeckManifest
	var known bool
	err := ix.db.View(func(txn *badger.Txn) error {
		var verr error
		previous, known, verr = getManifest(txn, currentKey(deckID))
		return verr
	})
	if err != nil {
		return model.DeckManifest{}, status.ErrIndexInternal.Wrap(err)
	}

	var next model.DeckManifest
	if known {
		next = previous.NextVersion(slides, assets)
	} else {
		next = model.NewDeckManifest(deckID, slides)
		next.Assets = assets
	}

	// invariant: compositions only cite stored blobs
	citations := next.Citations()
	for _, key := range citations {
		has, herr := ix.blobs.Has(ctx, key)
		if herr != nil {
			return model.DeckManifest{}, herr
		}
		if !has {
			return model.DeckManifest{}, status.ErrMissingBlob.WrapMessage(key.String())
		}
	}
	for i, key := range citations {
		if aerr := ix.blobs.Acquire(ctx, key); aerr != nil {
			// roll back the citations acquired so far
			for _, acquired := range citations[:i] {
				_ = ix.blobs.Release(ctx, acquired)
			}
			return model.DeckManifest{}, aerr
		}
	}

	err = ix.db.Update(func(txn *badger.Txn) error {
		if serr := setYAML(txn, currentKey(deckID), next); serr != nil {
			return serr
		}
		return setYAML(txn, historyKey(deckID, next.Version), next)
	})
	if err != nil {
		// roll the acquisitions back so counts stay consistent
		for _, key := range citations {
			_ = ix.blobs.Release(ctx, key)
		}
		return model.DeckManifest{}, status.ErrIndexInternal.Wrap(err)
	}

	if known {
		ix.releaseCitations(ctx, previous.Citations())
	}

	ix.l.Info("composition recorded",
		zap.String("deck", deckID),
		zap.Uint64("version", next.Version),
		zap.Int("slides", len(next.Slides)),
		zap.Int("assets", len(next.Assets)),
	)
	return next, nil
}

func (ix *Index) releaseCitations(ctx context.Context, citations []fingerprint.Key) {
	for _, key := range citations {
		if err := ix.blobs.Release(ctx, key); err != nil && !errors.Is(err, casstatus.ErrOverRelease) {
			ix.l.Warn("citation release failed",
				zap.Stringer("fingerprint", key), zap.Error(err))
		}
	}
}

// Current returns the current composition of a deck
func (ix *Index) Current(ctx context.Context, deckID string) (model.DeckManifest, error) {
	var manifest model.DeckManifest
	var known bool
	err := ix.db.View(func(txn *badger.Txn) error {
		var verr error
		manifest, known, verr = getManifest(txn, currentKey(deckID))
		return verr
	})
	if err != nil {
		return model.DeckManifest{}, status.ErrIndexInternal.Wrap(err)
	}
	if !known {
		return model.DeckManifest{}, status.ErrDeckNotFound.WrapMessage(deckID)
	}
	return manifest, nil
}

// History returns all recorded versions of a deck, oldest first
func (ix *Index) History(ctx context.Context, deckID string) ([]model.DeckManifest, error) {
	var history []model.DeckManifest
	err := ix.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := historyPrefix(deckID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var manifest model.DeckManifest
			if verr := it.Item().Value(func(val []byte) error {
				return yaml.Unmarshal(val, &manifest)
			}); verr != nil {
				return verr
			}
			history = append(history, manifest)
		}
		return nil
	})
	if err != nil {
		return nil, status.ErrIndexInternal.Wrap(err)
	}
	if len(history) == 0 {
		return nil, status.ErrDeckNotFound.WrapMessage(deckID)
	}
	return history, nil
}

// List returns the ids of all decks known to the index, sorted
func (ix *Index) List(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	err := ix.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte("decks/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			rest := strings.TrimPrefix(key, "decks/")
			if idx := strings.Index(rest, "/"); idx > 0 {
				seen[rest[:idx]] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, status.ErrIndexInternal.Wrap(err)
	}
	decks := make([]string, 0, len(seen))
	for deckID := range seen {
		decks = append(decks, deckID)
	}
	sort.Strings(decks)
	return decks, nil
}

// SyncState returns the last reconciled remote state of a deck. A deck
// never synced yields a zero state.
func (ix *Index) SyncState(ctx context.Context, deckID string) (model.SyncState, error) {
	var state model.SyncState
	err := ix.db.View(func(txn *badger.Txn) error {
		item, gerr := txn.Get(syncKey(deckID))
		if gerr != nil {
			if gerr == badger.ErrKeyNotFound {
				return nil
			}
			return gerr
		}
		return item.Value(func(val []byte) error {
			return yaml.Unmarshal(val, &state)
		})
	})
	if err != nil {
		return model.SyncState{}, status.ErrIndexInternal.Wrap(err)
	}
	state.DeckID = deckID
	return state, nil
}

// CommitSyncState records the remote version a deck just reconciled
// against, atomically with the mirror field on the current manifest.
func (ix *Index) CommitSyncState(ctx context.Context, deckID string, state model.SyncState) error {
	unlock := ix.lockDeck(deckID)
	defer unlock()

	state.DeckID = deckID
	if state.LastReconciledAt.IsZero() {
		state.LastReconciledAt = time.Now().UTC()
	}

	err := ix.db.Update(func(txn *badger.Txn) error {
		if serr := setYAML(txn, syncKey(deckID), state); serr != nil {
			return serr
		}
		manifest, known, gerr := getManifest(txn, currentKey(deckID))
		if gerr != nil {
			return gerr
		}
		if !known {
			return nil
		}
		manifest.LastSyncedRemoteVersion = state.RemoteVersion
		return setYAML(txn, currentKey(deckID), manifest)
	})
	if err != nil {
		return status.ErrIndexInternal.Wrap(err)
	}
	return nil
}

// Delete removes a deck from the index, releasing the citations of its
// current composition. History and sync state are removed as well.
func (ix *Index) Delete(ctx context.Context, deckID string) error {
	unlock := ix.lockDeck(deckID)
	defer unlock()

	var current model.DeckManifest
	var known bool
	err := ix.db.View(func(txn *badger.Txn) error {
		var verr error
		current, known, verr = getManifest(txn, currentKey(deckID))
		return verr
	})
	if err != nil {
		return status.ErrIndexInternal.Wrap(err)
	}
	if !known {
		return status.ErrDeckNotFound.WrapMessage(deckID)
	}

	var doomed [][]byte
	err = ix.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte("decks/" + deckID + "/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			doomed = append(doomed, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return status.ErrIndexInternal.Wrap(err)
	}

	err = ix.db.Update(func(txn *badger.Txn) error {
		for _, key := range doomed {
			if derr := txn.Delete(key); derr != nil {
				return derr
			}
		}
		return nil
	})
	if err != nil {
		return status.ErrIndexInternal.Wrap(err)
	}

	ix.releaseCitations(ctx, current.Citations())
	ix.l.Info("deck deleted", zap.String("deck", deckID), zap.Uint64("last_version", current.Version))
	return nil
}
