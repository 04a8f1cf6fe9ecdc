package deck_test

import (
	"bytes"
	"context"
	"testing"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/deckmon/pkg/cas"
	casstatus "github.com/oneconcern/deckmon/pkg/cas/status"
	"github.com/oneconcern/deckmon/pkg/deck"
	"github.com/oneconcern/deckmon/pkg/deck/status"
	"github.com/oneconcern/deckmon/pkg/errors"
	"github.com/oneconcern/deckmon/pkg/fingerprint"
	"github.com/oneconcern/deckmon/pkg/model"
	"github.com/oneconcern/deckmon/pkg/storage/localfs"
)

type indexFixture struct {
	ix    *deck.Index
	blobs cas.Store
	db    *badger.DB
}

func setupIndex(t *testing.T) *indexFixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	blobs := cas.New(
		cas.Backend(localfs.New(afero.NewBasePathFs(afero.NewMemMapFs(), "blobs"))),
		cas.KV(db),
	)
	return &indexFixture{
		ix:    deck.NewIndex(db, blobs),
		blobs: blobs,
		db:    db,
	}
}

// store a payload the way the ingest pipeline does: put, then drop the
// caller's pin once the composition owns its citation
func (f *indexFixture) store(t *testing.T, payload string) fingerprint.Key {
	t.Helper()
	res, err := f.blobs.Put(context.Background(), bytes.NewReader([]byte(payload)))
	require.NoError(t, err)
	return res.Key
}

func (f *indexFixture) record(t *testing.T, deckID string, slides []fingerprint.Key, assets []fingerprint.Key) model.DeckManifest {
	t.Helper()
	manifest, err := f.ix.RecordComposition(context.Background(), deckID, slides, assets)
	require.NoError(t, err)
	return manifest
}

func (f *indexFixture) dropPins(t *testing.T, keys ...fingerprint.Key) {
	t.Helper()
	for _, key := range keys {
		require.NoError(t, f.blobs.Release(context.Background(), key))
	}
}

func (f *indexFixture) refCount(t *testing.T, key fingerprint.Key) int64 {
	t.Helper()
	count, err := f.blobs.RefCount(context.Background(), key)
	require.NoError(t, err)
	return count
}

func TestRecordComposition(t *testing.T) {
	ctx := context.Background()
	f := setupIndex(t)

	a := f.store(t, "slide-a")
	b := f.store(t, "slide-b")

	first := f.record(t, "all-hands", []fingerprint.Key{a, b}, nil)
	f.dropPins(t, a, b)
	assert.Equal(t, uint64(1), first.Version)

	current, err := f.ix.Current(ctx, "all-hands")
	require.NoError(t, err)
	assert.Equal(t, first.ID, current.ID)
	assert.Equal(t, []fingerprint.Key{a, b}, current.Slides)

	assert.EqualValues(t, 1, f.refCount(t, a))
	assert.EqualValues(t, 1, f.refCount(t, b))

	_, err = f.ix.Current(ctx, "nonesuch")
	assert.True(t, errors.Is(err, status.ErrDeckNotFound))
}

func TestRecordCompositionMissingBlob(t *testing.T) {
	f := setupIndex(t)
	ghost := fingerprint.Sum([]byte("never stored"))

	_, err := f.ix.RecordComposition(context.Background(), "all-hands", []fingerprint.Key{ghost}, nil)
	assert.True(t, errors.Is(err, status.ErrMissingBlob))
}

// denyAcquireStore refuses to acquire one designated fingerprint
type denyAcquireStore struct {
	cas.Store
	deny fingerprint.Key
}

func (s *denyAcquireStore) Acquire(ctx context.Context, key fingerprint.Key) error {
	if key == s.deny {
		return casstatus.ErrStoreInternal.WrapMessage("kv unavailable")
	}
	return s.Store.Acquire(ctx, key)
}

func TestRecordCompositionAcquireRollback(t *testing.T) {
	// an acquire failure halfway through the citation loop must roll back
	// the citations already taken, or the leaked counts shield the blobs
	// from GC forever
	ctx := context.Background()
	f := setupIndex(t)

	a := f.store(t, "slide-a")
	b := f.store(t, "slide-b")

	flaky := &denyAcquireStore{Store: f.blobs, deny: b}
	ix := deck.NewIndex(f.db, flaky)

	_, err := ix.RecordComposition(ctx, "all-hands", []fingerprint.Key{a, b}, nil)
	require.Error(t, err)

	// nothing was recorded and only the ingest pins remain
	_, err = f.ix.Current(ctx, "all-hands")
	assert.True(t, errors.Is(err, status.ErrDeckNotFound))
	assert.EqualValues(t, 1, f.refCount(t, a))
	assert.EqualValues(t, 1, f.refCount(t, b))

	f.dropPins(t, a, b)
	assert.EqualValues(t, 0, f.refCount(t, a), "no citation left behind by the failed record")
	assert.EqualValues(t, 0, f.refCount(t, b))
}

func TestEditAndDeleteScenario(t *testing.T) {
	// deck v1 cites {a, b, c}; v2 keeps a, edits b into b2, drops c
	f := setupIndex(t)

	a := f.store(t, "slide-a")
	b := f.store(t, "slide-b")
	c := f.store(t, "slide-c")
	f.record(t, "all-hands", []fingerprint.Key{a, b, c}, nil)
	f.dropPins(t, a, b, c)

	b2 := f.store(t, "slide-b v2")
	second := f.record(t, "all-hands", []fingerprint.Key{a, b2}, nil)
	f.dropPins(t, b2)

	assert.Equal(t, uint64(2), second.Version)
	assert.EqualValues(t, 1, f.refCount(t, a), "surviving slide keeps one citation")
	assert.EqualValues(t, 0, f.refCount(t, b), "edited-away content released")
	assert.EqualValues(t, 0, f.refCount(t, c), "deleted slide released")
	assert.EqualValues(t, 1, f.refCount(t, b2))

	history, err := f.ix.History(context.Background(), "all-hands")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, uint64(1), history[0].Version)
	assert.Equal(t, uint64(2), history[1].Version)
}

func TestCrossDeckSharing(t *testing.T) {
	// the same slide cited by two decks counts two citations and
	// survives the deletion of one of them
	ctx := context.Background()
	f := setupIndex(t)

	shared := f.store(t, "shared-slide")
	f.record(t, "deck-one", []fingerprint.Key{shared}, nil)
	f.dropPins(t, shared)

	require.NoError(t, f.blobs.Acquire(ctx, shared)) // second ingest pins it again
	f.record(t, "deck-two", []fingerprint.Key{shared}, nil)
	f.dropPins(t, shared)

	assert.EqualValues(t, 2, f.refCount(t, shared))

	require.NoError(t, f.ix.Delete(ctx, "deck-one"))
	assert.EqualValues(t, 1, f.refCount(t, shared))

	has, err := f.blobs.Has(ctx, shared)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestReorderIsMetadataOnly(t *testing.T) {
	f := setupIndex(t)

	a := f.store(t, "slide-a")
	b := f.store(t, "slide-b")
	f.record(t, "all-hands", []fingerprint.Key{a, b}, nil)
	f.dropPins(t, a, b)

	// reorder without re-ingesting anything
	reordered, err := f.ix.RecordComposition(context.Background(), "all-hands", []fingerprint.Key{b, a}, nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), reordered.Version)
	assert.EqualValues(t, 1, f.refCount(t, a))
	assert.EqualValues(t, 1, f.refCount(t, b))
}

func TestAssetsCited(t *testing.T) {
	f := setupIndex(t)

	slide := f.store(t, "slide")
	pic := f.store(t, "picture-bytes")
	f.record(t, "all-hands", []fingerprint.Key{slide}, []fingerprint.Key{pic})
	f.dropPins(t, slide, pic)

	assert.EqualValues(t, 1, f.refCount(t, pic), "asset citations are counted")

	f.record(t, "all-hands", []fingerprint.Key{slide}, nil)
	assert.EqualValues(t, 0, f.refCount(t, pic))
}

func TestSyncState(t *testing.T) {
	ctx := context.Background()
	f := setupIndex(t)

	a := f.store(t, "slide-a")
	f.record(t, "all-hands", []fingerprint.Key{a}, nil)
	f.dropPins(t, a)

	state, err := f.ix.SyncState(ctx, "all-hands")
	require.NoError(t, err)
	assert.Zero(t, state.RemoteVersion, "never synced yields the zero state")

	require.NoError(t, f.ix.CommitSyncState(ctx, "all-hands", model.SyncState{
		RemoteVersion: 3,
		RemoteSlides:  []fingerprint.Key{a},
	}))

	state, err = f.ix.SyncState(ctx, "all-hands")
	require.NoError(t, err)
	assert.EqualValues(t, 3, state.RemoteVersion)
	assert.False(t, state.LastReconciledAt.IsZero())

	current, err := f.ix.Current(ctx, "all-hands")
	require.NoError(t, err)
	assert.EqualValues(t, 3, current.LastSyncedRemoteVersion)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	f := setupIndex(t)

	a := f.store(t, "slide-a")
	f.record(t, "zulu", []fingerprint.Key{a}, nil)
	require.NoError(t, f.blobs.Acquire(ctx, a))
	f.record(t, "alpha", []fingerprint.Key{a}, nil)
	f.dropPins(t, a, a)

	decks, err := f.ix.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zulu"}, decks)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	f := setupIndex(t)

	a := f.store(t, "slide-a")
	f.record(t, "all-hands", []fingerprint.Key{a}, nil)
	f.dropPins(t, a)

	require.NoError(t, f.ix.Delete(ctx, "all-hands"))
	assert.EqualValues(t, 0, f.refCount(t, a))

	_, err := f.ix.Current(ctx, "all-hands")
	assert.True(t, errors.Is(err, status.ErrDeckNotFound))
	_, err = f.ix.History(ctx, "all-hands")
	assert.True(t, errors.Is(err, status.ErrDeckNotFound))

	err = f.ix.Delete(ctx, "all-hands")
	assert.True(t, errors.Is(err, status.ErrDeckNotFound))
}
