package localfs

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"testing"

	"github.com/oneconcern/deckmon/pkg/errors"
	"github.com/oneconcern/deckmon/pkg/storage"
	"github.com/oneconcern/deckmon/pkg/storage/status"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t testing.TB) storage.Store {
	t.Helper()

	fs := afero.NewMemMapFs()
	f, err := fs.Create("sixteentons")
	require.NoError(t, err)
	_, err = f.WriteString("this is the text")
	require.NoError(t, err)
	f.Close()

	ff, err := fs.Create("seventeentons")
	require.NoError(t, err)
	_, err = ff.WriteString("this is the text for another thing")
	require.NoError(t, err)
	ff.Close()

	return New(fs)
}

func TestHas(t *testing.T) {
	bs := setupStore(t)

	has, err := bs.Has(context.Background(), "sixteentons")
	require.NoError(t, err)
	require.True(t, has)

	has, err = bs.Has(context.Background(), "fifteentons")
	require.NoError(t, err)
	require.False(t, has)
}

func TestGet(t *testing.T) {
	bs := setupStore(t)

	rdr, err := bs.Get(context.Background(), "sixteentons")
	require.NoError(t, err)
	b, err := io.ReadAll(rdr)
	require.NoError(t, err)
	require.NoError(t, rdr.Close())
	assert.Equal(t, "this is the text", string(b))

	_, err = bs.Get(context.Background(), "fifteentons")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotFound))
}

func TestPut(t *testing.T) {
	bs := setupStore(t)

	content := bytes.NewBufferString("here we go once again")
	err := bs.Put(context.Background(), "eighteentons", content, storage.NoOverWrite)
	require.NoError(t, err)

	rdr, err := bs.Get(context.Background(), "eighteentons")
	require.NoError(t, err)
	b, err := io.ReadAll(rdr)
	require.NoError(t, err)
	require.NoError(t, rdr.Close())
	assert.Equal(t, "here we go once again", string(b))

	// exclusive semantics
	err = bs.Put(context.Background(), "eighteentons", bytes.NewBufferString("x"), storage.NoOverWrite)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrExists))

	// overwrite semantics
	err = bs.Put(context.Background(), "eighteentons", bytes.NewBufferString("y"), storage.OverWrite)
	require.NoError(t, err)
}

func TestDelete(t *testing.T) {
	bs := setupStore(t)

	require.NoError(t, bs.Delete(context.Background(), "seventeentons"))
	k, err := bs.Keys(context.Background())
	require.NoError(t, err)
	assert.Len(t, k, 1)

	// deleting a missing key is not an error
	require.NoError(t, bs.Delete(context.Background(), "seventeentons"))
}

func TestKeys(t *testing.T) {
	bs := setupStore(t)

	keys, err := bs.Keys(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 2)
}

func TestKeysPrefix(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := New(fs)
	for i := 0; i < 10; i++ {
		require.NoError(t, store.Put(context.Background(),
			"blobs/e"+strconv.Itoa(i), bytes.NewBufferString("data"), storage.NoOverWrite))
		require.NoError(t, store.Put(context.Background(),
			"manifests/f"+strconv.Itoa(i), bytes.NewBufferString("data"), storage.NoOverWrite))
	}

	var (
		keys  []string
		next  string
		err   error
		pages int
		total int
	)
	for keys, next, err = store.KeysPrefix(context.Background(), "", "blobs/", "", 4); ; keys, next, err = store.KeysPrefix(context.Background(), next, "blobs/", "", 4) {
		require.NoError(t, err)
		total += len(keys)
		pages++
		if next == "" {
			break
		}
	}
	assert.Equal(t, 10, total)
	assert.Equal(t, 3, pages)
}

func TestPutVersioned(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := New(fs).(storage.Versioned)

	// creation requires expected generation 0
	gen, err := store.PutVersioned(context.Background(), "manifests/deck/manifest.yaml",
		bytes.NewBufferString("v1"), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)

	// a stale expected generation is rejected
	_, err = store.PutVersioned(context.Background(), "manifests/deck/manifest.yaml",
		bytes.NewBufferString("v2"), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrVersionConflict))

	// conditional update on the current generation
	rdr, cur, err := store.GetVersioned(context.Background(), "manifests/deck/manifest.yaml")
	require.NoError(t, err)
	b, err := io.ReadAll(rdr)
	require.NoError(t, err)
	require.NoError(t, rdr.Close())
	assert.Equal(t, "v1", string(b))

	gen, err = store.PutVersioned(context.Background(), "manifests/deck/manifest.yaml",
		bytes.NewBufferString("v2"), cur)
	require.NoError(t, err)
	assert.Equal(t, cur+1, gen)
}
