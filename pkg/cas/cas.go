// Package cas implements the content-addressed slide store: write-once
// blobs keyed by the blake2b fingerprint of their payload, with
// reference counts tracking how many deck compositions cite each blob.
package cas

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"sync"

	badger "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/oneconcern/deckmon/pkg/cas/status"
	"github.com/oneconcern/deckmon/pkg/dlogger"
	"github.com/oneconcern/deckmon/pkg/errors"
	"github.com/oneconcern/deckmon/pkg/fingerprint"
	"github.com/oneconcern/deckmon/pkg/storage"
	storagestatus "github.com/oneconcern/deckmon/pkg/storage/status"
)

// PutRes is the result of a Put operation
type PutRes struct {
	// Key is the fingerprint of the stored payload
	Key fingerprint.Key

	// Written is the payload size in bytes
	Written int64

	// Found indicates the payload was already stored (deduplicated)
	Found bool
}

// Store is the content-addressed store interface.
//
// Payloads are written once under their fingerprint and never
// overwritten. Reference counts track citations by current deck
// compositions; a zero count makes a blob eligible for GC but never
// deletes it inline.
type Store interface {
	// Put fingerprints the payload, stores it if unseen and acquires
	// one reference for the caller's citation
	Put(ctx context.Context, src io.Reader) (PutRes, error)

	// Get returns the payload stored under a fingerprint
	Get(ctx context.Context, key fingerprint.Key) (io.ReadCloser, error)

	// Has reports whether a payload is stored under a fingerprint
	Has(ctx context.Context, key fingerprint.Key) (bool, error)

	// Restore stores a payload under its fingerprint without touching
	// its reference count. The payload must hash to the given key.
	Restore(ctx context.Context, key fingerprint.Key, src io.Reader) error

	// Acquire increments the reference count of a stored blob
	Acquire(ctx context.Context, key fingerprint.Key) error

	// Release decrements the reference count of a blob. Counts never
	// go below zero: releasing an unreferenced blob fails with
	// status.ErrOverRelease.
	Release(ctx context.Context, key fingerprint.Key) error

	// RefCount returns the current reference count of a blob
	RefCount(ctx context.Context, key fingerprint.Key) (int64, error)

	// Keys lists the fingerprints of all stored blobs
	Keys(ctx context.Context) ([]fingerprint.Key, error)

	// GC deletes blobs whose reference count is zero and returns how
	// many were reclaimed
	GC(ctx context.Context) (int64, error)
}

// New builds a content store from its options. Backend and KV are
// required.
func New(opts ...Option) Store {
	c := &contentStore{
		prefix:     "cas/",
		maker:      fingerprint.New(),
		l:          dlogger.MustGetLogger(dlogger.LogLevelInfo),
		blobLocks:  make(map[fingerprint.Key]*sync.Mutex),
		verifyHash: false,
	}
	for _, apply := range opts {
		apply(c)
	}
	return c
}

type contentStore struct {
	backend    storage.Store
	db         *badger.DB
	prefix     string
	maker      *fingerprint.Maker
	verifyHash bool
	l          *zap.Logger

	lockMx    sync.Mutex
	blobLocks map[fingerprint.Key]*sync.Mutex
}

const refsPrefix = "refs/"

func refKey(key fingerprint.Key) []byte {
	return []byte(refsPrefix + key.String())
}

func (c *contentStore) blobPath(key fingerprint.Key) string {
	return c.prefix + key.String()
}

// lockBlob serializes mutations of a single fingerprint, so GC cannot
// reclaim a blob between its presence check and its count update.
func (c *contentStore) lockBlob(key fingerprint.Key) func() {
	c.lockMx.Lock()
	mx, ok := c.blobLocks[key]
	if !ok {
		mx = &sync.Mutex{}
		c.blobLocks[key] = mx
	}
	c.lockMx.Unlock()
	mx.Lock()
	return mx.Unlock
}

// update wraps badger updates with a retry on transaction conflicts
func (c *contentStore) update(fn func(txn *badger.Txn) error) error {
	for {
		err := c.db.Update(fn)
		if err != badger.ErrConflict {
			return err
		}
	}
}

func counterValue(txn *badger.Txn, key fingerprint.Key) (int64, bool, error) {
	item, err := txn.Get(refKey(key))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return 0, false, nil
		}
		return 0, false, err
	}
	var count int64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return status.ErrStoreInternal
		}
		count = int64(binary.BigEndian.Uint64(val))
		return nil
	})
	return count, true, err
}

func setCounter(txn *badger.Txn, key fingerprint.Key, count int64) error {
	var val [8]byte
	binary.BigEndian.PutUint64(val[:], uint64(count))
	return txn.Set(refKey(key), val[:])
}

func (c *contentStore) Put(ctx context.Context, src io.Reader) (PutRes, error) {
	data, err := storage.ReadAllLimited(src, storage.MaxObjectSizeInMemory)
	if err != nil {
		return PutRes{}, status.ErrStoreInternal.Wrap(err)
	}
	key, err := c.maker.Process(bytes.NewReader(data))
	if err != nil {
		return PutRes{}, status.ErrStoreInternal.Wrap(err)
	}

	unlock := c.lockBlob(key)
	defer unlock()

	found, err := c.backend.Has(ctx, c.blobPath(key))
	if err != nil {
		return PutRes{}, err
	}
	if !found {
		err = c.backend.Put(ctx, c.blobPath(key), bytes.NewReader(data), storage.NoOverWrite)
		if err != nil && !errors.Is(err, storagestatus.ErrExists) {
			return PutRes{}, err
		}
		// a concurrent writer beating us to the exclusive put still
		// counts as found: same fingerprint, same payload
		found = errors.Is(err, storagestatus.ErrExists)
	}

	err = c.update(func(txn *badger.Txn) error {
		count, _, cerr := counterValue(txn, key)
		if cerr != nil {
			return cerr
		}
		return setCounter(txn, key, count+1)
	})
	if err != nil {
		return PutRes{}, status.ErrStoreInternal.Wrap(err)
	}

	c.l.Debug("blob stored",
		zap.Stringer("fingerprint", key),
		zap.Int("size", len(data)),
		zap.Bool("deduplicated", found),
	)
	return PutRes{Key: key, Written: int64(len(data)), Found: found}, nil
}

func (c *contentStore) Get(ctx context.Context, key fingerprint.Key) (io.ReadCloser, error) {
	rdr, err := c.backend.Get(ctx, c.blobPath(key))
	if err != nil {
		if errors.Is(err, storagestatus.ErrNotFound) {
			return nil, status.ErrBlobNotFound.Wrap(err)
		}
		return nil, err
	}
	if !c.verifyHash {
		return rdr, nil
	}

	defer func() { _ = rdr.Close() }()
	data, err := storage.ReadAllLimited(rdr, storage.MaxObjectSizeInMemory)
	if err != nil {
		return nil, status.ErrStoreInternal.Wrap(err)
	}
	actual, err := c.maker.Process(bytes.NewReader(data))
	if err != nil {
		return nil, status.ErrStoreInternal.Wrap(err)
	}
	if actual != key {
		return nil, status.ErrHashMismatch
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *contentStore) Has(ctx context.Context, key fingerprint.Key) (bool, error) {
	return c.backend.Has(ctx, c.blobPath(key))
}

func (c *contentStore) Restore(ctx context.Context, key fingerprint.Key, src io.Reader) error {
	data, err := storage.ReadAllLimited(src, storage.MaxObjectSizeInMemory)
	if err != nil {
		return status.ErrStoreInternal.Wrap(err)
	}
	actual, err := c.maker.Process(bytes.NewReader(data))
	if err != nil {
		return status.ErrStoreInternal.Wrap(err)
	}
	if actual != key {
		return status.ErrHashMismatch
	}

	unlock := c.lockBlob(key)
	defer unlock()

	err = c.backend.Put(ctx, c.blobPath(key), bytes.NewReader(data), storage.NoOverWrite)
	if err != nil && !errors.Is(err, storagestatus.ErrExists) {
		return err
	}
	return nil
}

func (c *contentStore) Acquire(ctx context.Context, key fingerprint.Key) error {
	unlock := c.lockBlob(key)
	defer unlock()

	found, err := c.backend.Has(ctx, c.blobPath(key))
	if err != nil {
		return err
	}
	if !found {
		return status.ErrBlobNotFound
	}
	err = c.update(func(txn *badger.Txn) error {
		count, _, cerr := counterValue(txn, key)
		if cerr != nil {
			return cerr
		}
		return setCounter(txn, key, count+1)
	})
	if err != nil {
		return status.ErrStoreInternal.Wrap(err)
	}
	return nil
}

func (c *contentStore) Release(ctx context.Context, key fingerprint.Key) error {
	unlock := c.lockBlob(key)
	defer unlock()

	err := c.update(func(txn *badger.Txn) error {
		count, ok, cerr := counterValue(txn, key)
		if cerr != nil {
			return cerr
		}
		if !ok || count == 0 {
			return status.ErrOverRelease
		}
		return setCounter(txn, key, count-1)
	})
	if errors.Is(err, status.ErrOverRelease) {
		return err
	}
	if err != nil {
		return status.ErrStoreInternal.Wrap(err)
	}
	return nil
}

func (c *contentStore) RefCount(ctx context.Context, key fingerprint.Key) (int64, error) {
	var count int64
	var tracked bool
	err := c.db.View(func(txn *badger.Txn) error {
		var cerr error
		count, tracked, cerr = counterValue(txn, key)
		return cerr
	})
	if err != nil {
		return 0, status.ErrStoreInternal.Wrap(err)
	}
	if !tracked {
		found, herr := c.backend.Has(ctx, c.blobPath(key))
		if herr != nil {
			return 0, herr
		}
		if !found {
			return 0, status.ErrBlobNotFound
		}
	}
	return count, nil
}

func (c *contentStore) Keys(ctx context.Context) ([]fingerprint.Key, error) {
	var keys []fingerprint.Key
	token := ""
	for {
		page, next, err := c.backend.KeysPrefix(ctx, token, c.prefix, "", 1024)
		if err != nil {
			if errors.Is(err, storagestatus.ErrNotSupported) {
				return c.allKeysUnpaged(ctx)
			}
			return nil, err
		}
		for _, path := range page {
			key, kerr := fingerprint.KeyFromString(path[len(c.prefix):])
			if kerr != nil {
				continue
			}
			keys = append(keys, key)
		}
		if next == "" {
			break
		}
		token = next
	}
	return keys, nil
}

func (c *contentStore) allKeysUnpaged(ctx context.Context) ([]fingerprint.Key, error) {
	paths, err := c.backend.Keys(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]fingerprint.Key, 0, len(paths))
	for _, path := range paths {
		if len(path) <= len(c.prefix) || path[:len(c.prefix)] != c.prefix {
			continue
		}
		key, kerr := fingerprint.KeyFromString(path[len(c.prefix):])
		if kerr != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// GC reclaims blobs with a zero reference count.
//
// Candidates are collected from a snapshot scan, then re-checked one by
// one under the blob lock and inside the delete transaction, so a
// citation acquired after the scan keeps its blob.
func (c *contentStore) GC(ctx context.Context) (int64, error) {
	var candidates []fingerprint.Key
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(refsPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var count int64
			if verr := item.Value(func(val []byte) error {
				if len(val) != 8 {
					return status.ErrStoreInternal
				}
				count = int64(binary.BigEndian.Uint64(val))
				return nil
			}); verr != nil {
				return verr
			}
			if count != 0 {
				continue
			}
			key, kerr := fingerprint.KeyFromString(string(item.Key()[len(refsPrefix):]))
			if kerr != nil {
				continue
			}
			candidates = append(candidates, key)
		}
		return nil
	})
	if err != nil {
		return 0, status.ErrStoreInternal.Wrap(err)
	}

	var reclaimed int64
	for _, key := range candidates {
		if ctx.Err() != nil {
			return reclaimed, ctx.Err()
		}
		ok, gerr := c.reclaim(ctx, key)
		if gerr != nil {
			return reclaimed, gerr
		}
		if ok {
			reclaimed++
			c.l.Debug("blob reclaimed", zap.Stringer("fingerprint", key))
		}
	}
	if reclaimed > 0 {
		c.l.Info("garbage collection settled", zap.Int64("reclaimed", reclaimed))
	}
	return reclaimed, nil
}

func (c *contentStore) reclaim(ctx context.Context, key fingerprint.Key) (bool, error) {
	unlock := c.lockBlob(key)
	defer unlock()

	deleted := false
	err := c.update(func(txn *badger.Txn) error {
		deleted = false
		count, ok, cerr := counterValue(txn, key)
		if cerr != nil {
			return cerr
		}
		if !ok || count != 0 {
			return nil
		}
		if derr := txn.Delete(refKey(key)); derr != nil {
			return derr
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, status.ErrStoreInternal.Wrap(err)
	}
	if !deleted {
		return false, nil
	}
	if err := c.backend.Delete(ctx, c.blobPath(key)); err != nil {
		return false, err
	}
	return true, nil
}
