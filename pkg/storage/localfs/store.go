// Package localfs provides a local file system backed implementation
// of storage.Store, used for local blob caches and as a test double
// for the cloud backends.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/oneconcern/deckmon/pkg/storage"
	"github.com/oneconcern/deckmon/pkg/storage/status"
	"github.com/spf13/afero"
)

// New creates a new local file system backed storage model
func New(fs afero.Fs) storage.Store {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), filepath.Join(".deckmon", "objects"))
	}
	return &localFS{
		fs:          fs,
		generations: make(map[string]int64),
	}
}

type localFS struct {
	fs afero.Fs

	// generation bookkeeping for conditional writes. Generations are
	// process-local: the localfs backend stands in for a versioned cloud
	// bucket in tests and single-process deployments.
	genMx       sync.Mutex
	generations map[string]int64
}

var (
	_ storage.Store     = &localFS{}
	_ storage.Versioned = &localFS{}
)

func (l *localFS) String() string {
	const localfs = "localfs"
	switch fs := l.fs.(type) {
	case *afero.BasePathFs:
		pp, err := fs.RealPath("")
		if err != nil {
			return localfs
		}
		return localfs + "@" + pp
	default:
		return localfs
	}
}

func (l *localFS) Has(ctx context.Context, key string) (bool, error) {
	fi, err := l.fs.Stat(key)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !fi.IsDir(), nil
}

type localReader struct {
	objectReader io.ReadCloser
}

func (r localReader) WriteTo(writer io.Writer) (n int64, err error) {
	return storage.PipeIO(writer, r.objectReader)
}

func (r localReader) Close() error {
	return r.objectReader.Close()
}

func (r localReader) Read(p []byte) (n int, err error) {
	return r.objectReader.Read(p)
}

func (l *localFS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	has, err := l.Has(ctx, key)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, status.ErrNotFound
	}
	t, err := l.fs.Open(key)
	if err != nil {
		return nil, err
	}
	return localReader{
		objectReader: t,
	}, nil
}

func (l *localFS) Put(ctx context.Context, key string, source io.Reader, overwrite bool) error {
	dir := filepath.Dir(key)
	if dir != "" {
		if err := l.fs.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("ensuring directories for %q: %v", key, err)
		}
	}
	flag := os.O_CREATE | os.O_WRONLY | os.O_TRUNC | os.O_SYNC
	if !overwrite {
		if has, err := l.Has(ctx, key); err != nil {
			return err
		} else if has {
			return status.ErrExists
		}
		flag |= os.O_EXCL
	}
	target, err := l.fs.OpenFile(key, flag, 0600)
	if err != nil {
		if os.IsExist(err) {
			return status.ErrExists
		}
		return fmt.Errorf("create record for %q: %v", key, err)
	}
	if _, err = storage.PipeIO(target, source); err != nil {
		_ = target.Close()
		return fmt.Errorf("write record for %q: %v", key, err)
	}
	if err = target.Close(); err != nil {
		return err
	}

	l.genMx.Lock()
	l.generations[key]++
	l.genMx.Unlock()
	return nil
}

func (l *localFS) Delete(ctx context.Context, key string) error {
	if err := l.fs.Remove(key); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %q: %v", key, err)
	}
	l.genMx.Lock()
	delete(l.generations, key)
	l.genMx.Unlock()
	return nil
}

func (l *localFS) Keys(ctx context.Context) ([]string, error) {
	const root = "."
	var res []string
	e := afero.Walk(l.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == root || info.IsDir() {
			return nil
		}
		res = append(res, path)
		return nil
	})
	if e != nil {
		return nil, e
	}
	sort.Strings(res)
	return res, nil
}

// KeysPrefix pages over keys with a given prefix. The continuation token is
// the last key of the previous page.
func (l *localFS) KeysPrefix(ctx context.Context, token, prefix, delimiter string, count int) ([]string, string, error) {
	if delimiter != "" {
		return nil, "", status.ErrNotSupported
	}
	all, err := l.Keys(ctx)
	if err != nil {
		return nil, "", err
	}

	res := make([]string, 0, count)
	for _, k := range all {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if token != "" && k <= token {
			continue
		}
		res = append(res, k)
		if len(res) == count {
			return res, k, nil
		}
	}
	return res, "", nil
}

// GetVersioned returns the object payload along with its current generation
func (l *localFS) GetVersioned(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	l.genMx.Lock()
	gen := l.currentGeneration(key)
	l.genMx.Unlock()

	rdr, err := l.Get(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	return rdr, gen, nil
}

// PutVersioned writes the object only when its current generation matches
// the expected one (0 meaning the object must not exist yet).
func (l *localFS) PutVersioned(ctx context.Context, key string, source io.Reader, expectedGeneration int64) (int64, error) {
	l.genMx.Lock()
	defer l.genMx.Unlock()

	gen := l.currentGeneration(key)
	if gen != expectedGeneration {
		return 0, status.ErrVersionConflict
	}

	dir := filepath.Dir(key)
	if dir != "" {
		if err := l.fs.MkdirAll(dir, 0700); err != nil {
			return 0, fmt.Errorf("ensuring directories for %q: %v", key, err)
		}
	}
	target, err := l.fs.OpenFile(key, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_SYNC, 0600)
	if err != nil {
		return 0, fmt.Errorf("create record for %q: %v", key, err)
	}
	if _, err = storage.PipeIO(target, source); err != nil {
		_ = target.Close()
		return 0, fmt.Errorf("write record for %q: %v", key, err)
	}
	if err = target.Close(); err != nil {
		return 0, err
	}

	l.generations[key] = gen + 1
	return gen + 1, nil
}

// currentGeneration assumes genMx is held. Objects present on disk but
// unknown to the generation table (e.g. from a previous process) start at 1.
func (l *localFS) currentGeneration(key string) int64 {
	if gen, ok := l.generations[key]; ok {
		return gen
	}
	fi, err := l.fs.Stat(key)
	if err != nil || fi.IsDir() {
		return 0
	}
	l.generations[key] = 1
	return 1
}
