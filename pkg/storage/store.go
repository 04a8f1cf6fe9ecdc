// Package storage abstracts the K/V object stores used to persist
// slide blobs and remote deck manifests.
//
// Typically this is something file system-like. Examples are GCS, S3,
// local FS, NFS, ... Implementations of this interface are assumed to
// be fairly simple: retries and richer semantics belong to callers.
package storage

import (
	"context"
	"io"

	"github.com/oneconcern/deckmon/pkg/storage/status"
)

const (
	// MaxObjectSizeInMemory guards in-memory reads of whole objects (64MB).
	// Slide units and manifests are small, so this is generous.
	MaxObjectSizeInMemory = 64 * 1024 * 1024

	// OverWrite overwrites an existing object on Put
	OverWrite = true

	// NoOverWrite makes Put fail with status.ErrExists on existing objects
	NoOverWrite = false
)

// Store implementations know how to write objects to a K/V backend.
type Store interface {
	String() string
	Has(context.Context, string) (bool, error)
	Get(context.Context, string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, source io.Reader, overwrite bool) error
	Delete(context.Context, string) error
	Keys(context.Context) ([]string, error)
	KeysPrefix(ctx context.Context, token, prefix, delimiter string, count int) ([]string, string, error)
}

// Versioned is implemented by stores supporting atomic conditional writes.
//
// Generations are opaque monotonically increasing numbers maintained by the
// backend for each key. PutVersioned succeeds only when the current
// generation matches the expected one, with 0 meaning "the object must not
// exist yet". A mismatch yields status.ErrVersionConflict.
type Versioned interface {
	GetVersioned(ctx context.Context, key string) (io.ReadCloser, int64, error)
	PutVersioned(ctx context.Context, key string, source io.Reader, expectedGeneration int64) (int64, error)
}

// PipeIO copies a reader out to a writer, with a fixed-size intermediate buffer
func PipeIO(writer io.Writer, reader io.Reader) (n int64, err error) {
	buf := make([]byte, 32*1024)
	return io.CopyBuffer(writer, reader, buf)
}

// ReadAllLimited reads a whole object in memory, guarding against
// unexpectedly large payloads with status.ErrObjectTooBig.
func ReadAllLimited(rdr io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(rdr, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, status.ErrObjectTooBig
	}
	return b, nil
}
