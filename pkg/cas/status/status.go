// Package status declares the sentinel errors surfaced by the content store
package status

import "github.com/oneconcern/deckmon/pkg/errors"

var (
	// ErrBlobNotFound indicates that no blob is stored under the
	// requested fingerprint
	ErrBlobNotFound = errors.New("blob not found in content store")

	// ErrOverRelease indicates an attempt to release a fingerprint
	// whose reference count is already zero
	ErrOverRelease = errors.New("reference count already zero")

	// ErrHashMismatch indicates a payload whose fingerprint does not
	// match the key it was presented under
	ErrHashMismatch = errors.New("payload does not hash to the expected fingerprint")

	// ErrStoreInternal indicates a failure of the underlying blob
	// backend or reference database
	ErrStoreInternal = errors.New("content store internal failure")
)
