// Package status declares the sentinel errors surfaced by the deck index
package status

import "github.com/oneconcern/deckmon/pkg/errors"

var (
	// ErrDeckNotFound indicates the deck is not known to the index
	ErrDeckNotFound = errors.New("deck not found in index")

	// ErrMissingBlob indicates a composition cites a fingerprint that
	// is not present in the content store
	ErrMissingBlob = errors.New("composition cites a blob absent from the content store")

	// ErrIndexInternal indicates a failure of the underlying database
	ErrIndexInternal = errors.New("deck index internal failure")
)
