// Package status declares the sentinel errors surfaced by the sync engine
package status

import "github.com/oneconcern/deckmon/pkg/errors"

var (
	// ErrIntegrity indicates a downloaded payload that does not hash
	// to the fingerprint it was requested under. The payload is
	// discarded, never stored.
	ErrIntegrity = errors.New("downloaded payload fails fingerprint verification")

	// ErrSyncFailed indicates a synchronization attempt that aborted
	// before committing. The remote is untouched and the attempt may
	// be retried.
	ErrSyncFailed = errors.New("synchronization failed before commit")

	// ErrSyncInProgress indicates a concurrent synchronization of the
	// same deck
	ErrSyncInProgress = errors.New("synchronization already in progress for this deck")

	// ErrUnknownDeck indicates a deck known neither locally nor on the
	// remote
	ErrUnknownDeck = errors.New("deck unknown both locally and on the remote")
)
