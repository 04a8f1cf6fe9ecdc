// Package status declares error constants returned by
// implementations of the Store interface.
//
// NOTE: such constants are located in a separate package to avoid
// creating undue cyclical dependencies between pkg/storage and one
// of its implementations.
package status

import "github.com/oneconcern/deckmon/pkg/errors"

var (
	// Sentinel errors returned by implementations of the interface defined by storage

	// ErrNotFound indicates that the backend API call did not find the target object
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates that the credentials presented to the backend API were rejected
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates that the backend API forbids access to the target object
	ErrForbidden = errors.New("forbidden")

	// ErrNotSupported indicates that the backend API does not support this call
	ErrNotSupported = errors.New("not supported")

	// ErrExists indicates that the object already exists and cannot be overridden
	ErrExists = errors.New("exists already")

	// ErrObjectTooBig indicates that the object is too big to be read into memory
	ErrObjectTooBig = errors.New("object too big to be read into memory")

	// ErrInvalidResource indicates that the storage object has an invalid name
	ErrInvalidResource = errors.New("invalid storage resource name")

	// ErrVersionConflict indicates that a conditional write lost the race:
	// the object generation moved since it was last read
	ErrVersionConflict = errors.New("object version conflict")

	// ErrTransient indicates a networking or backend availability error:
	// the call may be retried with backoff
	ErrTransient = errors.New("transient storage error")

	// ErrStorageAPI indicates any other storage API error
	ErrStorageAPI = errors.New("storage API error")
)
