package gcs

import (
	"context"
	"errors"
	"net"
	"strings"

	gcsStorage "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/oneconcern/deckmon/pkg/storage/status"
)

// toSentinelErrors maps google googleapi errors to sentinel errors
// declared by the storage/status package.
func toSentinelErrors(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gcsStorage.ErrObjectNotExist) || errors.Is(err, gcsStorage.ErrBucketNotExist) {
		return status.ErrNotFound.Wrap(err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 400:
			return status.ErrInvalidResource.Wrap(err)
		case 401:
			return status.ErrUnauthorized.Wrap(err)
		case 403:
			return status.ErrForbidden.Wrap(err)
		case 404:
			return status.ErrNotFound.Wrap(err)
		case 408, 429:
			return status.ErrTransient.Wrap(err)
		case 412:
			return status.ErrVersionConflict.Wrap(err)
		default:
			if apiErr.Code >= 500 {
				return status.ErrTransient.Wrap(err)
			}
			return status.ErrStorageAPI.Wrap(err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return status.ErrTransient.Wrap(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.ErrTransient.Wrap(err)
	}
	if strings.Contains(err.Error(), "connection reset") ||
		strings.Contains(err.Error(), "connection refused") {
		return status.ErrTransient.Wrap(err)
	}

	return status.ErrStorageAPI.Wrap(err)
}
