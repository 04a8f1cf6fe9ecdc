package sthree

import (
	"errors"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/oneconcern/deckmon/pkg/storage/status"
)

// toSentinelErrors maps aws-sdk errors to sentinel errors declared by
// the storage/status package.
func toSentinelErrors(err error) error {
	if err == nil {
		return nil
	}

	var rerr awserr.RequestFailure
	if errors.As(err, &rerr) {
		switch rerr.StatusCode() {
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
		default:
			if rerr.StatusCode() >= 500 {
				return status.ErrTransient.Wrap(err)
			}
			return status.ErrStorageAPI.Wrap(err)
		}
	}

	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket:
			return status.ErrNotFound.Wrap(err)
		case "RequestError", "SerializationError":
			return status.ErrTransient.Wrap(err)
		}
	}

	return status.ErrStorageAPI.Wrap(err)
}
