package gcs

import (
	"fmt"
	"testing"

	gcsStorage "cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"

	"github.com/oneconcern/deckmon/pkg/storage/status"
)

func TestToSentinelErrors(t *testing.T) {
	assert.NoError(t, toSentinelErrors(nil))

	for code, sentinel := range map[int]error{
		400: status.ErrInvalidResource,
		401: status.ErrUnauthorized,
		403: status.ErrForbidden,
		404: status.ErrNotFound,
		408: status.ErrTransient,
		412: status.ErrVersionConflict,
		429: status.ErrTransient,
		500: status.ErrTransient,
		503: status.ErrTransient,
	} {
		err := toSentinelErrors(&googleapi.Error{Code: code})
		assert.ErrorIs(t, err, sentinel, "code %d", code)
	}

	assert.ErrorIs(t, toSentinelErrors(gcsStorage.ErrObjectNotExist), status.ErrNotFound)
	assert.ErrorIs(t, toSentinelErrors(fmt.Errorf("read tcp: connection reset by peer")), status.ErrTransient)
	assert.ErrorIs(t, toSentinelErrors(fmt.Errorf("some other failure")), status.ErrStorageAPI)
}
