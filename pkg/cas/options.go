package cas

import (
	badger "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/oneconcern/deckmon/pkg/fingerprint"
	"github.com/oneconcern/deckmon/pkg/storage"
)

// Option to tune the content store
type Option func(*contentStore)

// Backend sets the blob store hosting payloads
func Backend(store storage.Store) Option {
	return func(c *contentStore) {
		c.backend = store
	}
}

// KV sets the badger database tracking reference counts
func KV(db *badger.DB) Option {
	return func(c *contentStore) {
		c.db = db
	}
}

// Logger sets a logger on this content store
func Logger(l *zap.Logger) Option {
	return func(c *contentStore) {
		if l != nil {
			c.l = l
		}
	}
}

// Prefix sets a key prefix under which blobs are stored on the backend
func Prefix(prefix string) Option {
	return func(c *contentStore) {
		c.prefix = prefix
	}
}

// VerifyHash makes Get re-hash payloads and fail on mismatch
func VerifyHash(enabled bool) Option {
	return func(c *contentStore) {
		c.verifyHash = enabled
	}
}

// Hasher overrides the fingerprint maker
func Hasher(maker *fingerprint.Maker) Option {
	return func(c *contentStore) {
		if maker != nil {
			c.maker = maker
		}
	}
}
