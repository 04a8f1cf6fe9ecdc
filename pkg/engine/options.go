package engine

import (
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/oneconcern/deckmon/pkg/extract"
)

// Option to tune the sync engine
type Option func(*Engine)

// Logger sets a logger on the engine
func Logger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.l = l
		}
	}
}

// Concurrency bounds the number of parallel blob transfers
func Concurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// RetryAttempts bounds retries of transient remote failures
func RetryAttempts(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.retryAttempts = n
		}
	}
}

// RetryBaseDelay sets the initial backoff delay, doubled on every retry
func RetryBaseDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.retryBaseDelay = d
		}
	}
}

// PresenceCacheSize bounds the cache of blobs known to exist remotely
func PresenceCacheSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.presenceSize = n
		}
	}
}

// Extractor sets the archive extractor used by the ingest pipeline
func Extractor(x extract.Extractor) Option {
	return func(e *Engine) {
		if x != nil {
			e.extractor = x
		}
	}
}

// FS sets the filesystem the ingest pipeline scans for archives
func FS(fs afero.Fs) Option {
	return func(e *Engine) {
		if fs != nil {
			e.fs = fs
		}
	}
}

// ExcludePatterns skips archive paths containing any of the given
// fragments during tree ingestion
func ExcludePatterns(patterns ...string) Option {
	return func(e *Engine) {
		e.excludes = patterns
	}
}
