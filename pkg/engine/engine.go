// Package engine reconciles local deck compositions with a remote
// store: it plans transfers from manifest differences, moves blobs on
// a bounded worker pool and commits manifests with optimistic
// concurrency.
package engine

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/oneconcern/deckmon/pkg/cas"
	"github.com/oneconcern/deckmon/pkg/deck"
	"github.com/oneconcern/deckmon/pkg/dlogger"
	"github.com/oneconcern/deckmon/pkg/extract"
	"github.com/oneconcern/deckmon/pkg/extract/keynote"
	"github.com/oneconcern/deckmon/pkg/remote"
)

// State of a deck's synchronization
type State string

const (
	// StateIdle means no synchronization is running
	StateIdle State = "IDLE"

	// StatePlanning means manifests are being compared
	StatePlanning State = "PLANNING"

	// StateTransferring means blobs are moving
	StateTransferring State = "TRANSFERRING"

	// StateCommitting means the remote manifest swap is in flight
	StateCommitting State = "COMMITTING"

	// StateConflict means the last attempt found the remote moved
	StateConflict State = "CONFLICT"

	// StateFailed means the last attempt aborted before commit
	StateFailed State = "FAILED"
)

const (
	defaultConcurrency    = 4
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 100 * time.Millisecond
	defaultPresenceSize   = 8192
)

// New builds a sync engine over a deck index, a content store and a
// remote adapter.
func New(index *deck.Index, blobs cas.Store, adapter remote.Adapter, opts ...Option) *Engine {
	e := &Engine{
		index:          index,
		blobs:          blobs,
		adapter:        adapter,
		l:              dlogger.MustGetLogger(dlogger.LogLevelInfo),
		fs:             afero.NewOsFs(),
		concurrency:    defaultConcurrency,
		retryAttempts:  defaultRetryAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
		presenceSize:   defaultPresenceSize,
		excludes:       []string{".dropbox.cache", "handout"},
		states:         make(map[string]State),
		inflight:       make(map[string]struct{}),
	}
	for _, apply := range opts {
		apply(e)
	}
	if e.extractor == nil {
		e.extractor = keynote.New(keynote.FS(e.fs), keynote.Logger(e.l))
	}
	// a failed cache means no presence caching, not a failed engine
	e.presence, _ = lru.New(e.presenceSize)
	return e
}

// Engine synchronizes decks against a remote store.
//
// Per-deck syncs are independent: concurrent Sync calls on distinct
// decks proceed in parallel, while a second Sync on the same deck is
// rejected with status.ErrSyncInProgress.
type Engine struct {
	index     *deck.Index
	blobs     cas.Store
	adapter   remote.Adapter
	extractor extract.Extractor
	fs        afero.Fs
	l         *zap.Logger

	concurrency    int
	retryAttempts  int
	retryBaseDelay time.Duration
	presenceSize   int
	excludes       []string

	// presence caches fingerprints known to exist on the remote
	presence *lru.Cache

	mx       sync.Mutex
	states   map[string]State
	inflight map[string]struct{}
}

// Status reports the current synchronization state of a deck
func (e *Engine) Status(deckID string) State {
	e.mx.Lock()
	defer e.mx.Unlock()
	if state, ok := e.states[deckID]; ok {
		return state
	}
	return StateIdle
}

// Index exposes the deck index backing this engine
func (e *Engine) Index() *deck.Index {
	return e.index
}

// Blobs exposes the content store backing this engine
func (e *Engine) Blobs() cas.Store {
	return e.blobs
}

// Remote exposes the remote adapter backing this engine
func (e *Engine) Remote() remote.Adapter {
	return e.adapter
}

func (e *Engine) setState(deckID string, state State) {
	e.mx.Lock()
	e.states[deckID] = state
	e.mx.Unlock()
}

// acquireDeck marks a deck as syncing. The returned release func also
// records the terminal state of the attempt.
func (e *Engine) acquireDeck(deckID string) (func(State), bool) {
	e.mx.Lock()
	defer e.mx.Unlock()
	if _, busy := e.inflight[deckID]; busy {
		return nil, false
	}
	e.inflight[deckID] = struct{}{}
	return func(terminal State) {
		e.mx.Lock()
		delete(e.inflight, deckID)
		e.states[deckID] = terminal
		e.mx.Unlock()
	}, true
}

func (e *Engine) remoteHasBlob(key string) bool {
	if e.presence == nil {
		return false
	}
	_, ok := e.presence.Get(key)
	return ok
}

func (e *Engine) markRemoteBlob(key string) {
	if e.presence != nil {
		e.presence.Add(key, struct{}{})
	}
}
