package model

import (
	"time"

	"github.com/segmentio/ksuid"

	"github.com/oneconcern/deckmon/pkg/fingerprint"
)

// DeckManifest is a local composition of a deck: the ordered list of
// slide fingerprints plus the asset citations they carry, stamped with
// a monotonically increasing version.
type DeckManifest struct {
	ID         string            `json:"id" yaml:"id"`
	DeckID     string            `json:"deckID" yaml:"deckID"`
	Version    uint64            `json:"version" yaml:"version"`
	Slides     []fingerprint.Key `json:"slides" yaml:"slides"`
	Assets     []fingerprint.Key `json:"assets,omitempty" yaml:"assets,omitempty"`
	Timestamp  time.Time         `json:"timestamp" yaml:"timestamp"`
	SourcePath string            `json:"sourcePath,omitempty" yaml:"sourcePath,omitempty"`

	// LastSyncedRemoteVersion mirrors the sync state for display:
	// the remote version this composition was last reconciled with.
	LastSyncedRemoteVersion uint64 `json:"lastSyncedRemoteVersion,omitempty" yaml:"lastSyncedRemoteVersion,omitempty"`
}

// NewDeckManifest initializes a version 1 manifest for a deck
func NewDeckManifest(deckID string, slides []fingerprint.Key) DeckManifest {
	return DeckManifest{
		ID:        ksuid.New().String(),
		DeckID:    deckID,
		Version:   1,
		Slides:    slides,
		Timestamp: time.Now().UTC(),
	}
}

// NextVersion derives the manifest superseding this one, with a fresh
// record id and timestamp.
func (m DeckManifest) NextVersion(slides, assets []fingerprint.Key) DeckManifest {
	next := m
	next.ID = ksuid.New().String()
	next.Version = m.Version + 1
	next.Slides = slides
	next.Assets = assets
	next.Timestamp = time.Now().UTC()
	return next
}

// Citations returns the fingerprints a manifest cites: slides first,
// then assets, without deduplication.
func (m DeckManifest) Citations() []fingerprint.Key {
	cited := make([]fingerprint.Key, 0, len(m.Slides)+len(m.Assets))
	cited = append(cited, m.Slides...)
	cited = append(cited, m.Assets...)
	return cited
}

// RemoteManifest is the per-deck YAML object published on the remote.
// Version is the remote's own monotonic counter, independent from any
// local manifest version.
type RemoteManifest struct {
	DeckID    string            `json:"deckID" yaml:"deckID"`
	Version   uint64            `json:"version" yaml:"version"`
	Slides    []fingerprint.Key `json:"slides" yaml:"slides"`
	Assets    []fingerprint.Key `json:"assets,omitempty" yaml:"assets,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt" yaml:"updatedAt"`
	SourceID  string            `json:"sourceID,omitempty" yaml:"sourceID,omitempty"`
}

// Citations returns the fingerprints a remote manifest cites
func (m RemoteManifest) Citations() []fingerprint.Key {
	cited := make([]fingerprint.Key, 0, len(m.Slides)+len(m.Assets))
	cited = append(cited, m.Slides...)
	cited = append(cited, m.Assets...)
	return cited
}

// SyncState records the last remote version a deck successfully
// reconciled against.
type SyncState struct {
	DeckID           string            `json:"deckID" yaml:"deckID"`
	RemoteVersion    uint64            `json:"remoteVersion" yaml:"remoteVersion"`
	RemoteSlides     []fingerprint.Key `json:"remoteSlides,omitempty" yaml:"remoteSlides,omitempty"`
	RemoteAssets     []fingerprint.Key `json:"remoteAssets,omitempty" yaml:"remoteAssets,omitempty"`
	LastReconciledAt time.Time         `json:"lastReconciledAt" yaml:"lastReconciledAt"`
}

// SyncStatus qualifies the outcome of a synchronization attempt
type SyncStatus string

const (
	// SyncOK indicates the deck converged with the remote
	SyncOK SyncStatus = "ok"

	// SyncNoop indicates local and remote already agreed
	SyncNoop SyncStatus = "noop"

	// SyncConflict indicates the remote moved since the last
	// reconciliation and was left untouched
	SyncConflict SyncStatus = "conflict"

	// SyncFailed indicates the attempt aborted before committing
	SyncFailed SyncStatus = "failed"
)

// SyncResult reports the outcome of one synchronization attempt
type SyncResult struct {
	DeckID        string            `json:"deckID" yaml:"deckID"`
	Status        SyncStatus        `json:"status" yaml:"status"`
	Pushed        []fingerprint.Key `json:"pushed,omitempty" yaml:"pushed,omitempty"`
	Pulled        []fingerprint.Key `json:"pulled,omitempty" yaml:"pulled,omitempty"`
	RemoteVersion uint64            `json:"remoteVersion" yaml:"remoteVersion"`
	Duration      time.Duration     `json:"duration" yaml:"duration"`
}
