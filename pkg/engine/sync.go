package engine

import (
	"bytes"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	casstatus "github.com/oneconcern/deckmon/pkg/cas/status"
	"github.com/oneconcern/deckmon/pkg/deck"
	deckstatus "github.com/oneconcern/deckmon/pkg/deck/status"
	"github.com/oneconcern/deckmon/pkg/engine/status"
	"github.com/oneconcern/deckmon/pkg/errors"
	extractstatus "github.com/oneconcern/deckmon/pkg/extract/status"
	"github.com/oneconcern/deckmon/pkg/fingerprint"
	"github.com/oneconcern/deckmon/pkg/model"
	"github.com/oneconcern/deckmon/pkg/storage"
	storagestatus "github.com/oneconcern/deckmon/pkg/storage/status"
)

// Sync reconciles one deck with the remote.
//
// The attempt plans from manifest differences, transfers blobs on a
// bounded pool, then swaps the remote manifest with optimistic
// concurrency. A remote that moved since the last reconciliation
// yields a conflict outcome and leaves both sides untouched. Failures
// before commit leave the remote unchanged; the attempt is retryable
// from planning.
func (e *Engine) Sync(ctx context.Context, deckID string) (model.SyncResult, error) {
	release, ok := e.acquireDeck(deckID)
	if !ok {
		return model.SyncResult{}, status.ErrSyncInProgress.WrapMessage(deckID)
	}
	terminal := StateFailed
	defer func() { release(terminal) }()

	start := time.Now()
	result := model.SyncResult{DeckID: deckID, Status: model.SyncFailed}

	e.setState(deckID, StatePlanning)

	local, err := e.index.Current(ctx, deckID)
	localKnown := err == nil
	if err != nil && !errors.Is(err, deckstatus.ErrDeckNotFound) {
		return result, e.fail(deckID, err)
	}

	lastSynced, err := e.index.SyncState(ctx, deckID)
	if err != nil {
		return result, e.fail(deckID, err)
	}

	var published model.RemoteManifest
	remoteKnown := true
	err = e.withRetry(ctx, "get manifest", func() error {
		var gerr error
		published, gerr = e.adapter.GetManifest(ctx, deckID)
		return gerr
	})
	if err != nil {
		if !errors.Is(err, storagestatus.ErrNotFound) {
			return result, e.fail(deckID, err)
		}
		remoteKnown = false
	}

	switch {
	case !localKnown && !remoteKnown:
		return result, e.fail(deckID, status.ErrUnknownDeck.WrapMessage(deckID))

	case !localKnown:
		// first contact with a published deck: adopt the remote
		result, err = e.adopt(ctx, deckID, published)
		if err != nil {
			return result, e.fail(deckID, err)
		}
		terminal = StateIdle
		result.Duration = time.Since(start)
		return result, nil

	case remoteKnown && published.Version != lastSynced.RemoteVersion:
		// the remote moved since we last reconciled: never overwrite
		e.l.Warn("remote moved since last reconciliation",
			zap.String("deck", deckID),
			zap.Uint64("remote_version", published.Version),
			zap.Uint64("last_synced", lastSynced.RemoteVersion),
		)
		terminal = StateConflict
		result.Status = model.SyncConflict
		result.RemoteVersion = published.Version
		result.Duration = time.Since(start)
		return result, nil

	case !remoteKnown && lastSynced.RemoteVersion != 0:
		// we synced before but the manifest vanished remotely
		terminal = StateConflict
		result.Status = model.SyncConflict
		result.Duration = time.Since(start)
		return result, nil
	}

	plan := deck.CompareSets(lastSynced.RemoteSlides, local.Slides, lastSynced.RemoteAssets, local.Assets)
	if remoteKnown && plan.InSync() {
		terminal = StateIdle
		result.Status = model.SyncNoop
		result.RemoteVersion = published.Version
		result.Duration = time.Since(start)
		return result, nil
	}

	// repair locally missing citations from the published manifest
	var pullSet []fingerprint.Key
	for _, key := range published.Citations() {
		has, herr := e.blobs.Has(ctx, key)
		if herr != nil {
			return result, e.fail(deckID, herr)
		}
		if !has {
			pullSet = append(pullSet, key)
		}
	}

	e.setState(deckID, StateTransferring)
	pushed, pulled, err := e.transfer(ctx, plan.Added, pullSet)
	if err != nil {
		return result, e.fail(deckID, err)
	}

	e.setState(deckID, StateCommitting)
	// an in-flight manifest swap runs to completion even when the
	// caller cancels, so its outcome is recorded either way
	commitCtx := context.WithoutCancel(ctx)

	next := model.RemoteManifest{
		DeckID:    deckID,
		Version:   lastSynced.RemoteVersion + 1,
		Slides:    local.Slides,
		Assets:    local.Assets,
		UpdatedAt: time.Now().UTC(),
		SourceID:  local.ID,
	}
	err = e.adapter.CASManifest(commitCtx, deckID, lastSynced.RemoteVersion, next)
	if err != nil {
		if errors.Is(err, storagestatus.ErrVersionConflict) {
			terminal = StateConflict
			result.Status = model.SyncConflict
			result.Duration = time.Since(start)
			return result, nil
		}
		return result, e.fail(deckID, err)
	}

	err = e.index.CommitSyncState(commitCtx, deckID, model.SyncState{
		RemoteVersion: next.Version,
		RemoteSlides:  local.Slides,
		RemoteAssets:  local.Assets,
	})
	if err != nil {
		return result, e.fail(deckID, err)
	}

	terminal = StateIdle
	result.Status = model.SyncOK
	result.Pushed = pushed
	result.Pulled = pulled
	result.RemoteVersion = next.Version
	result.Duration = time.Since(start)

	e.l.Info("deck synchronized",
		zap.String("deck", deckID),
		zap.Uint64("remote_version", next.Version),
		zap.Int("pushed", len(pushed)),
		zap.Int("pulled", len(pulled)),
		zap.Duration("took", result.Duration),
	)
	return result, nil
}

// transfer moves blobs on a bounded worker pool: pushes skip blobs the
// remote already hosts, pulls verify payload integrity before storing.
func (e *Engine) transfer(ctx context.Context, pushSet, pullSet []fingerprint.Key) ([]fingerprint.Key, []fingerprint.Key, error) {
	var mx sync.Mutex
	var pushed, pulled []fingerprint.Key

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(e.concurrency)

	for _, key := range pushSet {
		key := key
		grp.Go(func() error {
			uploaded, perr := e.pushBlob(gctx, key)
			if perr != nil {
				return perr
			}
			if uploaded {
				mx.Lock()
				pushed = append(pushed, key)
				mx.Unlock()
			}
			return nil
		})
	}
	for _, key := range pullSet {
		key := key
		grp.Go(func() error {
			if perr := e.pullBlob(gctx, key); perr != nil {
				return perr
			}
			mx.Lock()
			pulled = append(pulled, key)
			mx.Unlock()
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, nil, err
	}
	return pushed, pulled, nil
}

// pushBlob uploads one blob unless the remote already hosts it.
// Reports whether an upload actually happened.
func (e *Engine) pushBlob(ctx context.Context, key fingerprint.Key) (bool, error) {
	cacheKey := key.String()
	if e.remoteHasBlob(cacheKey) {
		return false, nil
	}

	var present bool
	err := e.withRetry(ctx, "has blob", func() error {
		var herr error
		present, herr = e.adapter.HasBlob(ctx, key)
		return herr
	})
	if err != nil {
		return false, err
	}
	if present {
		// cross-deck dedup on the remote side
		e.markRemoteBlob(cacheKey)
		return false, nil
	}

	rdr, err := e.blobs.Get(ctx, key)
	if err != nil {
		return false, err
	}
	payload, err := storage.ReadAllLimited(rdr, storage.MaxObjectSizeInMemory)
	_ = rdr.Close()
	if err != nil {
		return false, err
	}

	err = e.withRetry(ctx, "put blob", func() error {
		return e.adapter.PutBlob(ctx, key, bytes.NewReader(payload))
	})
	if err != nil {
		return false, err
	}
	e.markRemoteBlob(cacheKey)
	return true, nil
}

// pullBlob downloads one blob and stores it after verifying that the
// payload hashes to the requested fingerprint.
func (e *Engine) pullBlob(ctx context.Context, key fingerprint.Key) error {
	var payload []byte
	err := e.withRetry(ctx, "get blob", func() error {
		rdr, gerr := e.adapter.GetBlob(ctx, key)
		if gerr != nil {
			return gerr
		}
		defer func() { _ = rdr.Close() }()
		payload, gerr = storage.ReadAllLimited(rdr, storage.MaxObjectSizeInMemory)
		return gerr
	})
	if err != nil {
		return err
	}

	if err = e.blobs.Restore(ctx, key, bytes.NewReader(payload)); err != nil {
		if errors.Is(err, casstatus.ErrHashMismatch) {
			return status.ErrIntegrity.WrapWithLog(e.l, err,
				zap.Stringer("fingerprint", key))
		}
		return err
	}
	return nil
}

// adopt builds the local deck from a published remote manifest
func (e *Engine) adopt(ctx context.Context, deckID string, published model.RemoteManifest) (model.SyncResult, error) {
	result := model.SyncResult{DeckID: deckID, Status: model.SyncFailed}

	var pullSet []fingerprint.Key
	for _, key := range published.Citations() {
		has, err := e.blobs.Has(ctx, key)
		if err != nil {
			return result, err
		}
		if !has {
			pullSet = append(pullSet, key)
		}
	}

	e.setState(deckID, StateTransferring)
	_, pulled, err := e.transfer(ctx, nil, pullSet)
	if err != nil {
		return result, err
	}

	e.setState(deckID, StateCommitting)
	if _, err = e.index.RecordComposition(ctx, deckID, published.Slides, published.Assets); err != nil {
		return result, err
	}
	err = e.index.CommitSyncState(ctx, deckID, model.SyncState{
		RemoteVersion: published.Version,
		RemoteSlides:  published.Slides,
		RemoteAssets:  published.Assets,
	})
	if err != nil {
		return result, err
	}

	result.Status = model.SyncOK
	result.Pulled = pulled
	result.RemoteVersion = published.Version

	e.l.Info("deck adopted from remote",
		zap.String("deck", deckID),
		zap.Uint64("remote_version", published.Version),
		zap.Int("pulled", len(pulled)),
	)
	return result, nil
}

// fail records the terminal failure state and classifies the error:
// parse, auth, integrity and in-progress failures surface as they are,
// anything else wraps into ErrSyncFailed.
func (e *Engine) fail(deckID string, err error) error {
	e.l.Error("synchronization failed", zap.String("deck", deckID), zap.Error(err))
	for _, sentinel := range []error{
		extractstatus.ErrParse,
		storagestatus.ErrUnauthorized,
		storagestatus.ErrForbidden,
		status.ErrIntegrity,
		status.ErrUnknownDeck,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return status.ErrSyncFailed.Wrap(err)
}
