package cmd

import (
	"context"
	"os/user"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/oneconcern/deckmon/pkg/cas"
	"github.com/oneconcern/deckmon/pkg/deck"
	"github.com/oneconcern/deckmon/pkg/dlogger"
	"github.com/oneconcern/deckmon/pkg/engine"
	"github.com/oneconcern/deckmon/pkg/remote"
	"github.com/oneconcern/deckmon/pkg/storage"
	"github.com/oneconcern/deckmon/pkg/storage/gcs"
	"github.com/oneconcern/deckmon/pkg/storage/localfs"
	"github.com/oneconcern/deckmon/pkg/storage/sthree"
)

func mustLogger() *zap.Logger {
	level := deckmonFlags.root.logLevel
	if level == "" {
		level = dlogger.LogLevelInfo
	}
	return dlogger.MustGetLogger(level)
}

func stateDir() string {
	if deckmonFlags.root.stateDir != "" {
		return deckmonFlags.root.stateDir
	}
	usr, err := user.Current()
	if usr == nil || err != nil {
		wrapFatalln("could not get home directory for user", err)
		return ""
	}
	return filepath.Join(usr.HomeDir, ".deckmon", "state")
}

// ensureManifestCapableRemote rejects remotes that cannot host the
// conditional manifest swap. S3 offers no generation preconditions, so the
// sthree backend stores blobs only; syncing against it would upload blobs
// and then die at manifest time.
func ensureManifestCapableRemote() {
	if deckmonFlags.remote.Backend == "s3" {
		wrapFatalln(`the "s3" remote stores blobs only and cannot host deck manifests: use "gcs" or "localfs" to sync`, nil)
	}
}

// flagsToRemoteStore builds the backend store hosting published blobs and
// manifests, according to the configured remote backend.
func flagsToRemoteStore(ctx context.Context, logger *zap.Logger) storage.Store {
	switch deckmonFlags.remote.Backend {
	case "gcs":
		if deckmonFlags.remote.Bucket == "" {
			wrapFatalln("a bucket is required for the gcs remote", nil)
			return nil
		}
		store, err := gcs.New(ctx, deckmonFlags.remote.Bucket, deckmonFlags.root.credFile, gcs.Logger(logger))
		if err != nil {
			wrapFatalln("create gcs remote store", err)
			return nil
		}
		return store
	case "s3":
		if deckmonFlags.remote.Bucket == "" {
			wrapFatalln("a bucket is required for the s3 remote", nil)
			return nil
		}
		return sthree.New(sthree.Bucket(deckmonFlags.remote.Bucket), sthree.Logger(logger))
	case "localfs", "":
		path := deckmonFlags.remote.Path
		if path == "" {
			path = filepath.Join(stateDir(), "remote")
		}
		return localfs.New(afero.NewBasePathFs(afero.NewOsFs(), path))
	default:
		wrapFatalln("unknown remote backend "+deckmonFlags.remote.Backend+` (expected "gcs", "s3" or "localfs")`, nil)
		return nil
	}
}

// flagsToEngine assembles the local slide store, the deck index and the
// remote adapter into an engine. The returned closer releases the badger
// handle and must be deferred by the caller.
func flagsToEngine(ctx context.Context) (*engine.Engine, func()) {
	logger := mustLogger()
	dir := stateDir()

	db, err := badger.Open(badger.DefaultOptions(filepath.Join(dir, "index")).WithLogger(nil))
	if err != nil {
		wrapFatalln("open deck index at "+dir, err)
		return nil, nil
	}

	blobs := cas.New(
		cas.Backend(localfs.New(afero.NewBasePathFs(afero.NewOsFs(), filepath.Join(dir, "blobs")))),
		cas.KV(db),
		cas.Logger(logger),
	)
	index := deck.NewIndex(db, blobs, deck.IndexLogger(logger))
	adapter := remote.New(flagsToRemoteStore(ctx, logger), remote.Logger(logger))

	opts := []engine.Option{engine.Logger(logger)}
	if deckmonFlags.index.ConcurrencyFactor > 0 {
		opts = append(opts, engine.Concurrency(deckmonFlags.index.ConcurrencyFactor))
	}
	if len(deckmonFlags.index.Exclude) > 0 {
		opts = append(opts, engine.ExcludePatterns(deckmonFlags.index.Exclude...))
	}
	eng := engine.New(index, blobs, adapter, opts...)
	return eng, func() { _ = db.Close() }
}
