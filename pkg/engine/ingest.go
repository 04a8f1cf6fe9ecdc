package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	casstatus "github.com/oneconcern/deckmon/pkg/cas/status"
	"github.com/oneconcern/deckmon/pkg/errors"
	extractstatus "github.com/oneconcern/deckmon/pkg/extract/status"
	"github.com/oneconcern/deckmon/pkg/fingerprint"
	"github.com/oneconcern/deckmon/pkg/model"
)

// Ingest extracts a presentation archive and records its composition.
//
// Every slide and cited asset is stored in the content store under its
// fingerprint; identical content already stored is deduplicated. An
// empty deckID defaults to the document identifier carried by the
// archive.
func (e *Engine) Ingest(ctx context.Context, deckID, path string) (model.DeckManifest, error) {
	archive, err := e.extractor.Extract(ctx, path)
	if err != nil {
		return model.DeckManifest{}, err
	}
	if deckID == "" {
		deckID = archive.DocumentID
	}

	// puts pin blobs against GC until the composition owns its
	// citations; pins are dropped on the way out, success or not
	var pins []fingerprint.Key
	defer func() {
		for _, key := range pins {
			if rerr := e.blobs.Release(ctx, key); rerr != nil && !errors.Is(rerr, casstatus.ErrOverRelease) {
				e.l.Warn("pin release failed", zap.Stringer("fingerprint", key), zap.Error(rerr))
			}
		}
	}()

	slides := make([]fingerprint.Key, 0, len(archive.Slides))
	var assets []fingerprint.Key
	assetSeen := make(map[fingerprint.Key]struct{})

	for _, slide := range archive.Slides {
		if ctx.Err() != nil {
			return model.DeckManifest{}, ctx.Err()
		}
		res, perr := e.blobs.Put(ctx, bytes.NewReader(slide.CanonicalBytes()))
		if perr != nil {
			return model.DeckManifest{}, perr
		}
		pins = append(pins, res.Key)
		slides = append(slides, res.Key)

		for _, ref := range slide.Assets {
			if _, ok := assetSeen[ref.Fingerprint]; ok {
				continue
			}
			assetSeen[ref.Fingerprint] = struct{}{}

			rdr, aerr := archive.OpenAsset(ref.Name)
			if aerr != nil {
				return model.DeckManifest{}, aerr
			}
			ares, aerr := e.blobs.Put(ctx, rdr)
			_ = rdr.Close()
			if aerr != nil {
				return model.DeckManifest{}, aerr
			}
			pins = append(pins, ares.Key)
			assets = append(assets, ares.Key)
		}
	}

	manifest, err := e.index.RecordComposition(ctx, deckID, slides, assets)
	if err != nil {
		return model.DeckManifest{}, err
	}

	e.l.Info("archive ingested",
		zap.String("deck", deckID),
		zap.String("path", path),
		zap.Uint64("version", manifest.Version),
		zap.Int("slides", len(slides)),
		zap.Int("assets", len(assets)),
	)
	return manifest, nil
}

// IngestTree walks a directory tree and ingests every presentation
// archive found, on a bounded worker pool.
//
// Empty archives and paths matching an exclusion fragment are skipped.
// Archives that fail to parse are logged and skipped; the walk carries
// on so one corrupt deck does not block the rest.
func (e *Engine) IngestTree(ctx context.Context, root string) ([]model.DeckManifest, error) {
	var paths []string
	err := afero.Walk(e.fs, root, func(path string, info os.FileInfo, werr error) error {
		if werr != nil {
			return werr
		}
		if info.IsDir() || !e.extractor.Handles(path) {
			return nil
		}
		for _, fragment := range e.excludes {
			if strings.Contains(path, fragment) {
				return nil
			}
		}
		if info.Size() == 0 {
			e.l.Debug("skipping empty archive", zap.String("path", path))
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var mx sync.Mutex
	var manifests []model.DeckManifest

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(e.concurrency)
	for _, path := range paths {
		path := path
		grp.Go(func() error {
			deckID := deckIDFromPath(path)
			manifest, ierr := e.Ingest(gctx, deckID, path)
			if ierr != nil {
				if errors.Is(ierr, extractstatus.ErrParse) {
					e.l.Warn("unparseable archive skipped",
						zap.String("path", path), zap.Error(ierr))
					return nil
				}
				return ierr
			}
			mx.Lock()
			manifests = append(manifests, manifest)
			mx.Unlock()
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].DeckID < manifests[j].DeckID
	})
	return manifests, nil
}

// deckIDFromPath derives a deck id from the archive file name
func deckIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
