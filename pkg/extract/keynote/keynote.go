// Package keynote extracts slides from Apple Keynote archives.
//
// A .key document is a zip envelope: Metadata/DocumentIdentifier names
// the document, Index/Slide-N.iwa entries hold the slides in
// presentation order and Data/ entries hold media assets. The iwa
// payloads are kept opaque: a slide is fingerprinted over its raw
// payload, and assets are associated to slides by scanning payloads
// for the asset file name.
package keynote

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/oneconcern/deckmon/pkg/dlogger"
	"github.com/oneconcern/deckmon/pkg/extract"
	"github.com/oneconcern/deckmon/pkg/extract/status"
	"github.com/oneconcern/deckmon/pkg/fingerprint"
	"github.com/oneconcern/deckmon/pkg/model"
	"github.com/oneconcern/deckmon/pkg/storage"
)

const (
	identifierEntry = "Metadata/DocumentIdentifier"
	dataPrefix      = "Data/"
)

var slideEntry = regexp.MustCompile(`^Index/Slide-?(\d+)\.iwa$`)

// Option to tune the extractor
type Option func(*keynote)

// FS sets the filesystem archives are read from
func FS(fs afero.Fs) Option {
	return func(k *keynote) {
		if fs != nil {
			k.fs = fs
		}
	}
}

// Logger sets a logger on the extractor
func Logger(l *zap.Logger) Option {
	return func(k *keynote) {
		if l != nil {
			k.l = l
		}
	}
}

// New builds a Keynote archive extractor
func New(opts ...Option) extract.Extractor {
	k := &keynote{
		fs: afero.NewOsFs(),
		l:  dlogger.MustGetLogger(dlogger.LogLevelInfo),
	}
	for _, apply := range opts {
		apply(k)
	}
	return k
}

type keynote struct {
	fs afero.Fs
	l  *zap.Logger
}

func (k *keynote) Handles(p string) bool {
	return strings.EqualFold(path.Ext(p), ".key")
}

func (k *keynote) Extract(ctx context.Context, archivePath string) (model.DeckArchive, error) {
	f, err := k.fs.Open(archivePath)
	if err != nil {
		return model.DeckArchive{}, err
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return model.DeckArchive{}, err
	}
	if fi.Size() == 0 {
		return model.DeckArchive{}, status.ErrParse.WrapMessage("empty archive " + archivePath)
	}

	zr, err := zip.NewReader(f, fi.Size())
	if err != nil {
		return model.DeckArchive{}, status.ErrParse.Wrap(err)
	}

	var docID string
	type slideFile struct {
		ordinal int
		file    *zip.File
	}
	var slideFiles []slideFile
	assetFiles := make(map[string]*zip.File)

	for _, entry := range zr.File {
		switch {
		case entry.Name == identifierEntry:
			id, rerr := readEntry(entry)
			if rerr != nil {
				return model.DeckArchive{}, rerr
			}
			docID = strings.TrimSpace(string(id))
		case strings.HasPrefix(entry.Name, dataPrefix):
			name := entry.Name[len(dataPrefix):]
			if name != "" && !strings.Contains(name, "/") {
				assetFiles[name] = entry
			}
		default:
			if m := slideEntry.FindStringSubmatch(entry.Name); m != nil {
				ordinal, _ := strconv.Atoi(m[1])
				slideFiles = append(slideFiles, slideFile{ordinal: ordinal, file: entry})
			}
		}
	}

	if docID == "" {
		return model.DeckArchive{}, status.ErrParse.WrapMessage("missing " + identifierEntry + " in " + archivePath)
	}
	if len(slideFiles) == 0 {
		return model.DeckArchive{}, status.ErrParse.WrapMessage("no slides in " + archivePath)
	}
	sort.Slice(slideFiles, func(i, j int) bool {
		return slideFiles[i].ordinal < slideFiles[j].ordinal
	})

	assets := make(map[string][]byte, len(assetFiles))
	assetKeys := make(map[string]fingerprint.Key, len(assetFiles))
	for name, entry := range assetFiles {
		payload, rerr := readEntry(entry)
		if rerr != nil {
			return model.DeckArchive{}, rerr
		}
		assets[name] = payload
		assetKeys[name] = fingerprint.Sum(payload)
	}

	slides := make([]model.SlideRecord, 0, len(slideFiles))
	for i, sf := range slideFiles {
		if ctx.Err() != nil {
			return model.DeckArchive{}, ctx.Err()
		}
		payload, rerr := readEntry(sf.file)
		if rerr != nil {
			return model.DeckArchive{}, rerr
		}

		record := model.SlideRecord{
			Ordinal:  i + 1,
			DeckPath: archivePath,
			Content:  payload,
		}
		for name := range assetFiles {
			if bytes.Contains(payload, []byte(name)) {
				record.Assets = append(record.Assets, model.AssetRef{
					Name:        name,
					Fingerprint: assetKeys[name],
				})
			}
		}
		sort.Slice(record.Assets, func(a, b int) bool {
			return record.Assets[a].Name < record.Assets[b].Name
		})
		slides = append(slides, record)
	}

	k.l.Debug("archive extracted",
		zap.String("path", archivePath),
		zap.String("document", docID),
		zap.Int("slides", len(slides)),
		zap.Int("assets", len(assets)),
	)

	return model.DeckArchive{
		DocumentID: docID,
		Path:       archivePath,
		Slides:     slides,
		OpenAsset: func(name string) (io.ReadCloser, error) {
			payload, ok := assets[name]
			if !ok {
				return nil, status.ErrParse.WrapMessage("asset " + name + " not in archive")
			}
			return io.NopCloser(bytes.NewReader(payload)), nil
		},
	}, nil
}

func readEntry(entry *zip.File) ([]byte, error) {
	rdr, err := entry.Open()
	if err != nil {
		return nil, status.ErrParse.Wrap(err)
	}
	defer func() { _ = rdr.Close() }()
	data, err := storage.ReadAllLimited(rdr, storage.MaxObjectSizeInMemory)
	if err != nil {
		return nil, status.ErrParse.Wrap(err)
	}
	return data, nil
}
