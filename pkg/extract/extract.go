// Package extract turns presentation archives into slide records.
//
// Extractors are format-specific: the keynote subpackage reads Apple
// Keynote archives. The sync engine consumes extractors through the
// Extractor interface and treats status.ErrParse as terminal for the
// archive.
package extract

import (
	"context"

	"github.com/oneconcern/deckmon/pkg/model"
)

// Extractor decodes a presentation archive into its deck representation
type Extractor interface {
	// Extract reads the archive at path and returns its identity,
	// ordered slides and asset payload access
	Extract(ctx context.Context, path string) (model.DeckArchive, error)

	// Handles reports whether this extractor recognizes the file name
	Handles(path string) bool
}
