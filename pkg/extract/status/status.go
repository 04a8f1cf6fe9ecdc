// Package status declares the sentinel errors surfaced by slide extractors
package status

import "github.com/oneconcern/deckmon/pkg/errors"

var (
	// ErrParse indicates a presentation archive that could not be
	// decoded. Parse failures are terminal for the archive: retrying
	// yields the same outcome.
	ErrParse = errors.New("presentation archive cannot be parsed")
)
