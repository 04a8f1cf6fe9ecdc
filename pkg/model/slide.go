// Package model describes the entities manipulated by deckmon:
// slide records, deck manifests and the remote object layout.
package model

import (
	"bytes"
	"encoding/binary"
	"sort"
	"strings"

	"github.com/oneconcern/deckmon/pkg/fingerprint"
)

// AssetRef cites a media asset embedded in a slide, by name and by the
// fingerprint of its payload.
type AssetRef struct {
	Name        string          `json:"name" yaml:"name"`
	Fingerprint fingerprint.Key `json:"fingerprint" yaml:"fingerprint"`
}

// SlideRecord is the extracted representation of a single slide.
//
// A record is immutable once fingerprinted: the fingerprint of its
// canonical serialization identifies the slide content wherever it
// appears, independently of deck or position.
type SlideRecord struct {
	Ordinal        int        `json:"ordinal" yaml:"ordinal"`
	DeckPath       string     `json:"deckPath,omitempty" yaml:"deckPath,omitempty"`
	Text           []string   `json:"text,omitempty" yaml:"text,omitempty"`
	PresenterNotes string     `json:"presenterNotes,omitempty" yaml:"presenterNotes,omitempty"`
	IsSkipped      bool       `json:"isSkipped,omitempty" yaml:"isSkipped,omitempty"`
	Content        []byte     `json:"-" yaml:"-"`
	Assets         []AssetRef `json:"assets,omitempty" yaml:"assets,omitempty"`
}

const canonicalVersion = "slide/v1"

// CanonicalBytes produces the deterministic serialization hashed into
// the slide fingerprint.
//
// Fields appear in a fixed order, length-prefixed so no two distinct
// records serialize alike. Text fields are whitespace-normalized and
// asset citations sorted, so cosmetic differences do not defeat
// deduplication. Ordinal and DeckPath are deliberately left out:
// the same slide at another position or in another deck hashes to the
// same key.
func (s *SlideRecord) CanonicalBytes() []byte {
	buf := new(bytes.Buffer)
	writeBytes := func(p []byte) {
		var sz [4]byte
		binary.BigEndian.PutUint32(sz[:], uint32(len(p)))
		_, _ = buf.Write(sz[:])
		_, _ = buf.Write(p)
	}
	writeString := func(v string) {
		writeBytes([]byte(v))
	}
	writeCount := func(n int) {
		var sz [4]byte
		binary.BigEndian.PutUint32(sz[:], uint32(n))
		_, _ = buf.Write(sz[:])
	}

	writeString(canonicalVersion)

	writeCount(len(s.Text))
	for _, block := range s.Text {
		writeString(normalizeText(block))
	}
	writeString(normalizeText(s.PresenterNotes))

	if s.IsSkipped {
		writeBytes([]byte{1})
	} else {
		writeBytes([]byte{0})
	}

	writeBytes(s.Content)

	refs := make([]AssetRef, len(s.Assets))
	copy(refs, s.Assets)
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Name != refs[j].Name {
			return refs[i].Name < refs[j].Name
		}
		return bytes.Compare(refs[i].Fingerprint[:], refs[j].Fingerprint[:]) < 0
	})
	writeCount(len(refs))
	for _, ref := range refs {
		writeString(ref.Name)
		writeBytes(ref.Fingerprint[:])
	}

	return buf.Bytes()
}

// Fingerprint computes the content-addressed key of this record
func (s *SlideRecord) Fingerprint() fingerprint.Key {
	return fingerprint.Sum(s.CanonicalBytes())
}

// normalizeText collapses runs of whitespace into single spaces and
// trims the ends, so editors shuffling whitespace do not produce a new
// fingerprint.
func normalizeText(v string) string {
	return strings.Join(strings.Fields(v), " ")
}
