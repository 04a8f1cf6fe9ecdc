package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/deckmon/internal/rand"
	"github.com/oneconcern/deckmon/pkg/fingerprint"
)

func testSlide() SlideRecord {
	return SlideRecord{
		Ordinal:        3,
		DeckPath:       "/decks/q3-review.key",
		Text:           []string{"Quarterly results", "Revenue up 12%"},
		PresenterNotes: "pause here for questions",
		Content:        []byte("raw-iwa-payload"),
		Assets: []AssetRef{
			{Name: "chart.png", Fingerprint: fingerprint.Sum([]byte("chart"))},
			{Name: "logo.png", Fingerprint: fingerprint.Sum([]byte("logo"))},
		},
	}
}

func TestFingerprintIgnoresPosition(t *testing.T) {
	a := testSlide()
	b := testSlide()
	b.Ordinal = 17
	b.DeckPath = "/elsewhere/copy.key"

	assert.Equal(t, a.Fingerprint(), b.Fingerprint(),
		"same content at another position must dedup")
}

func TestFingerprintNormalizesWhitespace(t *testing.T) {
	a := testSlide()
	b := testSlide()
	b.Text = []string{"  Quarterly \t results ", "Revenue\nup 12%"}
	b.PresenterNotes = " pause  here for questions\n"

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprintSortsAssetRefs(t *testing.T) {
	a := testSlide()
	b := testSlide()
	b.Assets = []AssetRef{b.Assets[1], b.Assets[0]}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprintSensitivity(t *testing.T) {
	base := testSlide()

	edited := testSlide()
	edited.Text[1] = "Revenue up 13%"
	assert.NotEqual(t, base.Fingerprint(), edited.Fingerprint())

	skipped := testSlide()
	skipped.IsSkipped = true
	assert.NotEqual(t, base.Fingerprint(), skipped.Fingerprint())

	reassets := testSlide()
	reassets.Assets[0].Fingerprint = fingerprint.Sum(rand.Bytes(16))
	assert.NotEqual(t, base.Fingerprint(), reassets.Fingerprint())
}

func TestCanonicalBytesUnambiguous(t *testing.T) {
	// shifting a byte across the text/notes field boundary must not
	// serialize alike
	a := SlideRecord{Text: []string{"ab"}, PresenterNotes: "c"}
	b := SlideRecord{Text: []string{"a"}, PresenterNotes: "bc"}
	require.NotEqual(t, a.CanonicalBytes(), b.CanonicalBytes())

	c := SlideRecord{Text: []string{"a", "b"}}
	d := SlideRecord{Text: []string{"a b"}}
	require.NotEqual(t, c.CanonicalBytes(), d.CanonicalBytes())
}
