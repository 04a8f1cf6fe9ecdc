package model

import "io"

// AssetOpener gives access to the payload of an asset cited by a slide
type AssetOpener func(name string) (io.ReadCloser, error)

// DeckArchive is the extracted form of a presentation archive:
// its identity, its slides in presentation order, and access to the
// asset payloads the slides cite.
type DeckArchive struct {
	DocumentID string
	Path       string
	Slides     []SlideRecord
	OpenAsset  AssetOpener
}

// AssetNames lists the distinct asset names cited across all slides,
// in first-citation order.
func (a *DeckArchive) AssetNames() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, slide := range a.Slides {
		for _, ref := range slide.Assets {
			if _, ok := seen[ref.Name]; ok {
				continue
			}
			seen[ref.Name] = struct{}{}
			names = append(names, ref.Name)
		}
	}
	return names
}
