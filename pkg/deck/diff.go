package deck

import (
	"github.com/oneconcern/deckmon/pkg/fingerprint"
	"github.com/oneconcern/deckmon/pkg/model"
)

// Diff describes how a composition changed between two versions.
//
// Added and Removed follow set semantics over cited fingerprints;
// Reordered reports a positional change among surviving slides.
type Diff struct {
	Added     []fingerprint.Key
	Removed   []fingerprint.Key
	Reordered bool
}

// InSync reports whether the two compositions cite the same
// fingerprints in the same slide order.
func (d Diff) InSync() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && !d.Reordered
}

// Compare computes the difference between two compositions
func Compare(old, updated model.DeckManifest) Diff {
	return compareKeys(old.Slides, updated.Slides, old.Assets, updated.Assets)
}

// CompareSets computes the difference between two cited fingerprint
// sets, slide order included.
func CompareSets(oldSlides, newSlides, oldAssets, newAssets []fingerprint.Key) Diff {
	return compareKeys(oldSlides, newSlides, oldAssets, newAssets)
}

func compareKeys(oldSlides, newSlides, oldAssets, newAssets []fingerprint.Key) Diff {
	var d Diff

	oldSet := keySet(oldSlides, oldAssets)
	newSet := keySet(newSlides, newAssets)

	for key := range newSet {
		if _, ok := oldSet[key]; !ok {
			d.Added = append(d.Added, key)
		}
	}
	for key := range oldSet {
		if _, ok := newSet[key]; !ok {
			d.Removed = append(d.Removed, key)
		}
	}

	// positional check over slides surviving on both sides
	var oldSurvivors, newSurvivors []fingerprint.Key
	for _, key := range oldSlides {
		if _, ok := newSet[key]; ok {
			oldSurvivors = append(oldSurvivors, key)
		}
	}
	for _, key := range newSlides {
		if _, ok := oldSet[key]; ok {
			newSurvivors = append(newSurvivors, key)
		}
	}
	if len(oldSurvivors) != len(newSurvivors) {
		d.Reordered = true
		return d
	}
	for i := range oldSurvivors {
		if oldSurvivors[i] != newSurvivors[i] {
			d.Reordered = true
			break
		}
	}
	return d
}

func keySet(slides, assets []fingerprint.Key) map[fingerprint.Key]struct{} {
	set := make(map[fingerprint.Key]struct{}, len(slides)+len(assets))
	for _, key := range slides {
		set[key] = struct{}{}
	}
	for _, key := range assets {
		set[key] = struct{}{}
	}
	return set
}
