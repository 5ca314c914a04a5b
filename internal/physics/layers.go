package physics

import (
	"strings"
)

const (
	// MaxTags is the number of user tags a World can declare.
	MaxTags = 32
	// Untagged is the tag index of colliders without a tag.
	Untagged = MaxTags
	// NumLayers counts object layers: one kinematic and one dynamic layer per tag slot.
	NumLayers = (MaxTags + 1) * 2
	// MaxTagLength is the longest accepted tag name, in bytes.
	MaxTagLength = 64
)

// ObjectLayer derives the backend object layer of a collider.
// Kinematic bodies get the even layer, dynamic bodies the odd one.
func ObjectLayer(tag uint32, kinematic bool) uint32 {
	if kinematic {
		return tag * 2
	}
	return tag*2 + 1
}

// BroadPhaseLayer is 0 for kinematic layers and 1 for moving ones.
func BroadPhaseLayer(layer uint32) uint32 {
	return layer % 2
}

// LayerFilter decides whether two object layers may generate contacts.
type LayerFilter interface {
	ShouldCollide(a, b uint32) bool
}

// layerTable is the symmetric collision matrix indexed by object layer.
type layerTable [NumLayers][NumLayers]bool

func newLayerTable() *layerTable {
	t := &layerTable{}
	for i := uint32(0); i < NumLayers; i++ {
		for j := uint32(0); j < NumLayers; j++ {
			// Two kinematic layers never collide
			t[i][j] = i%2 == 1 || j%2 == 1
		}
	}
	return t
}

// ShouldCollide implements LayerFilter.
func (t *layerTable) ShouldCollide(a, b uint32) bool {
	if a >= NumLayers || b >= NumLayers {
		return false
	}
	return t[a][b]
}

func (t *layerTable) set(a, b uint32, enabled bool) {
	t[a][b] = enabled
	t[b][a] = enabled
}

// setTagPair toggles dynamic-dynamic and both dynamic-kinematic entries.
// The kinematic-kinematic entry is never touched.
func (t *layerTable) setTagPair(i, j uint32, enabled bool) {
	if i == Untagged || j == Untagged {
		return
	}
	iDyn, iKin := ObjectLayer(i, false), ObjectLayer(i, true)
	jDyn, jKin := ObjectLayer(j, false), ObjectLayer(j, true)
	t.set(iDyn, jDyn, enabled)
	t.set(iDyn, jKin, enabled)
	t.set(iKin, jDyn, enabled)
}

func (t *layerTable) tagPairEnabled(i, j uint32) bool {
	if i == Untagged || j == Untagged {
		return true
	}
	return t[ObjectLayer(i, false)][ObjectLayer(j, false)]
}

// TagMask selects the tags a query reports. Untagged colliders always match.
type TagMask uint64

// AllTags matches every collider.
const AllTags = ^TagMask(0)

const untaggedBit = TagMask(1) << Untagged

// Has reports whether colliders with the given tag index pass the mask.
func (m TagMask) Has(tag uint32) bool {
	if tag == Untagged {
		return true
	}
	return m&(TagMask(1)<<tag) != 0
}

// validateTags checks a World's tag list.
func validateTags(tags []string) error {
	if len(tags) > MaxTags {
		return ErrTooManyTags
	}
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		if tag == "" || len(tag) > MaxTagLength || strings.HasPrefix(tag, "~") || strings.ContainsAny(tag, " \t\r\n") {
			return ErrInvalidTag
		}
		if seen[tag] {
			return ErrDuplicateTag
		}
		seen[tag] = true
	}
	return nil
}
