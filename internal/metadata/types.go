// Package metadata decodes a Substrate-family chain's self-describing
// runtime metadata (versions 14, 15, 16) into a PalletTable: per-pallet
// name, index, and ordered call/event name lists. Parsing is tolerant at
// three granularities — per-type, per-pallet, per-candidate — so a
// partially garbled or unfamiliar blob still yields a best-effort table
// rather than an outright failure.
package metadata

import "strconv"

const (
	unknownIndex = 255
)

// PalletTable is the decoded, immutable result of parsing one metadata
// blob. It is never mutated after construction and is safe to share across
// goroutines.
type PalletTable struct {
	Version uint8
	Pallets []PalletEntry
}

// PalletEntry describes one pallet. Calls/Events are nil when the pallet's
// metadata declared no such enum at all (distinct from a present-but-empty
// slice, which means the enum exists with zero variants).
type PalletEntry struct {
	Name   string
	Index  uint8
	Calls  []string
	Events []string
}

// FindByIndex scans Pallets for the first entry whose Index matches p.
// Pallet indices are not required to be unique or contiguous, so this is a
// linear scan rather than an array index.
func (t *PalletTable) FindByIndex(p uint8) *PalletEntry {
	if t == nil {
		return nil
	}
	for i := range t.Pallets {
		if t.Pallets[i].Index == p {
			return &t.Pallets[i]
		}
	}
	return nil
}

// TypeDefKind tags the semantically relevant cases of a portable type
// definition. Only Variant matters for call/event name resolution; every
// other on-wire shape collapses to KindOther for skip-over purposes.
type TypeDefKind uint8

const (
	KindOther TypeDefKind = iota
	KindVariant
)

// TypeVariant is one arm of a Variant TypeDef: a declared name at a
// declared u8 index.
type TypeVariant struct {
	Name  string
	Index uint8
}

// TypeDef is an entry in the portable type graph. Variants holds the
// parsed arms only when Kind == KindVariant.
type TypeDef struct {
	Kind     TypeDefKind
	Variants []TypeVariant
}

// typeGraph is the transient id -> TypeDef mapping built while decoding one
// metadata blob, discarded once the PalletTable is assembled. Stored as a
// flat map rather than a linked structure: the underlying type system is
// cyclic (types reference other types by id) but the graph is only ever
// read by id lookup in this package, never walked, so a map is sufficient
// and keeps the representation acyclic as stored.
type typeGraph map[uint32]TypeDef

// namesForVariant resolves a type id to a dense, index-ordered name
// sequence. An absent id or non-Variant type yields (nil, false) meaning
// "this pallet declared no such enum" is left to the caller to decide —
// namesForVariant itself only reports whether resolution succeeded.
func (g typeGraph) namesForVariant(id uint32) ([]string, bool) {
	td, ok := g[id]
	if !ok || td.Kind != KindVariant {
		return nil, false
	}
	return denseProjectByIndex(td.Variants), true
}

// denseProjectByIndex places each variant at its declared Index, padding
// unoccupied positions with a synthetic unknown marker, per the rule in
// §4.2's name-lookup step and the override-table note in the decoder's
// design notes (project by declared index, not array position).
func denseProjectByIndex(variants []TypeVariant) []string {
	if len(variants) == 0 {
		return []string{}
	}
	maxIdx := 0
	for _, v := range variants {
		if int(v.Index) > maxIdx {
			maxIdx = int(v.Index)
		}
	}
	out := make([]string, maxIdx+1)
	for i := range out {
		out[i] = unknownVariantName(i)
	}
	for _, v := range variants {
		out[v.Index] = v.Name
	}
	return out
}

func unknownVariantName(i int) string {
	return "unknown_" + strconv.Itoa(i)
}
