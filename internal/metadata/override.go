package metadata

// OverrideCall is one entry of a caller-supplied override table's calls
// list: a declared name at a declared index, in the richer shape §4.5
// describes for overrides.metadata.tables.
type OverrideCall struct {
	Name  string
	Index uint8
}

// OverridePallet is one pallet in a caller-supplied override table.
type OverridePallet struct {
	Name  string
	Index uint8
	Calls []OverrideCall
}

// TableFromOverride converts the richer override shape into a PalletTable
// using the same dense, index-ordered projection the metadata decoder
// itself uses, per the design note correcting the source's positional
// (array-order) projection bug: callers' Calls must be projected by
// declared Index, not by slice position.
func TableFromOverride(version uint8, pallets []OverridePallet) *PalletTable {
	out := make([]PalletEntry, 0, len(pallets))
	for _, p := range pallets {
		entry := PalletEntry{Name: p.Name, Index: p.Index}
		if p.Calls != nil {
			variants := make([]TypeVariant, len(p.Calls))
			for i, c := range p.Calls {
				variants[i] = TypeVariant{Name: c.Name, Index: c.Index}
			}
			entry.Calls = denseProjectByIndex(variants)
		}
		out = append(out, entry)
	}
	return &PalletTable{Version: version, Pallets: out}
}
