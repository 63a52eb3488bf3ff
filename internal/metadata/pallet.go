package metadata

import (
	"fmt"

	"github.com/qapi-go/client/internal/scale"
)

// decodePalletRecord reads one PalletRecord. Each field is attempted in
// order; per §4.2 the individual steps are not independently recoverable
// within a record (a mid-record failure leaves the cursor in an
// unreliable position), so failure here is handled by the caller via a
// placeholder entry plus a resync, matching the "known fragility" the
// resync scanner mitigates. A single unreadable pallet never aborts the
// table: this always returns a usable entry and a nil error, even when
// the resync scan itself comes up empty (in which case the cursor is left
// at end-of-input and later pallets in the same vector degrade to
// placeholders too).
func decodePalletRecord(r *scale.Reader, graph typeGraph, ordinal int) (PalletEntry, []string, error) {
	start := r.Offset()
	entry, diag, err := decodePalletRecordInner(r, graph)
	if err != nil {
		diag = append(diag, fmt.Sprintf("pallet %d unreadable at offset %d: %v", ordinal, start, err))
		placeholder := PalletEntry{Name: fmt.Sprintf("pallet_%d", ordinal), Index: unknownIndex}
		if !resyncScan(r, start, resyncWindow, palletHeaderPlausible) {
			diag = append(diag, "pallet pass: resync exhausted search window")
			r.Seek(r.Offset() + r.Len())
		}
		return placeholder, diag, nil
	}
	return entry, diag, nil
}

func palletHeaderPlausible(probe *scale.Reader) bool {
	nameLen, err := probe.CompactU32()
	if err != nil || nameLen == 0 || nameLen > 128 {
		return false
	}
	name, err := probe.Bytes(int(nameLen))
	if err != nil {
		return false
	}
	for _, c := range name {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	// storage option tag must be 0 or 1 to be plausible.
	tag, err := probe.Peek()
	return err == nil && (tag == 0 || tag == 1)
}

func decodePalletRecordInner(r *scale.Reader, graph typeGraph) (PalletEntry, []string, error) {
	var diag []string

	name, err := r.Text()
	if err != nil {
		return PalletEntry{}, diag, fmt.Errorf("name: %w", err)
	}

	if err := decodeStorageMetadata(r); err != nil {
		return PalletEntry{}, diag, fmt.Errorf("storage: %w", err)
	}

	callsTy, hasCalls, err := scale.OptionFunc(r, func(r *scale.Reader) (uint32, error) { return r.CompactU32() })
	if err != nil {
		return PalletEntry{}, diag, fmt.Errorf("calls: %w", err)
	}

	eventsTy, hasEvents, err := scale.OptionFunc(r, func(r *scale.Reader) (uint32, error) { return r.CompactU32() })
	if err != nil {
		return PalletEntry{}, diag, fmt.Errorf("events: %w", err)
	}

	if _, err := scale.VecFunc(r, func(r *scale.Reader, i int) (struct{}, error) {
		return struct{}{}, decodeConstant(r)
	}); err != nil {
		return PalletEntry{}, diag, fmt.Errorf("constants: %w", err)
	}

	if err := decodeErrorsField(r); err != nil {
		return PalletEntry{}, diag, fmt.Errorf("errors: %w", err)
	}

	index, err := r.U8()
	if err != nil {
		return PalletEntry{}, diag, fmt.Errorf("index: %w", err)
	}

	// Trailing docs are emitted by some deployments and not others; peek
	// and try, tolerating failure without aborting the pallet.
	tryTrailingDocs(r)

	entry := PalletEntry{Name: name, Index: index}
	if hasCalls {
		if names, ok := graph.namesForVariant(callsTy); ok {
			entry.Calls = names
		} else {
			diag = append(diag, fmt.Sprintf("pallet %q: callsTy %d not found or not a Variant", name, callsTy))
		}
	}
	if hasEvents {
		if names, ok := graph.namesForVariant(eventsTy); ok {
			entry.Events = names
		} else {
			diag = append(diag, fmt.Sprintf("pallet %q: eventsTy %d not found or not a Variant", name, eventsTy))
		}
	}
	return entry, diag, nil
}

// decodeStorageMetadata reads option<StorageMetadata>. The storage block
// ends immediately after items: no trailing flag byte is read, per the
// corrected source behavior noted in the design notes (an earlier decoder
// variant read a spurious isFallbackEvicted byte here; that is omitted).
func decodeStorageMetadata(r *scale.Reader) error {
	_, _, err := scale.OptionFunc(r, func(r *scale.Reader) (struct{}, error) {
		if _, err := r.Text(); err != nil { // prefix
			return struct{}{}, err
		}
		_, err := scale.VecFunc(r, func(r *scale.Reader, i int) (struct{}, error) {
			return struct{}{}, decodeStorageEntry(r)
		})
		return struct{}{}, err
	})
	return err
}

func decodeStorageEntry(r *scale.Reader) error {
	if _, err := r.Text(); err != nil { // name
		return err
	}
	if _, err := r.U8(); err != nil { // modifier
		return err
	}
	kind, err := r.U8()
	if err != nil {
		return err
	}
	switch kind {
	case 0: // Plain { type }
		if _, err := r.CompactU32(); err != nil {
			return err
		}
	case 1, 2: // Map / NMap: hashers, key, value
		if _, err := scale.VecFunc(r, func(r *scale.Reader, i int) (byte, error) { return r.U8() }); err != nil {
			return err
		}
		if _, err := r.CompactU32(); err != nil {
			return err
		}
		if _, err := r.CompactU32(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage entry: unknown kind %d", kind)
	}
	if err := r.SkipBytes(); err != nil { // fallback
		return err
	}
	_, err = scale.VecFunc(r, func(r *scale.Reader, i int) (string, error) { return r.Text() }) // docs
	return err
}

func decodeConstant(r *scale.Reader) error {
	if _, err := r.Text(); err != nil { // name
		return err
	}
	if _, err := r.CompactU32(); err != nil { // type
		return err
	}
	if err := r.SkipBytes(); err != nil { // value
		return err
	}
	_, err := scale.VecFunc(r, func(r *scale.Reader, i int) (string, error) { return r.Text() }) // docs
	return err
}

// decodeErrorsField is version-sensitive: peek one byte. 0 means none, 1
// means some(compact type id), anything else means the field is actually
// a vec<ErrorMetadata> and the peeked byte is its length's first byte —
// rewind and read the vec.
func decodeErrorsField(r *scale.Reader) error {
	tag, err := r.Peek()
	if err != nil {
		return err
	}
	if tag == 0 {
		_, err := r.U8()
		return err
	}
	if tag == 1 {
		if _, err := r.U8(); err != nil {
			return err
		}
		_, err := r.CompactU32()
		return err
	}
	_, err = scale.VecFunc(r, func(r *scale.Reader, i int) (struct{}, error) {
		if _, err := r.Text(); err != nil { // name
			return struct{}{}, err
		}
		_, err := scale.VecFunc(r, func(r *scale.Reader, i int) (string, error) { return r.Text() }) // docs
		return struct{}{}, err
	})
	return err
}

func tryTrailingDocs(r *scale.Reader) {
	checkpoint := r.Offset()
	if _, err := scale.VecFunc(r, func(r *scale.Reader, i int) (string, error) { return r.Text() }); err != nil {
		r.Seek(checkpoint)
	}
}
