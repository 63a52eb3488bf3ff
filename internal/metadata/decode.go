package metadata

import (
	"bytes"
	"fmt"

	"github.com/qapi-go/client/internal/scale"
)

const (
	magicMeta       = "meta"
	resyncWindow    = 1024
	maxTypeFailures = 5
)

// Decode parses a raw metadata blob into a PalletTable, trying the
// normalization candidates described in §4.2 in order and accepting the
// first that passes the version gate. Diagnostics from tolerant recovery
// are returned alongside a non-nil table even on partial failure; err is
// non-nil only when no candidate decoded: ErrUnsupportedVersion when none
// passed the version gate, ErrUnparseable when one did but its pallet
// vector could not be read.
func Decode(raw []byte) (*PalletTable, []string, error) {
	candidates := normalizationCandidates(raw)

	var sawVersion bool
	var lastDiag []string
	for _, body := range candidates {
		version, rest, ok := versionGate(body)
		if !ok {
			continue
		}
		sawVersion = true
		table, diag, err := decodeVersionedBody(version, rest)
		if err == nil {
			return table, diag, nil
		}
		lastDiag = diag
	}

	if sawVersion {
		return nil, lastDiag, &ErrUnparseable{Preview: raw}
	}
	var got byte
	if len(raw) > 0 {
		got = raw[0]
	}
	return nil, nil, &ErrUnsupportedVersion{Got: got}
}

// normalizationCandidates returns, in try-order, the byte slices the
// version gate should be attempted against: the raw payload with any
// "meta" magic stripped, and — only if a compact-length unwrap consumes
// exactly the whole input — that unwrapped payload with magic stripped.
func normalizationCandidates(raw []byte) [][]byte {
	out := [][]byte{stripMagic(raw)}
	if unwrapped, ok := compactUnwrap(raw); ok {
		out = append(out, stripMagic(unwrapped))
	}
	return out
}

func stripMagic(s []byte) []byte {
	if len(s) >= 4 && bytes.Equal(s[:4], []byte(magicMeta)) {
		return s[4:]
	}
	return s
}

// compactUnwrap decodes a leading SCALE compact length L and returns the
// bytes after it, only when that length exactly accounts for the rest of
// the slice (i.e. s was itself SCALE-encoded as a Vec<u8>).
func compactUnwrap(s []byte) ([]byte, bool) {
	r := scale.NewReader(s)
	n, err := r.CompactU32()
	if err != nil {
		return nil, false
	}
	if r.Offset()+int(n) != len(s) {
		return nil, false
	}
	return s[r.Offset():], true
}

func versionGate(body []byte) (byte, []byte, bool) {
	if len(body) == 0 {
		return 0, nil, false
	}
	v := body[0]
	if v != 14 && v != 15 && v != 16 {
		return 0, nil, false
	}
	return v, body[1:], true
}

// decodeVersionedBody runs the portable registry pass followed by the
// pallet pass over the version-gated remainder. A non-nil error here means
// the candidate's layout was unrecoverable even with tolerant recovery
// (e.g. the pallets vector length itself could not be read); partial
// per-type or per-pallet failures are absorbed into diagnostics instead.
func decodeVersionedBody(version byte, body []byte) (*PalletTable, []string, error) {
	r := scale.NewReader(body)

	graph, diag := decodeRegistry(r)

	pallets, err := scale.VecFunc(r, func(r *scale.Reader, i int) (PalletEntry, error) {
		entry, d, err := decodePalletRecord(r, graph, i)
		diag = append(diag, d...)
		return entry, err
	})
	if err != nil {
		return nil, diag, fmt.Errorf("metadata: pallet vector unreadable: %w", err)
	}

	return &PalletTable{Version: version, Pallets: pallets}, diag, nil
}

// decodeRegistry reads the vec<PortableType> and builds the type graph,
// recovering per-type on failure by inserting an Other placeholder at the
// failing ordinal and resynchronizing within a bounded window. It stops
// early after maxTypeFailures consecutive failures or when resync cannot
// find a plausible next header.
func decodeRegistry(r *scale.Reader) (typeGraph, []string) {
	graph := typeGraph{}
	var diag []string

	n, err := r.CompactU32()
	if err != nil {
		diag = append(diag, fmt.Sprintf("registry: vector length unreadable: %v", err))
		return graph, diag
	}

	consecutiveFailures := 0
	for i := 0; i < int(n); i++ {
		start := r.Offset()
		id, td, err := decodePortableType(r)
		if err != nil {
			diag = append(diag, fmt.Sprintf("registry: type %d unreadable at offset %d: %v", i, start, err))
			graph[uint32(i)] = TypeDef{Kind: KindOther}
			consecutiveFailures++
			if consecutiveFailures >= maxTypeFailures {
				diag = append(diag, "registry: giving up after consecutive type failures")
				break
			}
			resynced := false
			if i == int(n)-1 {
				// The last type is followed by the pallet vector, not by
				// another type header: resync onto a non-empty pallet count
				// followed by a plausible pallet record.
				resynced = resyncScan(r, start, resyncWindow, func(probe *scale.Reader) bool {
					count, err := probe.CompactU32()
					return err == nil && count > 0 && palletHeaderPlausible(probe)
				})
			} else {
				resynced = resyncPortableType(r, start)
			}
			if !resynced {
				diag = append(diag, "registry: resync exhausted search window")
				break
			}
			continue
		}
		consecutiveFailures = 0
		graph[id] = td
	}
	return graph, diag
}

func decodePortableType(r *scale.Reader) (uint32, TypeDef, error) {
	id, err := r.CompactU32()
	if err != nil {
		return 0, TypeDef{}, err
	}

	if _, err := scale.VecFunc(r, func(r *scale.Reader, i int) (string, error) { return r.Text() }); err != nil {
		return 0, TypeDef{}, err
	}

	if _, err := scale.VecFunc(r, func(r *scale.Reader, i int) (struct{}, error) {
		return struct{}{}, decodeTypeParameter(r)
	}); err != nil {
		return 0, TypeDef{}, err
	}

	tag, err := r.U8()
	if err != nil {
		return 0, TypeDef{}, err
	}

	td, err := decodeTypeDefBody(r, tag)
	if err != nil {
		return 0, TypeDef{}, err
	}

	if _, err := scale.VecFunc(r, func(r *scale.Reader, i int) (string, error) { return r.Text() }); err != nil {
		return 0, TypeDef{}, err
	}

	return id, td, nil
}

// decodeTypeParameter reads {name: text, type: option<compact u32>,
// typeName: option<text>}, tolerating chains that omit typeName entirely
// by peeking: a following byte of 0 or 1 is consumed as the typeName
// option, anything else is left for the caller.
func decodeTypeParameter(r *scale.Reader) error {
	if _, err := r.Text(); err != nil {
		return err
	}
	if _, _, err := scale.OptionFunc(r, func(r *scale.Reader) (uint32, error) { return r.CompactU32() }); err != nil {
		return err
	}
	if b, err := r.Peek(); err == nil && (b == 0 || b == 1) {
		if _, _, err := scale.OptionFunc(r, func(r *scale.Reader) (string, error) { return r.Text() }); err != nil {
			return err
		}
	}
	return nil
}

func decodeTypeDefBody(r *scale.Reader, tag byte) (TypeDef, error) {
	switch tag {
	case 0: // Composite { fields: Vec<Field> }
		if _, err := scale.VecFunc(r, func(r *scale.Reader, i int) (struct{}, error) {
			return struct{}{}, decodeField(r)
		}); err != nil {
			return TypeDef{}, err
		}
		return TypeDef{Kind: KindOther}, nil

	case 1: // Variant { variants: Vec<Variant> }
		variants, err := scale.VecFunc(r, func(r *scale.Reader, i int) (TypeVariant, error) {
			name, err := r.Text()
			if err != nil {
				return TypeVariant{}, err
			}
			if _, err := scale.VecFunc(r, func(r *scale.Reader, i int) (struct{}, error) {
				return struct{}{}, decodeField(r)
			}); err != nil {
				return TypeVariant{}, err
			}
			idx, err := r.U8()
			if err != nil {
				return TypeVariant{}, err
			}
			if _, err := scale.VecFunc(r, func(r *scale.Reader, i int) (string, error) { return r.Text() }); err != nil {
				return TypeVariant{}, err
			}
			return TypeVariant{Name: name, Index: idx}, nil
		})
		if err != nil {
			return TypeDef{}, err
		}
		return TypeDef{Kind: KindVariant, Variants: variants}, nil

	case 2: // Sequence { type }
		if _, err := r.CompactU32(); err != nil {
			return TypeDef{}, err
		}
		return TypeDef{Kind: KindOther}, nil

	case 3: // Array { len: u32-LE, type: compact }
		if _, err := r.U32LE(); err != nil {
			return TypeDef{}, err
		}
		if _, err := r.CompactU32(); err != nil {
			return TypeDef{}, err
		}
		return TypeDef{Kind: KindOther}, nil

	case 4: // Tuple(Vec<type>)
		if _, err := scale.VecFunc(r, func(r *scale.Reader, i int) (uint32, error) { return r.CompactU32() }); err != nil {
			return TypeDef{}, err
		}
		return TypeDef{Kind: KindOther}, nil

	case 5: // Primitive { kind: u8 }
		if _, err := r.U8(); err != nil {
			return TypeDef{}, err
		}
		return TypeDef{Kind: KindOther}, nil

	case 6: // Compact { type }
		if _, err := r.CompactU32(); err != nil {
			return TypeDef{}, err
		}
		return TypeDef{Kind: KindOther}, nil

	case 7: // BitSequence { store, order }
		if _, err := r.CompactU32(); err != nil {
			return TypeDef{}, err
		}
		if _, err := r.CompactU32(); err != nil {
			return TypeDef{}, err
		}
		return TypeDef{Kind: KindOther}, nil

	case 8: // HistoricMetaCompat
		return TypeDef{Kind: KindOther}, nil

	default:
		return TypeDef{}, &ErrUnknownTypeDef{Tag: tag}
	}
}

// decodeField reads {name: option<text>, type: compact, typeName:
// option<text>, docs: Vec<text>}.
func decodeField(r *scale.Reader) error {
	if _, _, err := scale.OptionFunc(r, func(r *scale.Reader) (string, error) { return r.Text() }); err != nil {
		return err
	}
	if _, err := r.CompactU32(); err != nil {
		return err
	}
	if _, _, err := scale.OptionFunc(r, func(r *scale.Reader) (string, error) { return r.Text() }); err != nil {
		return err
	}
	if _, err := scale.VecFunc(r, func(r *scale.Reader, i int) (string, error) { return r.Text() }); err != nil {
		return err
	}
	return nil
}

// resyncPortableType scans forward from where the failed read stopped
// (never before failedAt), within a bounded window, for the next offset at which a small-valued compact id followed
// by a small-valued compact path-length looks plausible, and seeks r
// there. Returns false if the window is exhausted without a candidate.
func resyncPortableType(r *scale.Reader, failedAt int) bool {
	return resyncScan(r, failedAt, resyncWindow, func(probe *scale.Reader) bool {
		id, err := probe.CompactU32()
		if err != nil || id > 1<<20 {
			return false
		}
		pathLen, err := probe.CompactU32()
		return err == nil && pathLen < 256
	})
}

// resyncScan tries candidate byte offsets starting at the reader's current
// position, up to window bytes forward, and commits the reader to the
// first offset at which plausible accepts a fresh probe reader over the
// remaining bytes. It leaves the reader positioned at failedAt on failure.
func resyncScan(r *scale.Reader, failedAt, window int, plausible func(probe *scale.Reader) bool) bool {
	start := r.Offset()
	maxAdvance := window
	if maxAdvance > r.Len() {
		maxAdvance = r.Len()
	}
	for advance := 0; advance < maxAdvance; advance++ {
		candidate := start + advance
		if err := r.Seek(candidate); err != nil {
			break
		}
		if plausible(scale.NewReader(r.Remaining())) {
			return true
		}
	}
	r.Seek(failedAt)
	return false
}
