package extrinsic

import (
	"fmt"

	"github.com/qapi-go/client/internal/metadata"
	"github.com/qapi-go/client/internal/scale"
)

// Reason explains why Identity could not produce a definitive name. The
// zero value ReasonUnset means identification succeeded outright.
type Reason string

const (
	ReasonUnset               Reason = ""
	ReasonNoMetadata           Reason = "no-metadata"
	ReasonSignedNotParsed      Reason = "signed-not-parsed"
	ReasonPalletIndexNotFound  Reason = "pallet-index-not-found"
	ReasonCallIndexOutOfRange  Reason = "call-index-out-of-range"
)

// Identity is the always-populated result of identifying one extrinsic.
// Pallet and Method are never empty, falling back to unknown(<index>)
// forms; identification never returns an error to its caller.
type Identity struct {
	Pallet string
	Method string
	Signed bool
	Reason Reason
}

const outOfRangeIndex = 0xff

// Identify resolves the pallet/method identity of raw extrinsic bytes
// against table, which may be nil. It never fails: malformed prefixes or
// out-of-bounds index bytes degrade to the unknown(...) forms rather than
// propagating an error, matching the guarantee that Pallet/Method are
// always non-empty.
func Identify(raw []byte, table *metadata.PalletTable) Identity {
	prefix, err := ReadPrefix(raw)
	if err != nil {
		return Identity{Pallet: unknownName(outOfRangeIndex), Method: unknownName(outOfRangeIndex), Reason: ReasonNoMetadata}
	}

	palletIdx := byteAt(raw, prefix.BodyOffset)
	callIdx := byteAt(raw, prefix.BodyOffset+1)

	if table == nil {
		return Identity{
			Pallet: unknownName(palletIdx),
			Method: unknownName(callIdx),
			Signed: prefix.Signed,
			Reason: ReasonNoMetadata,
		}
	}

	p := table.FindByIndex(palletIdx)

	var method string
	var methodResolved bool
	if p != nil && int(callIdx) < len(p.Calls) {
		method = p.Calls[callIdx]
		methodResolved = true
	}

	palletName := unknownName(palletIdx)
	if p != nil {
		palletName = p.Name
	}

	if prefix.Signed {
		m := method
		if !methodResolved {
			m = unknownName(callIdx)
		}
		return Identity{Pallet: palletName, Method: m, Signed: true, Reason: ReasonSignedNotParsed}
	}

	if methodResolved {
		return Identity{Pallet: palletName, Method: method, Signed: false, Reason: ReasonUnset}
	}

	reason := ReasonCallIndexOutOfRange
	if p == nil {
		reason = ReasonPalletIndexNotFound
	}
	return Identity{Pallet: palletName, Method: unknownName(callIdx), Signed: false, Reason: reason}
}

// byteAt returns raw[i], or the out-of-range sentinel 0xff if i is beyond
// raw's bounds.
func byteAt(raw []byte, i int) byte {
	if i < 0 || i >= len(raw) {
		return outOfRangeIndex
	}
	return raw[i]
}

func unknownName(idx byte) string {
	return fmt.Sprintf("unknown(%d)", idx)
}

// IdentifyEvent resolves an event's pallet/name identity given its raw
// pallet and event index bytes, symmetric to Identify but against a
// pallet's Events instead of Calls. Events are never "signed", so the
// reason set is the unsigned subset of Identify's.
func IdentifyEvent(palletIdx, eventIdx byte, table *metadata.PalletTable) Identity {
	if table == nil {
		return Identity{Pallet: unknownName(palletIdx), Method: unknownName(eventIdx), Reason: ReasonNoMetadata}
	}
	p := table.FindByIndex(palletIdx)
	if p == nil {
		return Identity{Pallet: unknownName(palletIdx), Method: unknownName(eventIdx), Reason: ReasonPalletIndexNotFound}
	}
	if int(eventIdx) < len(p.Events) {
		return Identity{Pallet: p.Name, Method: p.Events[eventIdx], Reason: ReasonUnset}
	}
	return Identity{Pallet: p.Name, Method: unknownName(eventIdx), Reason: ReasonCallIndexOutOfRange}
}

// DecodeHexIdentity is a convenience wrapper for callers holding a
// "0x"-prefixed extrinsic, matching the hex convention in the external
// interfaces: decoding strips the prefix and accepts even-length hex only.
func DecodeHexIdentity(hex string, table *metadata.PalletTable) (Identity, error) {
	raw, err := scale.DecodeHex(hex)
	if err != nil {
		return Identity{}, err
	}
	return Identify(raw, table), nil
}
