package extrinsic

import (
	"testing"

	"github.com/qapi-go/client/internal/metadata"
)

func TestIdentifyUnsignedSystemRemark(t *testing.T) {
	table := &metadata.PalletTable{Pallets: []metadata.PalletEntry{
		{Name: "System", Index: 0, Calls: []string{"remark"}},
	}}
	// compact length=4 (0x10), version=0x04 (unsigned), pallet=0, call=0
	raw := []byte{0x10, 0x04, 0x00, 0x00}

	got := Identify(raw, table)
	want := Identity{Pallet: "System", Method: "remark", Signed: false, Reason: ReasonUnset}
	if got != want {
		t.Errorf("Identify() = %+v, want %+v", got, want)
	}
}

func TestIdentifySignedBalancesTransferKeepAlive(t *testing.T) {
	table := &metadata.PalletTable{Pallets: []metadata.PalletEntry{
		{Name: "Balances", Index: 2, Calls: []string{"transfer", "transfer_all", "transfer_keep_alive", "force_transfer"}},
	}}
	// version byte bit7 set (signed), low bits = 4 -> 0x84. Everything
	// after the version byte up through the signature region is opaque to
	// the identifier; only body_offset/body_offset+1 matter, and this test
	// pretends the signature region is zero-length to exercise the index
	// bytes directly after the version byte.
	raw := []byte{0x10, 0x84, 0x02, 0x02}

	got := Identify(raw, table)
	want := Identity{Pallet: "Balances", Method: "transfer_keep_alive", Signed: true, Reason: ReasonSignedNotParsed}
	if got != want {
		t.Errorf("Identify() = %+v, want %+v", got, want)
	}
}

func TestIdentifySignedFlagIndependentOfTable(t *testing.T) {
	raw := []byte{0x10, 0x84, 0x00, 0x00}
	got := Identify(raw, nil)
	if !got.Signed {
		t.Error("Signed should reflect the version byte's high bit even with no table")
	}
	if got.Reason != ReasonNoMetadata {
		t.Errorf("Reason = %q, want no-metadata", got.Reason)
	}
}

func TestIdentifyPalletIndexNotFound(t *testing.T) {
	table := &metadata.PalletTable{Pallets: []metadata.PalletEntry{
		{Name: "System", Index: 0, Calls: []string{"remark"}},
	}}
	raw := []byte{0x10, 0x04, 0x09, 0x00}
	got := Identify(raw, table)
	if got.Reason != ReasonPalletIndexNotFound {
		t.Errorf("Reason = %q, want pallet-index-not-found", got.Reason)
	}
	if got.Pallet != "unknown(9)" {
		t.Errorf("Pallet = %q, want unknown(9)", got.Pallet)
	}
}

func TestIdentifyCallIndexOutOfRange(t *testing.T) {
	table := &metadata.PalletTable{Pallets: []metadata.PalletEntry{
		{Name: "System", Index: 0, Calls: []string{"remark"}},
	}}
	raw := []byte{0x10, 0x04, 0x00, 0x05}
	got := Identify(raw, table)
	if got.Reason != ReasonCallIndexOutOfRange {
		t.Errorf("Reason = %q, want call-index-out-of-range", got.Reason)
	}
	if got.Method != "unknown(5)" {
		t.Errorf("Method = %q, want unknown(5)", got.Method)
	}
}

func TestIdentifyNoMetadataPath(t *testing.T) {
	raw := []byte{0x10, 0x04, 0x07, 0x03}
	got := Identify(raw, nil)
	want := Identity{Pallet: "unknown(7)", Method: "unknown(3)", Signed: false, Reason: ReasonNoMetadata}
	if got != want {
		t.Errorf("Identify() = %+v, want %+v", got, want)
	}
}

func TestIdentifyEmptyCallsVariantDistinctFromNilCalls(t *testing.T) {
	nilCalls := metadata.PalletEntry{Name: "NilCalls", Index: 1}
	emptyCalls := metadata.PalletEntry{Name: "EmptyCalls", Index: 2, Calls: []string{}}
	table := &metadata.PalletTable{Pallets: []metadata.PalletEntry{nilCalls, emptyCalls}}

	for _, idx := range []byte{1, 2} {
		raw := []byte{0x10, 0x04, idx, 0x00}
		got := Identify(raw, table)
		if got.Reason != ReasonCallIndexOutOfRange {
			t.Errorf("pallet index %d: Reason = %q, want call-index-out-of-range", idx, got.Reason)
		}
	}
}

func TestReadPrefixDeclaredLenAndBodyOffset(t *testing.T) {
	raw := []byte{0x10, 0x04, 0xaa, 0xbb}
	p, err := ReadPrefix(raw)
	if err != nil {
		t.Fatalf("ReadPrefix() error = %v", err)
	}
	if p.DeclaredLen != 4 || p.Signed || p.BodyOffset != 2 {
		t.Errorf("ReadPrefix() = %+v, want {DeclaredLen:4 Signed:false BodyOffset:2}", p)
	}
}

func TestIdentifyEventSymmetricToCall(t *testing.T) {
	table := &metadata.PalletTable{Pallets: []metadata.PalletEntry{
		{Name: "System", Index: 0, Events: []string{"ExtrinsicSuccess", "ExtrinsicFailed"}},
	}}
	got := IdentifyEvent(0, 1, table)
	if got.Pallet != "System" || got.Method != "ExtrinsicFailed" || got.Reason != ReasonUnset {
		t.Errorf("IdentifyEvent() = %+v", got)
	}
}

func TestIdentifyEventUnknownPallet(t *testing.T) {
	got := IdentifyEvent(9, 0, &metadata.PalletTable{})
	if got.Reason != ReasonPalletIndexNotFound {
		t.Errorf("Reason = %q, want pallet-index-not-found", got.Reason)
	}
}
