// Package extrinsic reads the identifying prefix of a SCALE-encoded
// extrinsic and resolves its pallet/call indices against a metadata
// PalletTable into a human-readable identity.
package extrinsic

import "github.com/qapi-go/client/internal/scale"

// Prefix is the transient result of reading an extrinsic's leading bytes:
// the declared length, the version/flag byte, whether it is signed, and
// the offset of the first byte past the version byte.
type Prefix struct {
	DeclaredLen int
	VersionByte byte
	Signed      bool
	BodyOffset  int
}

// ReadPrefix decodes the compact length, then the version byte, from raw
// extrinsic bytes. The declared length is consumed for bounds validation
// only; the four low bits of VersionByte denote the extrinsic format
// version (typically 4) and are not branched on here.
func ReadPrefix(raw []byte) (Prefix, error) {
	r := scale.NewReader(raw)
	length, err := r.CompactU32()
	if err != nil {
		return Prefix{}, err
	}
	version, err := r.U8()
	if err != nil {
		return Prefix{}, err
	}
	return Prefix{
		DeclaredLen: int(length),
		VersionByte: version,
		Signed:      version&0x80 != 0,
		BodyOffset:  r.Offset(),
	}, nil
}
