// Package qapi is the public façade: it composes the transport, the
// runtime probe, and the metadata decoder into connect, head
// subscription, block retrieval, and extrinsic/event identification.
package qapi

import (
	"github.com/qapi-go/client/internal/config"
	"github.com/qapi-go/client/internal/metadata"
)

// Config is accepted by Connect, mirroring §6's configuration table.
type Config struct {
	// URL is the WebSocket endpoint of the node.
	URL string
	// NoReconnect disables the transport's backoff-and-redial loop after
	// an unexpected socket close. Left false (the zero value), the
	// transport reconnects automatically — the normal case.
	NoReconnect bool
	Overrides   Overrides
}

// Overrides holds the advanced knobs from §6: advertised signature
// scheme, ss58 prefix override, and metadata decode overrides.
type Overrides struct {
	SS58Prefix *uint32
	Signature  SignatureScheme
	Metadata   MetadataOverrides
}

// SignatureScheme is carried through for higher layers outside the core;
// the core itself never parses signatures.
type SignatureScheme struct {
	Scheme  string
	Variant string
}

// CustomParser replaces the default metadata decoder when set.
type CustomParser func(raw []byte) (*metadata.PalletTable, []string, error)

// MetadataOverrides holds the metadata-decode knobs from §6.
type MetadataOverrides struct {
	CustomParser      CustomParser
	Tables            *OverrideTable
	IgnoreParseErrors bool
}

// OverrideTable is the richer override shape §4.5 describes: calls
// carrying their own declared index rather than relying on slice
// position.
type OverrideTable struct {
	Version uint8
	Pallets []metadata.OverridePallet
}

// FromFileConfig builds a connect Config from a loaded YAML file config,
// the bridge between the CLI's on-disk provider/overrides shape and the
// library's Connect API. The CLI has no knob to disable reconnection.
func FromFileConfig(fc *config.Config) Config {
	return Config{
		URL: fc.Provider.URL,
		Overrides: Overrides{
			SS58Prefix: fc.Overrides.SS58Prefix,
			Signature: SignatureScheme{
				Scheme:  fc.Overrides.Signature.Scheme,
				Variant: fc.Overrides.Signature.Variant,
			},
			Metadata: MetadataOverrides{
				IgnoreParseErrors: fc.Overrides.Metadata.IgnoreParseErrors,
			},
		},
	}
}
