package qapi

import (
	"context"

	"github.com/qapi-go/client/internal/extrinsic"
	"github.com/qapi-go/client/internal/metadata"
	"github.com/qapi-go/client/internal/scale"
)

// DecodeExtrinsicName identifies the pallet/method of a hex-encoded
// extrinsic, resolving the pallet table in effect at blockHash (or the
// latest table, when blockHash is empty) before delegating to the
// extrinsic identifier.
func (c *Client) DecodeExtrinsicName(ctx context.Context, hexExtrinsic, blockHash string) (extrinsic.Identity, error) {
	raw, err := scale.DecodeHex(hexExtrinsic)
	if err != nil {
		return extrinsic.Identity{}, err
	}
	table := c.tablesForBlock(ctx, blockHash)
	return extrinsic.Identify(raw, table), nil
}

// DecodeEventName identifies the pallet/event of a (palletIndex,
// eventIndex) pair, resolving the pallet table the same way
// DecodeExtrinsicName does.
func (c *Client) DecodeEventName(ctx context.Context, palletIndex, eventIndex byte, blockHash string) extrinsic.Identity {
	table := c.tablesForBlock(ctx, blockHash)
	return extrinsic.IdentifyEvent(palletIndex, eventIndex, table)
}

// identifyRaw resolves a raw extrinsic against an already-fetched table,
// for callers (blocks.get) that decode a whole block's extrinsics against
// one table lookup instead of one per extrinsic.
func identifyRaw(raw []byte, table *metadata.PalletTable) extrinsic.Identity {
	return extrinsic.Identify(raw, table)
}
