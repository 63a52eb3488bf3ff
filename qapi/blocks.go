package qapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/qapi-go/client/internal/scale"
)

const (
	blockRetryAttempts = 4
	blockRetryInterval = 150 * time.Millisecond
)

// GetBlock resolves ref (a decimal number, a "0x..." number, or a
// 32-byte block hash) and fetches its header and extrinsics, retrying up
// to blockRetryAttempts times (a ~600ms ceiling) to absorb the race where
// a just-announced head is not yet available from chain_getBlock. If the
// body never arrives within the budget, GetBlock falls back to
// chain_getHeader and returns a Block with Degraded set and no
// extrinsics, rather than failing outright.
func (c *Client) GetBlock(ctx context.Context, ref string) (Block, error) {
	hash, numberHex, isHash := resolveBlockRef(ref)
	if !isHash {
		resolved, err := c.blockHashForNumber(ctx, numberHex)
		if err != nil {
			return Block{}, err
		}
		hash = resolved
	}

	var lastErr error
	for attempt := 0; attempt <= blockRetryAttempts; attempt++ {
		block, err := c.fetchSignedBlock(ctx, hash)
		if err == nil {
			return block, nil
		}
		lastErr = err

		if attempt == blockRetryAttempts {
			break
		}
		select {
		case <-time.After(blockRetryInterval):
		case <-ctx.Done():
			return Block{}, ctx.Err()
		}
	}

	header, err := c.fetchHeader(ctx, hash)
	if err != nil {
		return Block{}, fmt.Errorf("qapi: block body and header both unavailable: %w", lastErr)
	}
	return Block{Header: header, Degraded: true}, nil
}

func (c *Client) blockHashForNumber(ctx context.Context, numberHex string) (string, error) {
	raw, err := c.transport.Send(ctx, "chain_getBlockHash", []any{numberHex})
	if err != nil {
		return "", fmt.Errorf("qapi: chain_getBlockHash: %w", err)
	}
	var hash string
	if err := json.Unmarshal(raw, &hash); err != nil {
		return "", fmt.Errorf("qapi: chain_getBlockHash: decode: %w", err)
	}
	return hash, nil
}

// fetchSignedBlock accepts both shapes chain_getBlock is seen to return:
// {block:{header,extrinsics}} and the flat {header,extrinsics} some nodes
// use directly. A literal JSON null result, or a body missing a header
// number either way, is treated as not-yet-available.
func (c *Client) fetchSignedBlock(ctx context.Context, hash string) (Block, error) {
	raw, err := c.transport.Send(ctx, "chain_getBlock", []any{hash})
	if err != nil {
		return Block{}, err
	}
	if string(raw) == "null" {
		return Block{}, fmt.Errorf("qapi: chain_getBlock: null result")
	}

	var wrapped struct {
		Block *rpcBlockBody `json:"block"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return Block{}, fmt.Errorf("qapi: chain_getBlock: decode: %w", err)
	}

	body := wrapped.Block
	if body == nil {
		var flat rpcBlockBody
		if err := json.Unmarshal(raw, &flat); err != nil {
			return Block{}, fmt.Errorf("qapi: chain_getBlock: decode: %w", err)
		}
		body = &flat
	}
	if body.Header.Number == "" {
		return Block{}, fmt.Errorf("qapi: chain_getBlock: empty body")
	}

	number, err := scale.ParseHexU64(body.Header.Number)
	if err != nil {
		return Block{}, fmt.Errorf("qapi: chain_getBlock: header.number: %w", err)
	}

	extrinsics := make([]DecodedExtrinsic, 0, len(body.Extrinsics))
	table := c.tablesForBlock(ctx, hash)
	for _, hexExt := range body.Extrinsics {
		rawExt, err := scale.DecodeHex(hexExt)
		if err != nil {
			continue
		}
		extrinsics = append(extrinsics, DecodedExtrinsic{Raw: hexExt, Identity: identifyRaw(rawExt, table)})
	}

	return Block{
		Header: Header{
			Number:     number,
			ParentHash: body.Header.ParentHash,
		},
		Extrinsics: extrinsics,
	}, nil
}

func (c *Client) fetchHeader(ctx context.Context, hash string) (Header, error) {
	raw, err := c.transport.Send(ctx, "chain_getHeader", []any{hash})
	if err != nil {
		return Header{}, err
	}
	var h rpcHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return Header{}, fmt.Errorf("qapi: chain_getHeader: decode: %w", err)
	}
	number, err := scale.ParseHexU64(h.Number)
	if err != nil {
		return Header{}, fmt.Errorf("qapi: chain_getHeader: header.number: %w", err)
	}
	return Header{Number: number, ParentHash: h.ParentHash}, nil
}

type newHeadHandle struct {
	Number string `json:"number"`
	Hash   string `json:"hash"`
}

// SubscribeNewHeads wraps chain_subscribeNewHeads, deriving a Head from
// each notification's header number and, when the node omits an explicit
// hash field, falling back to chain_getBlockHash. cb is invoked on the
// transport's single dispatch loop when the notification carries a hash,
// and on a separate goroutine after the chain_getBlockHash fallback (an
// RPC cannot complete while the dispatch loop is blocked); either way it
// must not block.
func (c *Client) SubscribeNewHeads(ctx context.Context, cb func(Head)) (func(), error) {
	return c.transport.Subscribe(ctx, "chain_subscribeNewHeads", "chain_unsubscribeNewHeads", nil, func(result json.RawMessage) {
		var h newHeadHandle
		if err := json.Unmarshal(result, &h); err != nil {
			return
		}
		number, err := scale.ParseHexU64(h.Number)
		if err != nil {
			return
		}

		if h.Hash == "" {
			go func() {
				resolved, err := c.blockHashForNumber(context.Background(), h.Number)
				if err != nil {
					c.logDiagnostic(fmt.Sprintf("subscribeNewHeads: chain_getBlockHash fallback failed for #%d: %v", number, err))
					return
				}
				cb(Head{Number: number, Hash: resolved})
			}()
			return
		}
		cb(Head{Number: number, Hash: h.Hash})
	})
}
