package qapi

import "github.com/qapi-go/client/internal/extrinsic"

// Head is one new best/finalized head delivered by chainHead.subscribe.
type Head struct {
	Number uint64
	Hash   string
}

// Header is the subset of a block header §4 cares about: enough to derive
// a Head and to serve as the degraded result of blocks.get when the body
// never arrives.
type Header struct {
	Number     uint64
	ParentHash string
}

// Block is the result of blocks.get: a header plus the raw extrinsic
// bytes, each already run through Identify. Degraded is true when the
// body could not be retrieved within the retry budget and only the
// header was recovered.
type Block struct {
	Header     Header
	Extrinsics []DecodedExtrinsic
	Degraded   bool
}

// DecodedExtrinsic pairs one block extrinsic's raw hex with its resolved
// identity.
type DecodedExtrinsic struct {
	Raw      string
	Identity extrinsic.Identity
}

type rpcHeader struct {
	Number     string `json:"number"`
	ParentHash string `json:"parentHash"`
}

// rpcBlockBody is the {header, extrinsics} shape chain_getBlock returns,
// either nested under a "block" key or flat at the top level — nodes are
// observed to do both.
type rpcBlockBody struct {
	Header     rpcHeader `json:"header"`
	Extrinsics []string  `json:"extrinsics"`
}
