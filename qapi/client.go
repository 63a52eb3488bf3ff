package qapi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/qapi-go/client/internal/config"
	"github.com/qapi-go/client/internal/metadata"
	"github.com/qapi-go/client/internal/runtimeprobe"
	"github.com/qapi-go/client/internal/transport"
)

// Client is the connected façade: one WebSocket transport, the runtime
// info captured at connect, and a cache of decoded pallet tables keyed by
// spec version.
type Client struct {
	transport *transport.Client
	overrides Overrides
	cache     *tableCache
	runtime   runtimeprobe.RuntimeInfo
	debug     bool
}

// Connect dials cfg.URL, probes the runtime, and establishes the initial
// pallet table per §4.5: an override table is adopted outright when
// supplied, otherwise the probed metadata is run through the decoder (or
// cfg.Overrides.Metadata.CustomParser, when set). A decode failure never
// fails Connect — the client comes up with a nil latest table and
// Identify degrades to ReasonNoMetadata until a later block supplies a
// usable spec version.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	t := transport.New(cfg.URL, !cfg.NoReconnect)
	if err := t.Connect(ctx); err != nil {
		return nil, fmt.Errorf("qapi: connect: %w", err)
	}

	info, err := runtimeprobe.Fetch(ctx, t, "", cfg.Overrides.Metadata.Tables == nil)
	if err != nil {
		return nil, fmt.Errorf("qapi: runtime probe: %w", err)
	}

	c := &Client{
		transport: t,
		overrides: cfg.Overrides,
		cache:     newTableCache(),
		runtime:   info,
		debug:     config.Debug(),
	}

	c.adoptInitialTable(info)
	return c, nil
}

func (c *Client) adoptInitialTable(info runtimeprobe.RuntimeInfo) {
	if ov := c.overrides.Metadata.Tables; ov != nil {
		table := metadata.TableFromOverride(ov.Version, ov.Pallets)
		c.cache.SetLatest(info.SpecVersion, table)
		return
	}

	parse := metadata.Decode
	if custom := c.overrides.Metadata.CustomParser; custom != nil {
		parse = custom
	}

	table, diag, err := parse(info.Metadata)
	if err != nil {
		if !c.overrides.Metadata.IgnoreParseErrors {
			c.logDiagnostic(fmt.Sprintf("connect: metadata decode failed for spec version %d: %v", info.SpecVersion, err))
		}
		return
	}
	if len(diag) > 0 {
		c.logDiagnostic(fmt.Sprintf("connect: metadata decode recovered %d issue(s) for spec version %d", len(diag), info.SpecVersion))
		for _, d := range diag {
			c.logDiagnostic("  " + d)
		}
	}
	if table != nil {
		c.cache.SetLatest(info.SpecVersion, table)
	}
}

// RuntimeInfo returns the runtime version/metadata/properties captured at
// Connect.
func (c *Client) RuntimeInfo() runtimeprobe.RuntimeInfo { return c.runtime }

// Disconnect closes the underlying transport.
func (c *Client) Disconnect() { c.transport.Disconnect() }

// Latency returns the tail latency (p50/p95/p99/max) of recent Send round
// trips on the underlying transport, for callers that want to surface
// connection health (e.g. the bundled follower's session export).
func (c *Client) Latency() transport.TailLatency { return c.transport.Latency() }

func (c *Client) logDiagnostic(msg string) {
	if !c.debug {
		return
	}
	fmt.Fprintln(os.Stderr, "qapi: "+msg)
}

// tablesForBlock resolves the pallet table in effect at blockHash,
// per §4.5's per-block caching rule: an empty blockHash (or any lookup
// failure along the way) falls back to the latest table established at
// connect. A successful per-block lookup is cached under its spec version
// but does not replace the latest table.
func (c *Client) tablesForBlock(ctx context.Context, blockHash string) *metadata.PalletTable {
	if blockHash == "" {
		return c.cache.Latest()
	}

	specVersion, ok := c.specVersionAt(ctx, blockHash)
	if !ok {
		return c.cache.Latest()
	}
	if t := c.cache.Get(specVersion); t != nil {
		return t
	}

	info, err := runtimeprobe.Fetch(ctx, c.transport, blockHash, true)
	if err != nil {
		c.logDiagnostic(fmt.Sprintf("tablesForBlock: runtime probe at %s failed: %v", blockHash, err))
		return c.cache.Latest()
	}

	parse := metadata.Decode
	if custom := c.overrides.Metadata.CustomParser; custom != nil {
		parse = custom
	}
	table, diag, err := parse(info.Metadata)
	if err != nil {
		c.logDiagnostic(fmt.Sprintf("tablesForBlock: metadata decode failed for spec version %d: %v", specVersion, err))
		return c.cache.Latest()
	}
	if len(diag) > 0 {
		c.logDiagnostic(fmt.Sprintf("tablesForBlock: metadata decode recovered %d issue(s) for spec version %d", len(diag), specVersion))
	}
	return c.cache.GetOrSet(specVersion, func() *metadata.PalletTable { return table })
}

func (c *Client) specVersionAt(ctx context.Context, blockHash string) (uint32, bool) {
	raw, err := c.transport.Send(ctx, "state_getRuntimeVersion", []any{blockHash})
	if err != nil {
		return 0, false
	}
	var rv struct {
		SpecVersion uint32 `json:"specVersion"`
	}
	if err := json.Unmarshal(raw, &rv); err != nil {
		return 0, false
	}
	return rv.SpecVersion, true
}
