package qapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qapi-go/client/internal/metadata"
)

// fakeNodeServer is a minimal in-process stand-in for a Substrate node,
// serving just enough of the JSON-RPC surface for the façade-level
// scenarios: runtime probe, and block retrieval with a configurable
// null-body retry count and an optional flat (unwrapped) body shape. It
// pushes no subscription notifications.
type fakeNodeServer struct {
	metadataCalls atomic.Int32
	getBlockCalls atomic.Int32
	nullBodyCount int32
	flatBlock     bool
}

func (f *fakeNodeServer) start(t *testing.T) string {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req struct {
				ID     int64  `json:"id"`
				Method string `json:"method"`
			}
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			f.handle(conn, req.ID, req.Method)
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (f *fakeNodeServer) handle(conn *websocket.Conn, id int64, method string) {
	reply := func(result any) {
		raw, _ := json.Marshal(result)
		conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": id, "result": json.RawMessage(raw)})
	}

	switch method {
	case "state_getRuntimeVersion":
		reply(map[string]any{"specName": "testchain", "specVersion": 1})
	case "state_getMetadata":
		f.metadataCalls.Add(1)
		reply("0x0e00")
	case "system_properties":
		reply(map[string]any{"ss58Format": 42})
	case "chain_getBlockHash":
		reply("0x" + strings.Repeat("ab", 32))
	case "chain_getBlock":
		n := f.getBlockCalls.Add(1)
		if n <= f.nullBodyCount {
			reply(map[string]any{"block": nil})
			return
		}
		body := map[string]any{
			"header":     map[string]any{"number": "0x2a", "parentHash": "0x00"},
			"extrinsics": []string{},
		}
		if f.flatBlock {
			reply(body)
			return
		}
		reply(map[string]any{"block": body})
	case "chain_getHeader":
		reply(map[string]any{"number": "0x2a", "parentHash": "0x00"})
	default:
		reply("ok")
	}
}

func TestConnectWithOverrideTableSkipsMetadataRPC(t *testing.T) {
	f := &fakeNodeServer{}
	url := f.start(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := Connect(ctx, Config{
		URL: url,
		Overrides: Overrides{
			Metadata: MetadataOverrides{
				Tables: &OverrideTable{
					Version: 14,
					Pallets: []metadata.OverridePallet{
						{Name: "System", Index: 0, Calls: []metadata.OverrideCall{{Name: "remark", Index: 0}}},
					},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Disconnect()

	if f.metadataCalls.Load() != 0 {
		t.Errorf("state_getMetadata calls = %d, want 0 (override table should bypass the RPC)", f.metadataCalls.Load())
	}

	ext := "0x0c" + "00" + "00" + "00" // compact len(3), unsigned version, pallet 0, call 0
	id, err := client.DecodeExtrinsicName(ctx, ext, "")
	if err != nil {
		t.Fatalf("DecodeExtrinsicName() error = %v", err)
	}
	if id.Pallet != "System" || id.Method != "remark" {
		t.Errorf("identity = %+v, want System.remark", id)
	}
}

func TestGetBlockRetriesThroughNullBodyWithinBudget(t *testing.T) {
	f := &fakeNodeServer{nullBodyCount: 3}
	url := f.start(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Connect(ctx, Config{URL: url})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Disconnect()

	start := time.Now()
	block, err := client.GetBlock(ctx, fmt.Sprintf("0x%s", strings.Repeat("ab", 32)))
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("GetBlock() error = %v", err)
	}
	if block.Degraded {
		t.Error("block.Degraded = true, want false (the 4th attempt should have succeeded)")
	}
	if block.Header.Number != 42 {
		t.Errorf("block.Header.Number = %d, want 42", block.Header.Number)
	}
	if elapsed > 900*time.Millisecond {
		t.Errorf("GetBlock took %s, want roughly 600ms or less", elapsed)
	}
}

func TestGetBlockAcceptsFlatBodyShape(t *testing.T) {
	f := &fakeNodeServer{flatBlock: true}
	url := f.start(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Connect(ctx, Config{URL: url})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Disconnect()

	block, err := client.GetBlock(ctx, fmt.Sprintf("0x%s", strings.Repeat("ab", 32)))
	if err != nil {
		t.Fatalf("GetBlock() error = %v", err)
	}
	if block.Degraded {
		t.Error("block.Degraded = true, want false (flat {header,extrinsics} shape should be accepted directly)")
	}
	if block.Header.Number != 42 {
		t.Errorf("block.Header.Number = %d, want 42", block.Header.Number)
	}
}

func TestGetBlockDegradesAfterExhaustingRetries(t *testing.T) {
	f := &fakeNodeServer{nullBodyCount: 100}
	url := f.start(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Connect(ctx, Config{URL: url})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Disconnect()

	block, err := client.GetBlock(ctx, fmt.Sprintf("0x%s", strings.Repeat("ab", 32)))
	if err != nil {
		t.Fatalf("GetBlock() error = %v", err)
	}
	if !block.Degraded {
		t.Error("block.Degraded = false, want true (body never arrived)")
	}
	if block.Header.Number != 42 {
		t.Errorf("block.Header.Number = %d, want 42 (from chain_getHeader fallback)", block.Header.Number)
	}
}
