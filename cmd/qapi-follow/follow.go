package main

import (
	"context"
	"fmt"
	"os"

	"time"

	"github.com/qapi-go/client/internal/config"
	"github.com/qapi-go/client/internal/output"
	"github.com/qapi-go/client/internal/report"
	"github.com/qapi-go/client/internal/transport"
	"github.com/qapi-go/client/qapi"
)

func runFollow(cfg *config.Config, maxRecent, maxEvents int) error {
	ctx, cancel := newSignalContext()
	defer cancel()

	if !output.IsTerminal() {
		output.DisableColors()
	}

	client, err := qapi.Connect(ctx, qapi.FromFileConfig(cfg))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Disconnect()

	info := client.RuntimeInfo()
	state := output.NewFollowState(maxRecent, maxEvents)
	state.SpecName = info.SpecName
	state.SpecVersion = info.SpecVersion
	state.AddEvent(fmt.Sprintf("connected to %s (spec %d)", cfg.Provider.URL, info.SpecVersion), output.SeverityInfo)
	output.RenderFollow(state)

	// The subscription callback must not block, so heads are handed to
	// this loop; a head arriving while the buffer is full is dropped.
	heads := make(chan qapi.Head, 64)
	unsubscribe, err := client.SubscribeNewHeads(ctx, func(head qapi.Head) {
		select {
		case heads <- head:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer unsubscribe()

	for done := false; !done; {
		select {
		case head := <-heads:
			onNewHead(ctx, client, state, head)
		case <-ctx.Done():
			done = true
		}
	}
	output.ClearScreen()
	fmt.Println("Exiting...")

	if path, err := exportSession(state, client.Latency()); err == nil {
		fmt.Printf("Session report written to %s\n", path)
	} else {
		fmt.Fprintf(os.Stderr, "Warning: failed to write session report: %v\n", err)
	}
	return nil
}

func onNewHead(ctx context.Context, client *qapi.Client, state *output.FollowState, head qapi.Head) {
	state.LastNumber = head.Number
	state.LastHash = head.Hash

	block, err := client.GetBlock(ctx, head.Hash)
	if err != nil {
		state.AddEvent(fmt.Sprintf("block #%d: fetch failed: %v", head.Number, err), output.SeverityError)
		output.RenderFollow(state)
		return
	}
	if block.Degraded {
		state.AddEvent(fmt.Sprintf("block #%d: body unavailable within retry budget, header only", head.Number), output.SeverityWarning)
	}

	rows := make([]output.RecentIdentity, 0, len(block.Extrinsics))
	for i, ext := range block.Extrinsics {
		rows = append(rows, output.RecentIdentity{
			Block:  head.Number,
			Index:  i,
			Pallet: ext.Identity.Pallet,
			Method: ext.Identity.Method,
			Signed: ext.Identity.Signed,
			Reason: ext.Identity.Reason,
		})
	}
	state.AddIdentities(rows)
	output.RenderFollow(state)
}

func exportSession(state *output.FollowState, latency transport.TailLatency) (string, error) {
	entries := make([]report.ExtrinsicEntry, 0, len(state.Recent))
	for _, r := range state.Recent {
		entries = append(entries, report.EntryFromIdentity(r.Block, r.Index, r.Identity()))
	}

	session := report.Session{
		Timestamp:    time.Now(),
		SpecName:     state.SpecName,
		SpecVersion:  state.SpecVersion,
		LastNumber:   state.LastNumber,
		LastHash:     state.LastHash,
		P50LatencyMS: report.MillisDuration(latency.P50),
		P95LatencyMS: report.MillisDuration(latency.P95),
		P99LatencyMS: report.MillisDuration(latency.P99),
		MaxLatencyMS: report.MillisDuration(latency.Max),
		Extrinsics:   entries,
	}
	return report.WriteJSON(session, "session")
}
