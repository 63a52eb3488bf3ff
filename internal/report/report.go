// Package report provides a JSON report model for the bundled follower's
// session export: a timestamped snapshot of recently decoded heads and
// extrinsics, written to a reports directory for later inspection.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/qapi-go/client/internal/extrinsic"
)

// MillisDuration marshals a time.Duration as an integer millisecond count.
type MillisDuration time.Duration

func (d MillisDuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).Milliseconds())
}

// ExtrinsicEntry is one decoded extrinsic row in a session report.
type ExtrinsicEntry struct {
	Block  uint64 `json:"block"`
	Index  int    `json:"index"`
	Pallet string `json:"pallet"`
	Method string `json:"method"`
	Signed bool   `json:"signed"`
	Reason string `json:"reason,omitempty"`
}

// Session is the JSON-serializable session report: the chain identity at
// capture time, the latest head, the latency tail observed over the
// connection, and recently decoded extrinsics.
type Session struct {
	Timestamp    time.Time        `json:"timestamp"`
	SpecName     string           `json:"spec_name"`
	SpecVersion  uint32           `json:"spec_version"`
	LastNumber   uint64           `json:"last_number"`
	LastHash     string           `json:"last_hash,omitempty"`
	P50LatencyMS MillisDuration   `json:"p50_latency_ms"`
	P95LatencyMS MillisDuration   `json:"p95_latency_ms"`
	P99LatencyMS MillisDuration   `json:"p99_latency_ms"`
	MaxLatencyMS MillisDuration   `json:"max_latency_ms"`
	Extrinsics   []ExtrinsicEntry `json:"extrinsics"`
}

// EntryFromIdentity converts a resolved extrinsic identity into its
// report row.
func EntryFromIdentity(block uint64, index int, id extrinsic.Identity) ExtrinsicEntry {
	return ExtrinsicEntry{
		Block:  block,
		Index:  index,
		Pallet: id.Pallet,
		Method: id.Method,
		Signed: id.Signed,
		Reason: string(id.Reason),
	}
}

// WriteJSON writes data to a timestamped JSON file under the reports
// directory, returning the file's path. Filenames follow
// "{prefix}-YYYYMMDD-HHMMSS.json", so exports made in different seconds
// never collide; a second export within the same second overwrites the
// first.
func WriteJSON(data any, prefix string) (string, error) {
	const reportsDir = "reports"
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	filename := fmt.Sprintf("%s-%s.json", prefix, time.Now().Format("20060102-150405"))
	path := filepath.Join(reportsDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return "", fmt.Errorf("failed to encode JSON: %w", err)
	}
	return path, nil
}
