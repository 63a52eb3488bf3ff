// Package output renders the bundled follower's color terminal lines.
package output

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/qapi-go/client/internal/extrinsic"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// PrintHeadLine prints one line per new head, per §6's user-visible
// output contract: number and hash.
func PrintHeadLine(number uint64, hash string) {
	fmt.Printf("%s #%s %s\n", cyan("head"), bold(fmt.Sprintf("%d", number)), hash)
}

// PrintExtrinsicLine prints one line per extrinsic:
// "#<i>: <signed|unsigned> <Pallet>.<method>[ (<reason>)]".
func PrintExtrinsicLine(index int, id extrinsic.Identity) {
	signedWord := "unsigned"
	signedFmt := green
	if id.Signed {
		signedWord = "signed"
		signedFmt = yellow
	}

	line := fmt.Sprintf("  #%d: %s %s.%s", index, signedFmt(signedWord), id.Pallet, id.Method)
	if id.Reason != extrinsic.ReasonUnset {
		line += red(fmt.Sprintf(" (%s)", id.Reason))
	}
	fmt.Println(line)
}

// RecentIdentity is one row of the bundled follower's rolling recent-
// extrinsics log: a decoded identity plus the block and index it was
// found at.
type RecentIdentity struct {
	Block  uint64
	Index  int
	Pallet string
	Method string
	Signed bool
	Reason extrinsic.Reason
}

// Identity rebuilds the extrinsic.Identity a RecentIdentity row was
// captured from, for callers rendering it through PrintExtrinsicLine.
func (r RecentIdentity) Identity() extrinsic.Identity {
	return extrinsic.Identity{Pallet: r.Pallet, Method: r.Method, Signed: r.Signed, Reason: r.Reason}
}

// RenderRecentLines prints the most recently decoded extrinsic
// identities grouped by block, per §6's user-visible output contract: a
// block line followed by one PrintExtrinsicLine per extrinsic.
func RenderRecentLines(rows []RecentIdentity) {
	if len(rows) == 0 {
		fmt.Println(green("No extrinsics decoded yet."))
		return
	}

	var lastBlock uint64
	haveBlock := false
	for _, r := range rows {
		if !haveBlock || r.Block != lastBlock {
			fmt.Printf("%s #%s\n", cyan("block"), bold(fmt.Sprintf("%d", r.Block)))
			lastBlock = r.Block
			haveBlock = true
		}
		PrintExtrinsicLine(r.Index, r.Identity())
	}
}

// DisableColors turns off color output, for non-TTY or piped invocations.
func DisableColors() {
	color.NoColor = true
}

// IsTerminal returns true if stdout is a terminal.
func IsTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
