package output

import (
	"fmt"
	"time"
)

// FollowState holds the live state the bundled follower redraws on each
// new head: the chain's latest position, recently decoded extrinsics, and
// a rolling log of notable events (reconnects, decode fallbacks).
type FollowState struct {
	SpecName    string
	SpecVersion uint32
	LastNumber  uint64
	LastHash    string
	Recent      []RecentIdentity
	MaxRecent   int
	Events      []FollowEvent
	MaxEvents   int
}

// FollowEvent is a notable event in the follow loop: a reconnect, a
// decode fallback, or a block-fetch retry.
type FollowEvent struct {
	Timestamp time.Time
	Message   string
	Severity  EventSeverity
}

// EventSeverity indicates the importance of a FollowEvent.
type EventSeverity int

const (
	SeverityInfo EventSeverity = iota
	SeverityWarning
	SeverityError
)

// NewFollowState creates a live state tracker bounded to maxRecent
// extrinsic rows and maxEvents log lines.
func NewFollowState(maxRecent, maxEvents int) *FollowState {
	return &FollowState{MaxRecent: maxRecent, MaxEvents: maxEvents}
}

// AddEvent prepends a newest-first event, trimming to MaxEvents.
func (s *FollowState) AddEvent(message string, severity EventSeverity) {
	s.Events = append([]FollowEvent{{Timestamp: time.Now(), Message: message, Severity: severity}}, s.Events...)
	if len(s.Events) > s.MaxEvents {
		s.Events = s.Events[:s.MaxEvents]
	}
}

// AddIdentities prepends newly decoded extrinsic rows, trimming to
// MaxRecent.
func (s *FollowState) AddIdentities(rows []RecentIdentity) {
	s.Recent = append(rows, s.Recent...)
	if len(s.Recent) > s.MaxRecent {
		s.Recent = s.Recent[:s.MaxRecent]
	}
}

// RenderFollow redraws the terminal with the current follow state: a
// header with the chain's runtime, the latest head, recent events, and
// the recently decoded extrinsics rendered through PrintExtrinsicLine
// per §6's user-visible output contract.
func RenderFollow(s *FollowState) {
	ClearScreen()

	now := time.Now().Format("15:04:05")
	fmt.Printf("%s %s (spec %d) ─── %s %s\n", cyan("╭─"), s.SpecName, s.SpecVersion, now, cyan("─╮"))
	fmt.Println()

	PrintHeadLine(s.LastNumber, s.LastHash)
	fmt.Println()

	fmt.Printf("%s\n", bold("Recent Events:"))
	if len(s.Events) == 0 {
		fmt.Println("  (no events)")
	} else {
		for i, e := range s.Events {
			if i >= s.MaxEvents {
				break
			}
			line := fmt.Sprintf("%s  %s", e.Timestamp.Format("15:04:05"), e.Message)
			switch e.Severity {
			case SeverityError:
				fmt.Println("  " + red(line))
			case SeverityWarning:
				fmt.Println("  " + yellow(line))
			default:
				fmt.Println("  " + line)
			}
		}
	}

	fmt.Println()
	fmt.Printf("%s\n", bold("Recent Extrinsics:"))
	RenderRecentLines(s.Recent)
	fmt.Println()
	fmt.Println(cyan("╰───────────────────────────────────────────────────────────────────╯"))
	fmt.Println("Press Ctrl+C to exit")
}

// ClearScreen clears the terminal, for redraw-in-place follow mode.
func ClearScreen() {
	fmt.Print("\033[2J\033[H")
}
