package task

import "github.com/flashwarden/flashwarden/internal/model"

// EventKind enumerates the notifications a workflow run publishes.
type EventKind int

const (
	// StateChanged carries the new lifecycle state of a device's run.
	StateChanged EventKind = iota
	// OutputChanged signals freshly captured output. Consumers re-read
	// the current snapshot rather than receiving deltas.
	OutputChanged
	// ProgressChanged carries a newly estimated flashing percentage.
	ProgressChanged
	// Finished signals that the run reached its terminal state.
	Finished
)

// Event is one notification on the supervisor's event stream. For a
// single device key events are strictly ordered: running precedes the
// terminal state, at most one terminal state is published per run, and
// percentages never decrease. No ordering holds across device keys.
type Event struct {
	Kind    EventKind
	Device  string
	State   model.RunState
	Percent int
}
