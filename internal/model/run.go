package model

import (
	"strings"

	"github.com/google/uuid"
)

// RunState is the lifecycle state of a single workflow run.
type RunState string

const (
	StateRunning RunState = "running"
	StateDone    RunState = "done"
	StateFailed  RunState = "failed"
)

// Terminal reports whether no further state transition can happen.
func (s RunState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Label returns the status text consumers display for a run in state s.
func (s RunState) Label() string {
	switch s {
	case StateRunning:
		return "workflow is running"
	case StateDone:
		return "workflow finished successfully"
	case StateFailed:
		return "workflow failed"
	}
	return string(s)
}

// DeviceRow is one accepted line of the inventory listing.
// Device is the unique key, the remaining fields are advisory.
type DeviceRow struct {
	Device       string
	Size         string
	Manufacturer string
}

// Label renders the row as `path (size | manufacturer)`, dropping empty parts.
func (r DeviceRow) Label() string {
	var details []string
	for _, part := range []string{r.Size, r.Manufacturer} {
		if part != "" {
			details = append(details, part)
		}
	}
	if len(details) == 0 {
		return r.Device
	}
	return r.Device + " (" + strings.Join(details, " | ") + ")"
}

// WorkflowRunInfo is a read-only snapshot of one workflow run. It is
// published by the task supervisor; only the owning task mutates the
// underlying record.
type WorkflowRunInfo struct {
	ID         uuid.UUID
	DevicePath string
	State      RunState
	RunURL     string
	Stdout     string
	Stderr     string
	ExitCode   *int
}

// CombinedOutput renders the captured streams as the sectioned text
// status surfaces display, omitting empty sections.
func (i WorkflowRunInfo) CombinedOutput() string {
	var b strings.Builder
	if strings.TrimSpace(i.Stdout) != "" {
		b.WriteString("[stdout]\n")
		b.WriteString(strings.TrimRight(i.Stdout, "\n\r \t"))
		b.WriteString("\n")
	}
	if strings.TrimSpace(i.Stderr) != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("[stderr]\n")
		b.WriteString(strings.TrimRight(i.Stderr, "\n\r \t"))
	}
	return strings.TrimRight(b.String(), "\n\r \t")
}

// InputFieldSpec describes one input field of the workflow options
// schema. Produced fresh by every parse.
type InputFieldSpec struct {
	Name        string
	Type        string
	Default     any
	Options     []any
	HasOptions  bool
	Required    bool
	Description string
}
