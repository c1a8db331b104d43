package inventory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/flashwarden/flashwarden/internal/model"
	"github.com/flashwarden/flashwarden/internal/task"
)

// ErrPollInProgress is returned when a tick fires while the previous
// listing still runs; the caller simply skips the tick.
var ErrPollInProgress = errors.New("inventory poll in progress")

// PollError is a failed listing. Repeated marks a failure identical to
// the previous tick's, so callers can avoid re-reporting the same error
// on every tick.
type PollError struct {
	ExitCode int
	Stderr   string
	Repeated bool
}

func (e *PollError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("inventory listing failed with code %d", e.ExitCode)
	}
	return fmt.Sprintf("inventory listing failed with code %d: %s", e.ExitCode, e.Stderr)
}

// Poller invokes the inventory listing collaborator and parses its
// output. One listing at a time; the collaborator is invoked with no
// arguments and inherits PATH.
type Poller struct {
	script string
	runner *task.Runner

	mx          sync.Mutex
	lastFailure string
}

func NewPoller(script string) *Poller {
	return &Poller{
		script: script,
		runner: task.NewRunner(),
	}
}

// Poll runs one listing to completion and returns the parsed rows.
func (p *Poller) Poll(ctx context.Context) ([]model.DeviceRow, error) {
	if _, err := os.Stat(p.script); err != nil {
		return nil, fmt.Errorf("%w: %s", task.ErrCollaboratorMissing, p.script)
	}

	var stdout, stderr strings.Builder
	err := p.runner.Start(ctx, task.Command{Path: p.script},
		func(chunk string) { stdout.WriteString(chunk) },
		func(chunk string) { stderr.WriteString(chunk) },
		false,
	)
	if err != nil {
		if errors.Is(err, task.ErrTaskInProgress) {
			return nil, ErrPollInProgress
		}
		return nil, err
	}

	res := <-p.runner.ResultChan()
	if res.Err != nil || res.State == nil || !res.State.Success() {
		perr := &PollError{
			ExitCode: res.ExitCode(),
			Stderr:   strings.TrimSpace(stderr.String()),
		}
		if perr.Stderr == "" && res.Err != nil {
			perr.Stderr = res.Err.Error()
		}
		signature := fmt.Sprintf("%d\x00%s", perr.ExitCode, perr.Stderr)
		p.mx.Lock()
		perr.Repeated = signature == p.lastFailure
		p.lastFailure = signature
		p.mx.Unlock()
		return nil, perr
	}

	p.mx.Lock()
	p.lastFailure = ""
	p.mx.Unlock()
	return ParseRows(stdout.String()), nil
}
