package options

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/flashwarden/flashwarden/internal/task"
)

// FetchError is a failed schema fetch. Repeated marks an error text
// identical to the previous attempt's, so callers present it only once.
type FetchError struct {
	ExitCode int
	Stderr   string
	Repeated bool
}

func (e *FetchError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("loading workflow options failed with code %d", e.ExitCode)
	}
	return fmt.Sprintf("loading workflow options failed with code %d: %s", e.ExitCode, e.Stderr)
}

// Fetcher retrieves the schema document by invoking the workflow
// collaborator with --show-options. Identical consecutive payloads are
// flagged so callers can skip rebuilding anything derived from them.
type Fetcher struct {
	script string
	runner *task.Runner

	mx          sync.Mutex
	lastPayload string
	seenPayload bool
	lastFailure string
}

func NewFetcher(script string) *Fetcher {
	return &Fetcher{
		script: script,
		runner: task.NewRunner(),
	}
}

// Fetch runs one --show-options invocation to completion. changed is
// false when the returned document equals the previous successful one.
func (f *Fetcher) Fetch(ctx context.Context) (text string, changed bool, err error) {
	if _, err := os.Stat(f.script); err != nil {
		return "", false, fmt.Errorf("%w: %s", task.ErrCollaboratorMissing, f.script)
	}

	var stdout, stderr strings.Builder
	err = f.runner.Start(ctx, task.Command{Path: f.script, Args: []string{"--show-options"}},
		func(chunk string) { stdout.WriteString(chunk) },
		func(chunk string) { stderr.WriteString(chunk) },
		false,
	)
	if err != nil {
		if errors.Is(err, task.ErrTaskInProgress) {
			return "", false, task.ErrTaskInProgress
		}
		return "", false, err
	}

	res := <-f.runner.ResultChan()
	if res.Err != nil || res.State == nil || !res.State.Success() {
		ferr := &FetchError{
			ExitCode: res.ExitCode(),
			Stderr:   strings.TrimSpace(stderr.String()),
		}
		if ferr.Stderr == "" && res.Err != nil {
			ferr.Stderr = res.Err.Error()
		}
		f.mx.Lock()
		ferr.Repeated = ferr.Stderr == f.lastFailure && f.lastFailure != ""
		f.lastFailure = ferr.Stderr
		f.mx.Unlock()
		return "", false, ferr
	}

	payload := strings.TrimRight(stdout.String(), "\r\n \t")
	f.mx.Lock()
	changed = !f.seenPayload || payload != f.lastPayload
	f.lastPayload = payload
	f.seenPayload = true
	f.lastFailure = ""
	f.mx.Unlock()
	return payload, changed, nil
}
