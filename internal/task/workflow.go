package task

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/flashwarden/flashwarden/internal/model"
	"github.com/flashwarden/flashwarden/internal/progress"
)

const runURLPrefix = "https://github.com/"
const runURLMarker = "/actions/runs/"

// workflowTask owns one workflow run: the child process, the
// accumulated output, the discovered run URL and the progress state.
// All mutation happens under mx; events are emitted outside of it.
type workflowTask struct {
	mx       sync.Mutex
	info     model.WorkflowRunInfo
	progress progress.State
	runner   *Runner
	emit     func(Event)
}

func newWorkflowTask(devicePath string, emit func(Event)) *workflowTask {
	return &workflowTask{
		info: model.WorkflowRunInfo{
			ID:         uuid.New(),
			DevicePath: devicePath,
			State:      model.StateRunning,
		},
		progress: progress.NewState(),
		runner:   NewRunner(),
		emit:     emit,
	}
}

// start spawns the workflow collaborator. The running state is entered
// optimistically before the child is confirmed launched; a missing
// collaborator fails the run without spawning anything.
func (t *workflowTask) start(ctx context.Context, script string, inputs map[string]string) {
	if _, err := os.Stat(script); err != nil {
		t.fail("workflow collaborator not found: " + script + "\n")
		return
	}

	args := []string{"--run-custom", "--device-path", t.info.DevicePath}
	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if inputs[name] == "" {
			// empty value means use the collaborator's default
			continue
		}
		args = append(args, "--input", name+"="+inputs[name])
	}

	t.emit(Event{Kind: StateChanged, Device: t.info.DevicePath, State: model.StateRunning})

	err := t.runner.Start(ctx, Command{Path: script, Args: args}, t.readStdout, t.readStderr, false)
	if err != nil {
		t.fail("starting workflow collaborator: " + err.Error() + "\n")
		return
	}

	go func() {
		res := <-t.runner.ResultChan()
		t.finish(res)
	}()
}

// fail marks the run terminally failed before or during spawn.
func (t *workflowTask) fail(reason string) {
	t.mx.Lock()
	t.info.Stderr += reason
	t.info.State = model.StateFailed
	device := t.info.DevicePath
	t.mx.Unlock()

	t.emit(Event{Kind: StateChanged, Device: device, State: model.StateFailed})
	t.emit(Event{Kind: OutputChanged, Device: device})
	t.emit(Event{Kind: Finished, Device: device})
}

func (t *workflowTask) readStdout(chunk string) {
	t.mx.Lock()
	t.info.Stdout += chunk
	if t.info.RunURL == "" {
		// the first run-link line wins, later matches never overwrite it
		for _, raw := range strings.Split(chunk, "\n") {
			line := strings.TrimSpace(raw)
			if strings.HasPrefix(line, runURLPrefix) && strings.Contains(line, runURLMarker) {
				t.info.RunURL = line
				break
			}
		}
	}
	changed, percent := t.updateProgress()
	device := t.info.DevicePath
	t.mx.Unlock()

	t.emit(Event{Kind: OutputChanged, Device: device})
	if changed {
		t.emit(Event{Kind: ProgressChanged, Device: device, Percent: percent})
	}
}

func (t *workflowTask) readStderr(chunk string) {
	t.mx.Lock()
	t.info.Stderr += chunk
	changed, percent := t.updateProgress()
	device := t.info.DevicePath
	t.mx.Unlock()

	t.emit(Event{Kind: OutputChanged, Device: device})
	if changed {
		t.emit(Event{Kind: ProgressChanged, Device: device, Percent: percent})
	}
}

// updateProgress must be called with mx held.
func (t *workflowTask) updateProgress() (bool, int) {
	next, changed := progress.Update(t.info.Stdout+"\n"+t.info.Stderr, t.progress)
	t.progress = next
	return changed, next.Percent
}

func (t *workflowTask) finish(res Result) {
	t.mx.Lock()
	code := res.ExitCode()
	t.info.ExitCode = &code
	if res.State != nil && res.State.Success() {
		t.info.State = model.StateDone
	} else {
		t.info.State = model.StateFailed
	}
	state := t.info.State
	device := t.info.DevicePath

	progressChanged := false
	percent := t.progress.Percent
	if state == model.StateDone {
		t.progress, progressChanged = progress.Finish(t.progress)
		percent = t.progress.Percent
	}
	t.mx.Unlock()

	if progressChanged {
		t.emit(Event{Kind: ProgressChanged, Device: device, Percent: percent})
	}
	t.emit(Event{Kind: StateChanged, Device: device, State: state})
	t.emit(Event{Kind: Finished, Device: device})
	t.emit(Event{Kind: OutputChanged, Device: device})
}

// snapshot returns a read-only copy of the run record.
func (t *workflowTask) snapshot() model.WorkflowRunInfo {
	t.mx.Lock()
	defer t.mx.Unlock()
	info := t.info
	if t.info.ExitCode != nil {
		code := *t.info.ExitCode
		info.ExitCode = &code
	}
	return info
}
