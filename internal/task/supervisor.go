package task

import (
	"context"
	"log/slog"
	"sync"

	"github.com/flashwarden/flashwarden/internal/model"
)

// Supervisor is the registry of workflow runs, one slot per device key.
// It owns the WorkflowRunInfo of every run it started, keeps the last
// published state and percentage per device, and publishes typed events
// on a single stream consumed by one dispatcher loop.
type Supervisor struct {
	script string

	mx      sync.Mutex
	runs    map[string]*workflowTask
	states  map[string]model.RunState
	percent map[string]int

	events chan Event
}

func NewSupervisor(script string) *Supervisor {
	return &Supervisor{
		script:  script,
		runs:    make(map[string]*workflowTask),
		states:  make(map[string]model.RunState),
		percent: make(map[string]int),
		events:  make(chan Event, 64),
	}
}

// Events returns the stream of run notifications. A consumer must drain
// it while runs are active.
func (s *Supervisor) Events() <-chan Event {
	return s.events
}

// Active reports whether key has a workflow run with a live process.
// This is the narrow capability the inventory reconciler consults
// before dropping a vanished device.
func (s *Supervisor) Active(key string) bool {
	s.mx.Lock()
	t := s.runs[key]
	s.mx.Unlock()
	return t != nil && t.runner.Alive()
}

// StartRun starts a workflow run for the given device key. At most one
// run per key may be active: when the key is busy the existing run's
// snapshot is returned together with ErrRunInProgress and no second
// process is created. A finished record for the key is replaced by a
// brand-new run.
func (s *Supervisor) StartRun(ctx context.Context, key string, inputs map[string]string) (model.WorkflowRunInfo, error) {
	s.mx.Lock()
	if prev := s.runs[key]; prev != nil && prev.runner.Alive() {
		s.mx.Unlock()
		return prev.snapshot(), ErrRunInProgress
	}

	t := newWorkflowTask(key, s.publish)
	s.runs[key] = t
	s.states[key] = model.StateRunning
	delete(s.percent, key)
	s.mx.Unlock()

	t.start(ctx, s.script, inputs)
	return t.snapshot(), nil
}

// Snapshot returns the current run record for key, covering both active
// runs and retained history.
func (s *Supervisor) Snapshot(key string) (model.WorkflowRunInfo, bool) {
	s.mx.Lock()
	t := s.runs[key]
	s.mx.Unlock()
	if t == nil {
		return model.WorkflowRunInfo{}, false
	}
	return t.snapshot(), true
}

// StateOf returns the last published state for key.
func (s *Supervisor) StateOf(key string) (model.RunState, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	state, ok := s.states[key]
	return state, ok
}

// ProgressOf returns the last published percentage for key.
func (s *Supervisor) ProgressOf(key string) (int, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	percent, ok := s.percent[key]
	return percent, ok
}

// Forget releases every piece of state held for the given keys: run
// history, cached state and percentage. Callers only pass keys the
// reconciler confirmed to have no active run; a straggler process is
// killed as a safety measure.
func (s *Supervisor) Forget(ctx context.Context, keys []string) {
	for _, key := range keys {
		s.mx.Lock()
		t := s.runs[key]
		delete(s.runs, key)
		delete(s.states, key)
		delete(s.percent, key)
		s.mx.Unlock()

		if t != nil && t.runner.Alive() {
			slog.WarnContext(ctx, "forgetting device with a live process, killing it", "device", key)
			t.runner.Kill()
		}
	}
}

func (s *Supervisor) publish(ev Event) {
	s.mx.Lock()
	switch ev.Kind {
	case StateChanged:
		s.states[ev.Device] = ev.State
		if ev.State == model.StateDone {
			s.percent[ev.Device] = 100
		}
	case ProgressChanged:
		s.percent[ev.Device] = ev.Percent
	}
	s.mx.Unlock()

	s.events <- ev
}
