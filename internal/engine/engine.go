// Package engine wires the poller, the reconciler and the task
// supervisors into one event loop. All shared state is mutated by that
// single loop; external work happens in collaborator processes whose
// output and exit events are delivered as typed values on channels.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gocron "github.com/go-co-op/gocron/v2"

	"github.com/flashwarden/flashwarden/internal/inventory"
	"github.com/flashwarden/flashwarden/internal/model"
	"github.com/flashwarden/flashwarden/internal/task"
)

type Engine struct {
	cfg        model.Config
	sup        *task.Supervisor
	poller     *inventory.Poller
	auth       *task.AuthSession
	authEvents chan task.AuthEvent
	ticks      chan struct{}

	mx   sync.Mutex
	rows []model.DeviceRow
}

func New(cfg model.Config) (*Engine, error) {
	if cfg.Version != 0 {
		return nil, fmt.Errorf("config version %d is not supported, expected 0", cfg.Version)
	}

	e := &Engine{
		cfg:    cfg,
		sup:    task.NewSupervisor(cfg.Collaborators.Workflow),
		poller: inventory.NewPoller(cfg.Collaborators.Inventory),
		ticks:  make(chan struct{}, 1),
	}

	if cfg.Auth != nil && model.Get(cfg.Auth.Enabled) && cfg.Collaborators.Auth != "" {
		e.authEvents = make(chan task.AuthEvent, 8)
		browser := task.DefaultBrowser(model.Get(cfg.Auth.Browser))
		e.auth = task.NewAuthSession(cfg.Collaborators.Auth, browser, func(ev task.AuthEvent) {
			e.authEvents <- ev
		})
	}

	return e, nil
}

// Supervisor exposes the run registry so callers can start workflow
// runs and read snapshots.
func (e *Engine) Supervisor() *task.Supervisor {
	return e.sup
}

// Devices returns a copy of the last accepted device rows.
func (e *Engine) Devices() []model.DeviceRow {
	e.mx.Lock()
	defer e.mx.Unlock()
	return append([]model.DeviceRow(nil), e.rows...)
}

// Do runs the engine event loop. It multiplexes four concerns:
//  1. Poll ticks - one inventory listing and reconciliation per tick.
//  2. Workflow run events - logged; state caches live in the supervisor.
//  3. Auth session events - browser/prompt handling happens inside the
//     session, terminal outcomes are surfaced here.
//  4. Context cancellation - terminates the loop; child processes die
//     with the context.
//
// In oneshot mode a single poll cycle runs and the loop returns.
func (e *Engine) Do(ctx context.Context) error {
	slog.DebugContext(ctx, "starting the engine")

	scheduler, err := e.newScheduler()
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			slog.ErrorContext(ctx, "shutting down gocron has failed", "error", err)
		}
	}()

	if e.auth != nil {
		if err := e.auth.Start(ctx); err != nil {
			// fatal for the auth session only, reported once
			slog.ErrorContext(ctx, "starting authentication session failed", "error", err)
		}
	}

	e.tick(ctx)
	if e.cfg.Service.Mode == model.ServiceModeOneshot {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.ticks:
			e.tick(ctx)
		case ev := <-e.sup.Events():
			e.handleRunEvent(ctx, ev)
		case ev := <-e.authEvents:
			e.handleAuthEvent(ctx, ev)
		}
	}
}

func (e *Engine) newScheduler() (gocron.Scheduler, error) {
	var def gocron.JobDefinition
	poll := e.cfg.Poll
	switch {
	case poll != nil && poll.Cron != "":
		if err := model.ParseCron(poll.Cron); err != nil {
			return nil, fmt.Errorf("parsing poll.cron: %w", err)
		}
		def = gocron.CronJob(poll.Cron, false)
	case poll != nil && poll.Every != "":
		d, err := model.ParseEvery(poll.Every)
		if err != nil {
			return nil, fmt.Errorf("parsing poll.every: %w", err)
		}
		def = gocron.DurationJob(d)
	default:
		def = gocron.DurationJob(time.Second)
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		def,
		gocron.NewTask(func() {
			// drop the tick when the loop is still busy with the last one
			select {
			case e.ticks <- struct{}{}:
			default:
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing gocron job: %w", err)
	}
	return s, nil
}

func (e *Engine) tick(ctx context.Context) {
	observed, err := e.poller.Poll(ctx)
	if err != nil {
		if errors.Is(err, inventory.ErrPollInProgress) {
			return
		}
		var perr *inventory.PollError
		if errors.As(err, &perr) && perr.Repeated {
			slog.DebugContext(ctx, "inventory poll failed again", "error", perr)
			return
		}
		slog.ErrorContext(ctx, "inventory poll failed", "error", err)
		return
	}

	e.mx.Lock()
	previous := e.rows
	e.mx.Unlock()

	next, forget, changed := inventory.Reconcile(previous, observed, e.sup.Active)
	if len(forget) > 0 {
		slog.InfoContext(ctx, "forgetting removed devices", "devices", forget)
		e.sup.Forget(ctx, forget)
	}
	if !changed {
		return
	}

	e.mx.Lock()
	e.rows = next
	e.mx.Unlock()

	slog.InfoContext(ctx, "device inventory updated", "count", len(next))
	for _, row := range next {
		slog.DebugContext(ctx, "device", "row", row.Label())
	}
}

func (e *Engine) handleRunEvent(ctx context.Context, ev task.Event) {
	switch ev.Kind {
	case task.StateChanged:
		slog.InfoContext(ctx, "workflow state changed", "device", ev.Device, "state", ev.State, "status", ev.State.Label())
		if ev.State == model.StateFailed {
			if snap, ok := e.sup.Snapshot(ev.Device); ok {
				slog.ErrorContext(ctx, "workflow failed", "device", ev.Device, "stderr", snap.Stderr)
			}
		}
	case task.ProgressChanged:
		slog.InfoContext(ctx, "workflow progress", "device", ev.Device, "percent", ev.Percent)
	case task.OutputChanged:
		slog.DebugContext(ctx, "workflow output changed", "device", ev.Device)
	case task.Finished:
		if snap, ok := e.sup.Snapshot(ev.Device); ok && snap.RunURL != "" {
			slog.InfoContext(ctx, "workflow finished", "device", ev.Device, "run_url", snap.RunURL)
		}
	}
}

func (e *Engine) handleAuthEvent(ctx context.Context, ev task.AuthEvent) {
	switch ev.Kind {
	case task.AuthOutput:
		slog.DebugContext(ctx, "authentication output changed")
	case task.AuthSucceeded:
		slog.InfoContext(ctx, "authentication succeeded")
	case task.AuthFailed:
		slog.ErrorContext(ctx, "authentication failed", "output", ev.Text)
	}
}
