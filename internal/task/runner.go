package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	ErrNotStarted          = errors.New("task not started")
	ErrTaskInProgress      = errors.New("task in progress")
	ErrCollaboratorMissing = errors.New("collaborator not found")
	ErrRunInProgress       = errors.New("workflow run in progress")
)

// StreamFunc receives every chunk of one output stream as it arrives.
type StreamFunc func(chunk string)

// Command describes one collaborator invocation. The child inherits the
// caller's environment, PATH included.
type Command struct {
	Path string
	Args []string
}

type Result struct {
	Path    string
	Args    []string
	Started time.Time
	Stopped time.Time
	State   *os.ProcessState
	Err     error
}

// ExitCode returns the process exit code, or -1 when the process never
// reached a wait state.
func (r Result) ExitCode() int {
	if r.State == nil {
		return -1
	}
	return r.State.ExitCode()
}

// Runner is a thin wrapper around os/exec for a single collaborator
// process. It streams stdout and stderr incrementally through the given
// StreamFuncs, optionally exposes the child's stdin, and delivers one
// Result per execution. Only one process may be active at a time.
type Runner struct {
	mx     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	result Result
	waits  []chan Result
}

func NewRunner() *Runner {
	return &Runner{
		result: Result{Err: ErrNotStarted},
	}
}

// Start spawns the process; it ensures only a single instance is active,
// returning ErrTaskInProgress otherwise. It does NOT wait for the
// command to finish, use ResultChan for that. Output chunks are
// forwarded from internal goroutines; withStdin opens a pipe usable via
// Write for interactive collaborators.
func (r *Runner) Start(ctx context.Context, proto Command, onStdout, onStderr StreamFunc, withStdin bool) error {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.cmd != nil {
		return ErrTaskInProgress
	}

	r.result = Result{
		Path: proto.Path,
		Args: append([]string(nil), proto.Args...),
	}

	cmd := exec.CommandContext(ctx, proto.Path, proto.Args...)
	cmd.Env = os.Environ()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if withStdin {
		r.stdin, err = cmd.StdinPipe()
		if err != nil {
			return err
		}
	}

	r.result.Started = time.Now().UTC()
	if err := cmd.Start(); err != nil {
		r.result.Stopped = time.Now().UTC()
		r.result.Err = err
		r.stdin = nil
		return err
	}
	r.cmd = cmd

	var readers errgroup.Group
	readers.Go(func() error {
		r.pump(ctx, stdout, onStdout)
		return nil
	})
	readers.Go(func() error {
		r.pump(ctx, stderr, onStderr)
		return nil
	})
	go r.wait(cmd, &readers)
	return nil
}

func (r *Runner) pump(ctx context.Context, stream io.Reader, fn StreamFunc) {
	buf := make([]byte, 4096)
	for {
		n, err := stream.Read(buf)
		if n > 0 && fn != nil {
			fn(string(buf[:n]))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				slog.DebugContext(ctx, "collaborator stream closed", "error", err)
			}
			return
		}
	}
}

func (r *Runner) wait(cmd *exec.Cmd, readers *errgroup.Group) {
	// drain both pipes first so buffers are complete before the result
	// is published
	_ = readers.Wait() // pumps do not return an error
	err := cmd.Wait()
	stopped := time.Now().UTC()

	r.mx.Lock()
	defer r.mx.Unlock()
	r.result.Stopped = stopped
	r.result.State = cmd.ProcessState
	r.result.Err = err
	r.cmd = nil
	r.stdin = nil
	waits := r.waits
	r.waits = nil
	for _, ch := range waits {
		ch <- r.result
		close(ch)
	}
}

// Write sends data to the child's stdin. The Runner must have been
// started with withStdin.
func (r *Runner) Write(p []byte) (int, error) {
	r.mx.Lock()
	stdin := r.stdin
	r.mx.Unlock()
	if stdin == nil {
		return 0, ErrNotStarted
	}
	return stdin.Write(p)
}

// Alive reports whether the underlying process is still running.
func (r *Runner) Alive() bool {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.cmd != nil
}

// Kill forcibly terminates the underlying process if one is running.
func (r *Runner) Kill() {
	r.mx.Lock()
	cmd := r.cmd
	r.mx.Unlock()
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// ResultChan returns a channel delivering the result of the running
// process. The channel is closed once the process ends. When the
// process already ended the result is delivered immediately.
func (r *Runner) ResultChan() <-chan Result {
	ch := make(chan Result, 1)
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.cmd == nil && !r.result.Stopped.IsZero() {
		ch <- r.result
		close(ch)
		return ch
	}
	r.waits = append(r.waits, ch)
	return ch
}

// LastResult returns the last command result, or a result carrying
// ErrNotStarted when nothing ran yet.
func (r *Runner) LastResult() Result {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.result
}
