package task

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"github.com/flashwarden/flashwarden/internal/model"
)

const authPrompt = "Press Enter to open https://github.com/login/device"

var authURLRx = regexp.MustCompile(`(https://github\.com/login/device)\b`)

// BrowserFunc opens the device-authorization URL for the user.
type BrowserFunc func(ctx context.Context, url string) error

// DefaultBrowser opens URLs with the given command, falling back to
// xdg-open.
func DefaultBrowser(command string) BrowserFunc {
	return func(ctx context.Context, url string) error {
		if command == "" {
			command = "xdg-open"
		}
		return exec.CommandContext(ctx, command, url).Start()
	}
}

type AuthEventKind int

const (
	// AuthOutput carries the combined captured output after it changed.
	AuthOutput AuthEventKind = iota
	// AuthSucceeded signals the helper exited 0; any open status
	// surface is dismissed silently.
	AuthSucceeded
	// AuthFailed carries the error text to surface to the user.
	AuthFailed
)

type AuthEvent struct {
	Kind AuthEventKind
	Text string
}

// AuthSession supervises the single interactive authentication helper.
// It watches the output for the device-authorization URL, opening the
// browser exactly once per session, and for the press-enter prompt,
// answering with a single newline exactly once per session.
type AuthSession struct {
	script      string
	openBrowser BrowserFunc
	notify      func(AuthEvent)
	runner      *Runner

	mx            sync.Mutex
	stdout        strings.Builder
	stderr        strings.Builder
	lastEmitted   string
	browserOpened bool
	enterSent     bool
}

func NewAuthSession(script string, openBrowser BrowserFunc, notify func(AuthEvent)) *AuthSession {
	if openBrowser == nil {
		openBrowser = DefaultBrowser("")
	}
	return &AuthSession{
		script:      script,
		openBrowser: openBrowser,
		notify:      notify,
		runner:      NewRunner(),
	}
}

// Start launches the helper. The helper's absence is detected before
// spawning and reported as ErrCollaboratorMissing.
func (a *AuthSession) Start(ctx context.Context) error {
	if _, err := os.Stat(a.script); err != nil {
		return fmt.Errorf("%w: %s", ErrCollaboratorMissing, a.script)
	}

	err := a.runner.Start(ctx, Command{Path: a.script},
		func(chunk string) { a.consume(ctx, chunk, false) },
		func(chunk string) { a.consume(ctx, chunk, true) },
		true,
	)
	if err != nil {
		return err
	}

	go func() {
		res := <-a.runner.ResultChan()
		a.finish(res)
	}()
	return nil
}

// Alive reports whether the helper process is still running.
func (a *AuthSession) Alive() bool {
	return a.runner.Alive()
}

func (a *AuthSession) consume(ctx context.Context, chunk string, isStderr bool) {
	a.mx.Lock()
	if isStderr {
		a.stderr.WriteString(chunk)
	} else {
		a.stdout.WriteString(chunk)
	}

	var url string
	if m := authURLRx.FindStringSubmatch(chunk); m != nil && !a.browserOpened {
		a.browserOpened = true
		url = m[1]
	}
	answer := false
	if strings.Contains(chunk, authPrompt) && !a.enterSent {
		a.enterSent = true
		answer = true
	}

	text := a.combined()
	emitted := text != "" && text != a.lastEmitted
	if emitted {
		a.lastEmitted = text
	}
	a.mx.Unlock()

	if url != "" {
		if err := a.openBrowser(ctx, url); err != nil {
			slog.WarnContext(ctx, "opening authorization url failed", "url", url, "error", err)
		}
	}
	if answer {
		if _, err := a.runner.Write([]byte("\n")); err != nil {
			slog.WarnContext(ctx, "answering authentication prompt failed", "error", err)
		}
	}
	if emitted && a.notify != nil {
		a.notify(AuthEvent{Kind: AuthOutput, Text: text})
	}
}

// combined must be called with mx held.
func (a *AuthSession) combined() string {
	snapshot := model.WorkflowRunInfo{Stdout: a.stdout.String(), Stderr: a.stderr.String()}
	return snapshot.CombinedOutput()
}

func (a *AuthSession) finish(res Result) {
	a.mx.Lock()
	stderr := strings.TrimSpace(a.stderr.String())
	a.mx.Unlock()

	if a.notify == nil {
		return
	}
	if res.State != nil && res.State.Success() {
		a.notify(AuthEvent{Kind: AuthSucceeded})
		return
	}
	text := "authentication helper failed"
	if stderr != "" {
		text += "\n\n" + stderr
	}
	a.notify(AuthEvent{Kind: AuthFailed, Text: text})
}
