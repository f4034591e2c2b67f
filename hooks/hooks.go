// Package hooks runs the declaratively specified commands fired at each
// phase of a convergence run, gated by explicit opt-in.
package hooks

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/bluet/drift/config"
)

const pollInterval = 100 * time.Millisecond
const defaultTimeout = 60 * time.Second

// Phase identifies one of the fixed points a hook can fire at.
type Phase string

const (
	PhasePreSync     Phase = "pre_sync"
	PhasePostSync    Phase = "post_sync"
	PhasePreInstall  Phase = "pre_install"
	PhasePostInstall Phase = "post_install"
	PhasePreRemove   Phase = "pre_remove"
	PhasePostRemove  Phase = "post_remove"
	PhaseOnSuccess   Phase = "on_success"
	PhaseOnFailure   Phase = "on_failure"
)

// ValidationError rejects a hook before it is ever run.
type ValidationError struct {
	Command string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid hook command %q: %s", e.Command, e.Reason)
}

// TimeoutError records a hook that exceeded its ceiling and was killed.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("hook %q timed out after %s", e.Command, e.Timeout)
}

var allowedChars = regexp.MustCompile(`^[a-zA-Z0-9_\-.\s/:]+$`)

// Validate implements §4.8's command validation: reject embedded sudo,
// reject characters outside the safelist, reject path traversal.
func Validate(command string) error {
	if strings.Contains(command, "..") {
		return &ValidationError{Command: command, Reason: "path traversal is not allowed"}
	}
	if !allowedChars.MatchString(command) {
		return &ValidationError{Command: command, Reason: "contains characters outside the allowed set"}
	}
	fields := strings.Fields(command)
	for _, f := range fields {
		if f == "sudo" {
			return &ValidationError{Command: command, Reason: "privilege must be declared via run_as, not embedded sudo"}
		}
	}
	return nil
}

// Gate decides whether hooks should actually execute this run, per the
// dual opt-in: the CLI flag and config policy must both agree, and
// policy.forbid_hooks always wins.
type Gate struct {
	CLIFlag bool
	Policy  config.Policy
	Enabled bool // experimental["enable-hooks"]
}

// Allowed reports whether hooks may execute.
func (g Gate) Allowed() bool {
	if g.Policy.ForbidHooks {
		return false
	}
	return g.CLIFlag && g.Enabled
}

// Runner executes hooks for one phase, honoring run_as and error_behavior.
type Runner struct {
	PrivilegeWrapper []string // e.g. {"sudo"}; used only for run_as=root
	Timeout          time.Duration
}

// NewRunner returns a Runner using the platform default privilege wrapper
// and the spec's default timeout ceiling.
func NewRunner() *Runner {
	return &Runner{PrivilegeWrapper: []string{"sudo"}, Timeout: defaultTimeout}
}

// Outcome records what happened when a single hook ran.
type Outcome struct {
	Hook    config.Hook
	Err     error
	Skipped bool
	Aborted bool
}

// Run fires every hook in hooks that matches phase (and, if pkg is
// non-empty, either has no package scope or matches pkg exactly).
// It stops and returns an error the moment a required hook fails; warn
// and ignore hooks never halt the run.
func (r *Runner) Run(ctx context.Context, hooksList []config.Hook, phase Phase, pkg string) ([]Outcome, error) {
	var outcomes []Outcome
	for _, h := range hooksList {
		if normalizePhase(h.Phase) != string(phase) {
			continue
		}
		if h.Package != "" && h.Package != pkg {
			continue
		}

		err := r.runOne(ctx, h)
		outcomes = append(outcomes, Outcome{Hook: h, Err: err})

		if err != nil && h.ErrorBehavior == "required" {
			return outcomes, fmt.Errorf("required hook failed: %w", err)
		}
	}
	return outcomes, nil
}

func normalizePhase(phase string) string {
	return strings.ReplaceAll(phase, "-", "_")
}

func (r *Runner) runOne(ctx context.Context, h config.Hook) error {
	if err := Validate(h.Command); err != nil {
		return err
	}

	words, err := shlex.Split(h.Command)
	if err != nil || len(words) == 0 {
		return &ValidationError{Command: h.Command, Reason: "could not be tokenized"}
	}

	argv := words
	if h.RunAs == "root" {
		argv = append(append([]string{}, r.PrivilegeWrapper...), words...)
	}

	timeout := r.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	deadline := time.Now().Add(timeout)
	for {
		select {
		case err := <-done:
			return err
		default:
		}
		if time.Now().After(deadline) {
			_ = cmd.Process.Kill()
			<-done
			return &TimeoutError{Command: h.Command, Timeout: timeout}
		}
		time.Sleep(pollInterval)
	}
}
