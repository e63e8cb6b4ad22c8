// Package hooks runs user-configured shell commands inside the primary
// container. Failures are reported as warnings and never abort a session.
package hooks

import (
	"context"
	"log"
	"strings"

	"github.com/strongdm/bubble/internal/configstore"
)

// Execer runs one shell command in a container.
type Execer interface {
	ExecSilent(ctx context.Context, id, command string) error
}

// Runner executes hooks for a single container.
type Runner struct {
	Exec      Execer
	Container string
	Hooks     configstore.Hooks
	Logger    *log.Logger
}

// PostStart runs the post_start hooks and returns how many failed.
func (r *Runner) PostStart(ctx context.Context) int {
	return r.run(ctx, "post_start", r.Hooks.PostStart)
}

// PreStop runs the pre_stop hooks and returns how many failed.
func (r *Runner) PreStop(ctx context.Context) int {
	return r.run(ctx, "pre_stop", r.Hooks.PreStop)
}

func (r *Runner) run(ctx context.Context, phase string, commands []string) int {
	failed := 0
	for _, cmd := range commands {
		cmd = strings.TrimSpace(cmd)
		if cmd == "" {
			continue
		}
		r.logf("Running %s hook: %s", phase, cmd)
		if err := r.Exec.ExecSilent(ctx, r.Container, cmd); err != nil {
			r.logf("Warning: %s hook %q failed: %v", phase, cmd, err)
			failed++
		}
	}
	return failed
}

func (r *Runner) logf(format string, args ...any) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}
