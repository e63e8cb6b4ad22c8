package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/strongdm/bubble/internal/docker"
)

// ErrNotReady is matched by every ReadinessError.
var ErrNotReady = errors.New("service not ready")

// Policy bounds readiness polling.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultPolicy allows roughly one minute per service.
var DefaultPolicy = Policy{MaxAttempts: 30, Delay: 2 * time.Second}

// ReadinessError reports a probe that never succeeded.
type ReadinessError struct {
	Container string
	Attempts  int
	Last      error
}

func (e *ReadinessError) Error() string {
	msg := fmt.Sprintf("container %s not ready after %d attempts", e.Container, e.Attempts)
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

func (e *ReadinessError) Is(target error) bool { return target == ErrNotReady }

func (e *ReadinessError) Unwrap() error { return e.Last }

// Execer runs a command inside a container.
type Execer interface {
	Exec(ctx context.Context, opts docker.ExecOptions, s docker.Stream) (int, error)
}

// Prober polls a probe command until it exits zero.
type Prober struct {
	Engine Execer
	// Sleep waits between attempts; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnAttempt, when set, observes every probe execution.
	OnAttempt func(container string, attempt int, ready bool)
}

// WaitReady runs probe in container at most policy.MaxAttempts times,
// sleeping policy.Delay between attempts (not after the last).
func (p *Prober) WaitReady(ctx context.Context, container string, probe []string, policy Policy) error {
	if len(probe) == 0 {
		return nil
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var last error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		code, err := p.Engine.Exec(ctx, docker.ExecOptions{Container: container, Cmd: probe},
			docker.Stream{Stdout: io.Discard, Stderr: io.Discard})
		ready := err == nil && code == 0
		if p.OnAttempt != nil {
			p.OnAttempt(container, attempt, ready)
		}
		if ready {
			return nil
		}
		if err != nil {
			last = err
		} else {
			last = fmt.Errorf("probe exited with status %d", code)
		}
		if attempt == policy.MaxAttempts {
			break
		}
		if err := sleep(ctx, policy.Delay); err != nil {
			return err
		}
	}
	return &ReadinessError{Container: container, Attempts: policy.MaxAttempts, Last: last}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
