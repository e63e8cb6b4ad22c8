// Package session manages the primary container a user works in.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/strongdm/bubble/internal/cleanup"
	"github.com/strongdm/bubble/internal/configstore"
	"github.com/strongdm/bubble/internal/docker"
)

// WorkspaceDir is where the project directory is mounted.
const WorkspaceDir = "/workspace"

// StopGrace is how long a container may take to stop before it is killed.
const StopGrace = 5 * time.Second

// Engine is the docker surface used for the primary container.
type Engine interface {
	CreateContainer(ctx context.Context, spec docker.ContainerSpec) (string, error)
	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string, grace time.Duration) error
	RemoveContainer(ctx context.Context, id string) error
	Exec(ctx context.Context, opts docker.ExecOptions, s docker.Stream) (int, error)
}

// Tracker records created resources for teardown.
type Tracker interface {
	Track(r cleanup.Resource) error
}

// Options describe the primary container.
type Options struct {
	Name       string
	Image      string
	ProjectDir string
	UID        int
	GID        int
	Env        []string
	// Secrets are KEY=VALUE pairs kept off the docker command line.
	Secrets []string
	Network string
	// Mounts are additional read-only bind mounts.
	Mounts []configstore.Mount
	Labels map[string]string
}

// Manager drives the primary container.
type Manager struct {
	Engine  Engine
	Tracker Tracker
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	// TTY allocates a pseudo-terminal for interactive sessions.
	TTY     bool
	Logger  *log.Logger
	Verbose bool
}

func containerSpec(opts Options) docker.ContainerSpec {
	binds := []string{opts.ProjectDir + ":" + WorkspaceDir}
	for _, m := range opts.Mounts {
		if m.Mode == "" {
			m.Mode = "ro"
		}
		binds = append(binds, m.Spec())
	}
	env := append([]string{"HOME=" + configstore.ContainerHome}, opts.Env...)
	labels := make(map[string]string, len(opts.Labels)+1)
	for k, v := range opts.Labels {
		labels[k] = v
	}
	labels[docker.LabelRole] = string(cleanup.RolePrimary)

	spec := docker.ContainerSpec{
		Name:      opts.Name,
		Image:     opts.Image,
		Cmd:       []string{"sleep", "infinity"},
		User:      strconv.Itoa(opts.UID) + ":" + strconv.Itoa(opts.GID),
		WorkDir:   WorkspaceDir,
		Init:      true,
		Env:       env,
		SecretEnv: opts.Secrets,
		Binds:     binds,
		Network:   opts.Network,
		Labels:    labels,
	}
	if opts.Network != "" {
		spec.Aliases = []string{opts.Name}
	}
	return spec
}

// CreateAndStart creates the primary container, tracks it, and starts it.
func (m *Manager) CreateAndStart(ctx context.Context, opts Options) (string, error) {
	if strings.TrimSpace(opts.ProjectDir) == "" {
		return "", errors.New("project directory required")
	}
	id, err := m.Engine.CreateContainer(ctx, containerSpec(opts))
	if err != nil {
		return "", fmt.Errorf("create container %s: %w", opts.Name, err)
	}
	if err := m.Tracker.Track(cleanup.Resource{Kind: cleanup.KindContainer, Role: cleanup.RolePrimary, Name: opts.Name, ID: id}); err != nil {
		return "", err
	}
	if err := m.Engine.StartContainer(ctx, id); err != nil {
		return "", fmt.Errorf("start container %s: %w", opts.Name, err)
	}
	m.logf("Started %s", opts.Name)
	return id, nil
}

// AttachInteractive runs cmd attached to the caller's terminal and returns
// its exit status.
func (m *Manager) AttachInteractive(ctx context.Context, id string, cmd []string) (int, error) {
	return m.Engine.Exec(ctx, docker.ExecOptions{
		Container:   id,
		Cmd:         cmd,
		Interactive: true,
		TTY:         m.TTY,
		WorkDir:     WorkspaceDir,
	}, docker.Stream{Stdin: m.Stdin, Stdout: m.Stdout, Stderr: m.Stderr})
}

// ExecStreaming runs cmd without a terminal, streaming its output, and
// returns its exit status.
func (m *Manager) ExecStreaming(ctx context.Context, id string, cmd []string) (int, error) {
	return m.Engine.Exec(ctx, docker.ExecOptions{
		Container: id,
		Cmd:       cmd,
		WorkDir:   WorkspaceDir,
	}, docker.Stream{Stdout: m.Stdout, Stderr: m.Stderr})
}

// ExecSilent runs a shell command and reports only whether it succeeded.
// Output is captured and included in the error.
func (m *Manager) ExecSilent(ctx context.Context, id, command string) error {
	var out bytes.Buffer
	code, err := m.Engine.Exec(ctx, docker.ExecOptions{
		Container: id,
		Cmd:       []string{"sh", "-c", command},
		WorkDir:   WorkspaceDir,
	}, docker.Stream{Stdout: &out, Stderr: &out})
	if err != nil {
		return err
	}
	if code != 0 {
		if msg := strings.TrimSpace(out.String()); msg != "" {
			return fmt.Errorf("exit status %d: %s", code, msg)
		}
		return fmt.Errorf("exit status %d", code)
	}
	return nil
}

// StopAndRemove stops the container and force-removes it. Stop failures are
// ignored since the container may already have exited; a container that no
// longer exists counts as removed.
func (m *Manager) StopAndRemove(ctx context.Context, id string) error {
	if err := m.Engine.StopContainer(ctx, id, StopGrace); err != nil {
		m.debugf("stop %s: %v", id, err)
	}
	if err := m.Engine.RemoveContainer(ctx, id); err != nil && !errors.Is(err, docker.ErrNotFound) {
		return err
	}
	return nil
}

func (m *Manager) logf(format string, args ...any) {
	if m.Logger != nil {
		m.Logger.Printf(format, args...)
	}
}

func (m *Manager) debugf(format string, args ...any) {
	if m.Verbose && m.Logger != nil {
		m.Logger.Printf(format, args...)
	}
}
