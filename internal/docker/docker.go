// Package docker drives the local docker CLI. Every invocation funnels through
// the package-level commandOutput and commandStream hooks so callers can be
// exercised without a daemon.
package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// ErrNotFound reports that the referenced container, network, volume or image
// does not exist.
var ErrNotFound = errors.New("docker: no such object")

// Labels used to tag every resource created by bubble.
const (
	LabelProject = "dev.bubble.project"
	LabelSession = "dev.bubble.session"
	LabelRole    = "dev.bubble.role"
)

// Stream configures how a long-running docker invocation is wired to the
// calling process.
type Stream struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Env holds extra KEY=VALUE pairs for the docker client process. Values
	// passed this way never appear in the argument vector.
	Env []string
}

// Client issues docker CLI commands.
type Client struct {
	bin string
}

// New returns a Client that invokes the given docker binary ("docker" when
// empty).
func New(bin string) *Client {
	bin = strings.TrimSpace(bin)
	if bin == "" {
		bin = "docker"
	}
	return &Client{bin: bin}
}

// Preflight checks the docker binary is on PATH and the daemon answers.
func (c *Client) Preflight(ctx context.Context) error {
	if _, err := lookPath(c.bin); err != nil {
		return fmt.Errorf("required command %q not found in PATH", c.bin)
	}
	if _, err := commandOutput(ctx, c.bin, "version", "--format", "{{.Server.Version}}"); err != nil {
		return fmt.Errorf("docker daemon unavailable: %w", err)
	}
	return nil
}

func (c *Client) output(ctx context.Context, args ...string) (string, error) {
	out, err := commandOutput(ctx, c.bin, args...)
	if err != nil && isNotFound(err) {
		return out, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return out, err
}

func (c *Client) stream(ctx context.Context, s Stream, args ...string) (int, error) {
	return commandStream(ctx, s, c.bin, args...)
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such object"):
		return true
	case strings.Contains(msg, "no such container"):
		return true
	case strings.Contains(msg, "no such image"):
		return true
	case strings.Contains(msg, "no such network"):
		return true
	case strings.Contains(msg, "no such volume"):
		return true
	case strings.Contains(msg, "not found"):
		return true
	default:
		return false
	}
}

func labelArgs(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}
	keys := sortedKeys(labels)
	args := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		args = append(args, "--label", k+"="+labels[k])
	}
	return args
}

func splitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

var lookPath = exec.LookPath

var commandOutput = commandOutputImpl
var commandStream = commandStreamImpl

func commandOutputImpl(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%s %s: %w: %s", name, args[0], err, msg)
		}
		return "", fmt.Errorf("%s %s: %w", name, args[0], err)
	}
	return string(out), nil
}

// commandStreamImpl runs the command with the provided stdio and returns the
// child's exit status. A non-zero exit is reported through the status, not
// the error.
func commandStreamImpl(ctx context.Context, s Stream, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = s.Stdin
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	if len(s.Env) > 0 {
		cmd.Env = append(os.Environ(), s.Env...)
	}
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("%s %s: %w", name, args[0], err)
	}
	return 0, nil
}
