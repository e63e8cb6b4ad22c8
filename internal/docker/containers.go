package docker

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ContainerSpec describes a container to create.
type ContainerSpec struct {
	Name    string
	Image   string
	Cmd     []string
	User    string
	WorkDir string
	Init    bool
	// Env entries are KEY=VALUE pairs placed on the command line.
	Env []string
	// SecretEnv entries are KEY=VALUE pairs handed to the container through
	// the docker client's environment; only KEY reaches the argument vector.
	SecretEnv []string
	// Binds are -v specifications (host:container[:mode] or volume:path).
	Binds   []string
	Network string
	Aliases []string
	Labels  map[string]string
}

// ContainerSummary is one row of docker ps output.
type ContainerSummary struct {
	ID    string
	Names []string
}

// ExecOptions configures docker exec.
type ExecOptions struct {
	Container   string
	Cmd         []string
	Interactive bool
	TTY         bool
	WorkDir     string
}

func createArgs(spec ContainerSpec) []string {
	args := []string{"create", "--name", spec.Name}
	if spec.Init {
		args = append(args, "--init")
	}
	if spec.User != "" {
		args = append(args, "--user", spec.User)
	}
	if spec.WorkDir != "" {
		args = append(args, "-w", spec.WorkDir)
	}
	if spec.Network != "" {
		args = append(args, "--network", spec.Network)
		for _, alias := range spec.Aliases {
			args = append(args, "--network-alias", alias)
		}
	}
	for _, bind := range spec.Binds {
		args = append(args, "-v", bind)
	}
	for _, env := range spec.Env {
		args = append(args, "-e", env)
	}
	for _, env := range spec.SecretEnv {
		args = append(args, "-e", envKey(env))
	}
	args = append(args, labelArgs(spec.Labels)...)
	args = append(args, spec.Image)
	args = append(args, spec.Cmd...)
	return args
}

func execArgs(opts ExecOptions) []string {
	args := []string{"exec"}
	if opts.Interactive {
		args = append(args, "-i")
	}
	if opts.TTY {
		args = append(args, "-t")
	}
	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}
	args = append(args, opts.Container)
	args = append(args, opts.Cmd...)
	return args
}

func envKey(spec string) string {
	if idx := strings.Index(spec, "="); idx >= 0 {
		return spec[:idx]
	}
	return spec
}

// CreateContainer creates (but does not start) a container and returns its id.
func (c *Client) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	if strings.TrimSpace(spec.Name) == "" || strings.TrimSpace(spec.Image) == "" {
		return "", fmt.Errorf("container name and image required")
	}
	var stdout, stderr bytes.Buffer
	code, err := c.stream(ctx, Stream{Stdout: &stdout, Stderr: &stderr, Env: spec.SecretEnv}, createArgs(spec)...)
	if err != nil {
		return "", err
	}
	if code != 0 {
		msg := strings.TrimSpace(stderr.String())
		err := fmt.Errorf("docker create %s: exit status %d: %s", spec.Name, code, msg)
		if isNotFound(err) {
			return "", fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return "", err
	}
	id := strings.TrimSpace(stdout.String())
	if id == "" {
		return "", fmt.Errorf("docker create %s: empty container id", spec.Name)
	}
	return id, nil
}

// StartContainer starts a created container.
func (c *Client) StartContainer(ctx context.Context, id string) error {
	_, err := c.output(ctx, "start", id)
	return err
}

// StopContainer asks the container to stop, killing it after grace.
func (c *Client) StopContainer(ctx context.Context, id string, grace time.Duration) error {
	seconds := int(grace / time.Second)
	_, err := c.output(ctx, "stop", "-t", strconv.Itoa(seconds), id)
	return err
}

// RemoveContainer force-removes a container.
func (c *Client) RemoveContainer(ctx context.Context, id string) error {
	_, err := c.output(ctx, "rm", "-f", id)
	return err
}

// ListContainers lists all containers (running or not) whose name contains
// filter.
func (c *Client) ListContainers(ctx context.Context, filter string) ([]ContainerSummary, error) {
	out, err := c.output(ctx, "ps", "-a", "--no-trunc", "--filter", "name="+filter, "--format", "{{.ID}}\t{{.Names}}")
	if err != nil {
		return nil, err
	}
	var result []ContainerSummary
	for _, line := range splitLines(out) {
		id, names, _ := strings.Cut(line, "\t")
		summary := ContainerSummary{ID: strings.TrimSpace(id)}
		for _, n := range strings.Split(names, ",") {
			if n = strings.TrimSpace(n); n != "" {
				summary.Names = append(summary.Names, n)
			}
		}
		result = append(result, summary)
	}
	return result, nil
}

// Exec runs a command inside a running container wired to the given stdio
// and returns the command's exit status.
func (c *Client) Exec(ctx context.Context, opts ExecOptions, s Stream) (int, error) {
	if strings.TrimSpace(opts.Container) == "" {
		return -1, fmt.Errorf("exec: container required")
	}
	if len(opts.Cmd) == 0 {
		return -1, fmt.Errorf("exec: command required")
	}
	return c.stream(ctx, s, execArgs(opts)...)
}
