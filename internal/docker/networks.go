package docker

import (
	"context"
	"errors"
	"strings"
)

// NetworkNames lists networks whose name contains filter. Docker's name filter
// matches substrings, so callers needing exact matches must check themselves.
func (c *Client) NetworkNames(ctx context.Context, filter string) ([]string, error) {
	out, err := c.output(ctx, "network", "ls", "--filter", "name="+filter, "--format", "{{.Name}}")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// CreateNetwork creates a bridge network and returns its id.
func (c *Client) CreateNetwork(ctx context.Context, name string, labels map[string]string) (string, error) {
	args := []string{"network", "create", "--driver", "bridge"}
	args = append(args, labelArgs(labels)...)
	args = append(args, name)
	out, err := c.output(ctx, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RemoveNetwork removes a network by name or id. ErrNotFound is returned when
// it does not exist.
func (c *Client) RemoveNetwork(ctx context.Context, name string) error {
	_, err := c.output(ctx, "network", "rm", name)
	return err
}

// CreateVolume creates a named volume. Creating a volume that already exists
// is not an error.
func (c *Client) CreateVolume(ctx context.Context, name string, labels map[string]string) error {
	args := []string{"volume", "create"}
	args = append(args, labelArgs(labels)...)
	args = append(args, name)
	_, err := c.output(ctx, args...)
	return err
}

// VolumeNames lists volumes whose name contains filter.
func (c *Client) VolumeNames(ctx context.Context, filter string) ([]string, error) {
	out, err := c.output(ctx, "volume", "ls", "--filter", "name="+filter, "--format", "{{.Name}}")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// RemoveVolume removes a named volume.
func (c *Client) RemoveVolume(ctx context.Context, name string) error {
	_, err := c.output(ctx, "volume", "rm", name)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
