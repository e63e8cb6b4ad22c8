// Package network ensures the per-session bridge network exists.
package network

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/strongdm/bubble/internal/docker"
)

// Engine is the subset of the docker client used for networks.
type Engine interface {
	NetworkNames(ctx context.Context, filter string) ([]string, error)
	CreateNetwork(ctx context.Context, name string, labels map[string]string) (string, error)
	RemoveNetwork(ctx context.Context, name string) error
}

// Manager creates and removes networks.
type Manager struct {
	Engine Engine
	Labels map[string]string
}

// Ensure creates the named network unless one with exactly that name exists.
// created reports whether this call made it.
func (m *Manager) Ensure(ctx context.Context, name string) (created bool, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, errors.New("network name required")
	}
	names, err := m.Engine.NetworkNames(ctx, name)
	if err != nil {
		return false, fmt.Errorf("list networks: %w", err)
	}
	if ExactMatch(names, name) {
		return false, nil
	}
	if _, err := m.Engine.CreateNetwork(ctx, name, m.Labels); err != nil {
		return false, fmt.Errorf("create network %s: %w", name, err)
	}
	return true, nil
}

// Remove deletes the named network. A missing network is not an error.
func (m *Manager) Remove(ctx context.Context, name string) error {
	err := m.Engine.RemoveNetwork(ctx, name)
	if err == nil || errors.Is(err, docker.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("remove network %s: %w", name, err)
}

// ExactMatch reports whether want appears verbatim in names.
func ExactMatch(names []string, want string) bool {
	for _, n := range names {
		if strings.TrimSpace(n) == want {
			return true
		}
	}
	return false
}
