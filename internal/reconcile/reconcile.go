// Package reconcile removes containers and networks left behind by a session
// that exited without cleaning up.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/strongdm/bubble/internal/docker"
)

// Engine is the subset of the docker client the reconciler needs.
type Engine interface {
	ListContainers(ctx context.Context, filter string) ([]docker.ContainerSummary, error)
	RemoveContainer(ctx context.Context, id string) error
	NetworkNames(ctx context.Context, filter string) ([]string, error)
	RemoveNetwork(ctx context.Context, name string) error
}

// Report lists what a reconcile pass removed.
type Report struct {
	Containers []string
	Networks   []string
	Failed     []string
}

// MatchesPrefix reports whether name belongs to prefix: it is either the
// prefix itself or the prefix followed by '-'. A leading '/' (as docker
// prints container names) is ignored. "bubble-app" therefore matches
// "bubble-app-mysql" but not "bubble-apprentice".
func MatchesPrefix(name, prefix string) bool {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if prefix == "" {
		return false
	}
	return name == prefix || strings.HasPrefix(name, prefix+"-")
}

// Reconciler force-removes stale resources under one name prefix.
type Reconciler struct {
	Engine Engine
	Logger *log.Logger
}

// Reconcile removes every container, then every network, whose name matches
// prefix. Removal failures are logged and recorded in the report but never
// returned; only a failure to list is an error.
func (r *Reconciler) Reconcile(ctx context.Context, prefix string) (Report, error) {
	var report Report

	containers, err := r.Engine.ListContainers(ctx, prefix)
	if err != nil {
		return report, fmt.Errorf("list containers: %w", err)
	}
	for _, c := range containers {
		name, ok := matchingName(c.Names, prefix)
		if !ok {
			continue
		}
		r.logf("Removing stale container %s", name)
		if err := r.Engine.RemoveContainer(ctx, c.ID); err != nil {
			r.logf("Warning: failed to remove stale container %s: %v", name, err)
			report.Failed = append(report.Failed, name)
			continue
		}
		report.Containers = append(report.Containers, name)
	}

	networks, err := r.Engine.NetworkNames(ctx, prefix)
	if err != nil {
		return report, fmt.Errorf("list networks: %w", err)
	}
	for _, name := range networks {
		if !MatchesPrefix(name, prefix) {
			continue
		}
		r.logf("Removing stale network %s", name)
		if err := r.Engine.RemoveNetwork(ctx, name); err != nil {
			r.logf("Warning: failed to remove stale network %s: %v", name, err)
			report.Failed = append(report.Failed, name)
			continue
		}
		report.Networks = append(report.Networks, name)
	}
	return report, nil
}

// RemoveExact removes the container named exactly name, if one exists.
// Networks and containers that merely share the name as a prefix are left
// alone, so it is safe to call with a user-chosen container name.
func (r *Reconciler) RemoveExact(ctx context.Context, name string) (Report, error) {
	var report Report

	containers, err := r.Engine.ListContainers(ctx, name)
	if err != nil {
		return report, fmt.Errorf("list containers: %w", err)
	}
	for _, c := range containers {
		if !hasName(c.Names, name) {
			continue
		}
		r.logf("Removing stale container %s", name)
		if err := r.Engine.RemoveContainer(ctx, c.ID); err != nil {
			r.logf("Warning: failed to remove stale container %s: %v", name, err)
			report.Failed = append(report.Failed, name)
			continue
		}
		report.Containers = append(report.Containers, name)
	}
	return report, nil
}

func hasName(names []string, want string) bool {
	for _, n := range names {
		if strings.TrimPrefix(strings.TrimSpace(n), "/") == want {
			return true
		}
	}
	return false
}

func matchingName(names []string, prefix string) (string, bool) {
	for _, n := range names {
		if MatchesPrefix(n, prefix) {
			return strings.TrimPrefix(n, "/"), true
		}
	}
	return "", false
}

func (r *Reconciler) logf(format string, args ...any) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}
