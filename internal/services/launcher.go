package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/strongdm/bubble/internal/cleanup"
	"github.com/strongdm/bubble/internal/docker"
)

// Engine is the docker surface needed to start services.
type Engine interface {
	Execer
	CreateVolume(ctx context.Context, name string, labels map[string]string) error
	CreateContainer(ctx context.Context, spec docker.ContainerSpec) (string, error)
	StartContainer(ctx context.Context, id string) error
}

// Tracker records created resources for teardown.
type Tracker interface {
	Track(r cleanup.Resource) error
}

// Running is a started, ready service.
type Running struct {
	Descriptor
	Container string
	ID        string
}

// StartError names the service that failed to start.
type StartError struct {
	Service string
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("service %q: %v", e.Service, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// Launcher creates service containers on the session network.
type Launcher struct {
	Engine  Engine
	Tracker Tracker
	Prober  *Prober
	Policy  Policy
	Prefix  string
	Labels  map[string]string
	Logger  *log.Logger
}

// Start launches descs in order, waiting for each to become ready before
// starting the next. Containers are tracked as soon as they are created, so
// on failure everything started so far is still torn down by cleanup.
func (l *Launcher) Start(ctx context.Context, descs []Descriptor, network, project string) ([]Running, error) {
	if l.Engine == nil || l.Tracker == nil {
		return nil, errors.New("service launcher not configured")
	}
	prober := l.Prober
	if prober == nil {
		prober = &Prober{Engine: l.Engine}
	}
	policy := l.Policy
	if policy.MaxAttempts == 0 {
		policy = DefaultPolicy
	}

	running := make([]Running, 0, len(descs))
	for _, d := range descs {
		r, err := l.startOne(ctx, d, network, project)
		if err != nil {
			return running, &StartError{Service: d.Name, Err: err}
		}
		running = append(running, r)

		l.logf("Waiting for %s to become ready...", d.Name)
		if err := prober.WaitReady(ctx, r.ID, d.Probe, policy); err != nil {
			return running, &StartError{Service: d.Name, Err: err}
		}
		l.logf("Service %s ready", d.Name)
	}
	return running, nil
}

func (l *Launcher) startOne(ctx context.Context, d Descriptor, network, project string) (Running, error) {
	name := ContainerName(l.Prefix, project, d.Name)
	labels := l.labels()

	var binds []string
	if d.VolumePath != "" {
		volume := VolumeName(l.Prefix, project, d.Name)
		if err := l.Engine.CreateVolume(ctx, volume, labels); err != nil {
			return Running{}, fmt.Errorf("create volume %s: %w", volume, err)
		}
		binds = append(binds, volume+":"+d.VolumePath)
	}

	labels[docker.LabelRole] = string(cleanup.RoleService)
	id, err := l.Engine.CreateContainer(ctx, docker.ContainerSpec{
		Name:    name,
		Image:   d.Image,
		Env:     d.Env,
		Binds:   binds,
		Network: network,
		Aliases: []string{d.Name},
		Labels:  labels,
	})
	if err != nil {
		return Running{}, fmt.Errorf("create container %s: %w", name, err)
	}
	if err := l.Tracker.Track(cleanup.Resource{Kind: cleanup.KindContainer, Role: cleanup.RoleService, Name: name, ID: id}); err != nil {
		return Running{}, err
	}
	l.logf("Starting %s (%s)", name, d.Image)
	if err := l.Engine.StartContainer(ctx, id); err != nil {
		return Running{}, fmt.Errorf("start container %s: %w", name, err)
	}
	return Running{Descriptor: d, Container: name, ID: id}, nil
}

func (l *Launcher) labels() map[string]string {
	out := make(map[string]string, len(l.Labels)+1)
	for k, v := range l.Labels {
		out[k] = v
	}
	return out
}

func (l *Launcher) logf(format string, args ...any) {
	if l.Logger != nil {
		l.Logger.Printf(format, args...)
	}
}
