// Package cleanup records every resource a session creates and tears them
// down exactly once, whichever of the normal exit path or the signal handler
// gets there first.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// ErrDrained is returned by Track once Cleanup has run.
var ErrDrained = errors.New("cleanup: coordinator already drained")

// lateRemoveTimeout bounds the removal of a resource tracked after Cleanup.
const lateRemoveTimeout = 30 * time.Second

// Kind distinguishes containers from networks.
type Kind int

const (
	KindContainer Kind = iota
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindContainer:
		return "container"
	case KindNetwork:
		return "network"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Role is the part a resource plays in the session.
type Role string

const (
	RolePrimary Role = "primary"
	RoleService Role = "service"
	RoleNetwork Role = "network"
)

// Resource is one tracked docker object.
type Resource struct {
	Kind Kind
	Role Role
	Name string
	// ID is the docker identifier; networks may use their name.
	ID string
}

func (r Resource) ref() string {
	if r.ID != "" {
		return r.ID
	}
	return r.Name
}

// ContainerRemover stops and removes containers.
type ContainerRemover interface {
	StopAndRemove(ctx context.Context, id string) error
}

// NetworkRemover removes networks.
type NetworkRemover interface {
	Remove(ctx context.Context, name string) error
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	Containers ContainerRemover
	Networks   NetworkRemover
	Logger     *log.Logger
	// OnRemove, when set, is called after each removal attempt.
	OnRemove func(r Resource, err error)

	mu        sync.Mutex
	resources []Resource
	drained   bool
}

// New returns an active Coordinator.
func New(containers ContainerRemover, networks NetworkRemover, logger *log.Logger) *Coordinator {
	return &Coordinator{Containers: containers, Networks: networks, Logger: logger}
}

// Track records a resource that now exists remotely. Once Cleanup has run
// nothing else will tear the resource down, so Track removes it on the spot
// and returns ErrDrained.
func (c *Coordinator) Track(r Resource) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.drained {
		ctx, cancel := context.WithTimeout(context.Background(), lateRemoveTimeout)
		defer cancel()
		if err := c.remove(ctx, r); err != nil {
			return errors.Join(ErrDrained, err)
		}
		return ErrDrained
	}
	c.resources = append(c.resources, r)
	return nil
}

// Tracked returns a snapshot of the tracked resources.
func (c *Coordinator) Tracked() []Resource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Resource(nil), c.resources...)
}

// Drained reports whether Cleanup has run.
func (c *Coordinator) Drained() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drained
}

// Cleanup removes the primary container, then service containers in reverse
// start order, then networks. The lock is held for the whole teardown so a
// concurrent caller blocks and then finds nothing left to do. Volumes are
// never touched.
func (c *Coordinator) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.drained {
		return nil
	}
	c.drained = true
	tracked := c.resources
	c.resources = nil

	var errs []error
	for _, r := range teardownOrder(tracked) {
		if err := c.remove(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Coordinator) remove(ctx context.Context, r Resource) error {
	var err error
	switch r.Kind {
	case KindContainer:
		if c.Containers == nil {
			err = errors.New("no container remover configured")
			break
		}
		err = c.Containers.StopAndRemove(ctx, r.ref())
	case KindNetwork:
		if c.Networks == nil {
			err = errors.New("no network remover configured")
			break
		}
		err = c.Networks.Remove(ctx, r.ref())
	default:
		err = fmt.Errorf("unknown resource kind %s", r.Kind)
	}
	if c.OnRemove != nil {
		c.OnRemove(r, err)
	}
	if err != nil {
		err = fmt.Errorf("remove %s %s: %w", r.Kind, r.Name, err)
		c.logf("Warning: %v", err)
		return err
	}
	c.logf("Removed %s %s", r.Kind, r.Name)
	return nil
}

func (c *Coordinator) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}

func teardownOrder(tracked []Resource) []Resource {
	var primary, services, networks []Resource
	for _, r := range tracked {
		switch {
		case r.Kind == KindNetwork:
			networks = append(networks, r)
		case r.Role == RolePrimary:
			primary = append(primary, r)
		default:
			services = append(services, r)
		}
	}
	ordered := make([]Resource, 0, len(tracked))
	ordered = append(ordered, primary...)
	for i := len(services) - 1; i >= 0; i-- {
		ordered = append(ordered, services[i])
	}
	return append(ordered, networks...)
}
