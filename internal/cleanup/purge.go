package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/strongdm/bubble/internal/docker"
	"github.com/strongdm/bubble/internal/reconcile"
)

// PurgeEngine is the docker surface needed to remove everything bubble has
// ever created on this host.
type PurgeEngine interface {
	ListContainers(ctx context.Context, filter string) ([]docker.ContainerSummary, error)
	RemoveContainer(ctx context.Context, id string) error
	NetworkNames(ctx context.Context, filter string) ([]string, error)
	RemoveNetwork(ctx context.Context, name string) error
	ListImages(ctx context.Context, repository string) ([]string, error)
	RemoveImage(ctx context.Context, ref string) error
	VolumeNames(ctx context.Context, filter string) ([]string, error)
	RemoveVolume(ctx context.Context, name string) error
}

// PurgeOptions selects what Purge removes.
type PurgeOptions struct {
	// Prefix names containers, networks and volumes ("bubble").
	Prefix string
	// Repository names images ("bubble").
	Repository string
	Volumes    bool
}

// PurgeReport lists removed resources by kind.
type PurgeReport struct {
	Containers []string
	Networks   []string
	Images     []string
	Volumes    []string
}

// Empty reports whether nothing was removed.
func (r PurgeReport) Empty() bool {
	return len(r.Containers)+len(r.Networks)+len(r.Images)+len(r.Volumes) == 0
}

// Purge removes all containers and networks under the prefix, all images in
// the repository and, when asked, all prefixed volumes. Individual failures
// are logged as warnings and collected into the returned error.
func Purge(ctx context.Context, engine PurgeEngine, opts PurgeOptions, logger *log.Logger) (PurgeReport, error) {
	var report PurgeReport
	var errs []error
	warn := func(err error) {
		errs = append(errs, err)
		if logger != nil {
			logger.Printf("Warning: %v", err)
		}
	}
	if strings.TrimSpace(opts.Prefix) == "" || strings.TrimSpace(opts.Repository) == "" {
		return report, errors.New("purge prefix and repository required")
	}

	containers, err := engine.ListContainers(ctx, opts.Prefix)
	if err != nil {
		return report, fmt.Errorf("list containers: %w", err)
	}
	for _, c := range containers {
		name := firstMatch(c.Names, opts.Prefix)
		if name == "" {
			continue
		}
		if err := engine.RemoveContainer(ctx, c.ID); err != nil && !errors.Is(err, docker.ErrNotFound) {
			warn(fmt.Errorf("remove container %s: %w", name, err))
			continue
		}
		report.Containers = append(report.Containers, name)
	}

	networks, err := engine.NetworkNames(ctx, opts.Prefix)
	if err != nil {
		return report, fmt.Errorf("list networks: %w", err)
	}
	for _, n := range networks {
		if !reconcile.MatchesPrefix(n, opts.Prefix) {
			continue
		}
		if err := engine.RemoveNetwork(ctx, n); err != nil && !errors.Is(err, docker.ErrNotFound) {
			warn(fmt.Errorf("remove network %s: %w", n, err))
			continue
		}
		report.Networks = append(report.Networks, n)
	}

	images, err := engine.ListImages(ctx, opts.Repository)
	if err != nil {
		return report, fmt.Errorf("list images: %w", err)
	}
	for _, ref := range images {
		if !strings.HasPrefix(ref, opts.Repository+":") {
			continue
		}
		if err := engine.RemoveImage(ctx, ref); err != nil && !errors.Is(err, docker.ErrNotFound) {
			warn(fmt.Errorf("remove image %s: %w", ref, err))
			continue
		}
		report.Images = append(report.Images, ref)
	}

	if opts.Volumes {
		volumes, err := engine.VolumeNames(ctx, opts.Prefix)
		if err != nil {
			return report, fmt.Errorf("list volumes: %w", err)
		}
		for _, v := range volumes {
			if !reconcile.MatchesPrefix(v, opts.Prefix) {
				continue
			}
			if err := engine.RemoveVolume(ctx, v); err != nil {
				warn(fmt.Errorf("remove volume %s: %w", v, err))
				continue
			}
			report.Volumes = append(report.Volumes, v)
		}
	}
	return report, errors.Join(errs...)
}

func firstMatch(names []string, prefix string) string {
	for _, n := range names {
		if reconcile.MatchesPrefix(n, prefix) {
			return strings.TrimPrefix(n, "/")
		}
	}
	return ""
}
