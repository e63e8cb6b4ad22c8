package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/strongdm/bubble/internal/cleanup"
)

var errCleanNeedsConfirmation = errors.New("clean needs confirmation; rerun with --yes when not attached to a terminal")

// runClean removes every bubble container, network and image on the host,
// and named volumes when --volumes is given.
func (r *runner) runClean(ctx context.Context) error {
	if err := r.engine.Preflight(ctx); err != nil {
		return err
	}

	if !r.opts.yes {
		if !r.tty || r.prompter == nil {
			return errCleanNeedsConfirmation
		}
		ok, err := r.prompter.Confirm(ctx, r.cleanConfirmation())
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(r.stderr, "Aborted.")
			return nil
		}
	}

	report, err := cleanup.Purge(ctx, r.engine, cleanup.PurgeOptions{
		Prefix:     namePrefix,
		Repository: imageRepository,
		Volumes:    r.opts.volumes,
	}, r.logger)
	r.printPurgeReport(report)
	if err != nil {
		return fmt.Errorf("clean: %w", err)
	}
	return nil
}

func (r *runner) cleanConfirmation() Confirmation {
	items := []string{
		fmt.Sprintf("containers named %s-*", namePrefix),
		fmt.Sprintf("networks named %s-*", namePrefix),
		fmt.Sprintf("images %s:*", imageRepository),
	}
	if r.opts.volumes {
		items = append(items, fmt.Sprintf("volumes named %s-* (service data is lost)", namePrefix))
	}
	return Confirmation{Title: "Remove bubble resources", Items: items}
}

func (r *runner) printPurgeReport(report cleanup.PurgeReport) {
	if report.Empty() {
		fmt.Fprintln(r.stdout, "Nothing to clean.")
		return
	}
	for _, kind := range []struct {
		name  string
		names []string
	}{
		{"container", report.Containers},
		{"network", report.Networks},
		{"image", report.Images},
		{"volume", report.Volumes},
	} {
		for _, n := range kind.names {
			fmt.Fprintf(r.stdout, "Removed %s %s\n", kind.name, n)
		}
	}
	fmt.Fprintf(r.stdout, "Removed %d containers, %d networks, %d images, %d volumes.\n",
		len(report.Containers), len(report.Networks), len(report.Images), len(report.Volumes))
}
