package runner

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/strongdm/bubble/internal/configstore"
)

// printPlan describes a session without touching docker. Environment
// values are omitted since they may hold credentials.
func (r *runner) printPlan(plan sessionPlan) error {
	renderer := lipgloss.NewRenderer(r.stdout)
	heading := renderer.NewStyle().Bold(true)
	label := renderer.NewStyle().Faint(true).Width(12)

	w := &planWriter{out: r.stdout, label: label}
	w.line(heading.Render("Dry run: nothing will be created"))
	w.field("Project", fmt.Sprintf("%s (%s)", plan.Project, plan.ProjectDir))
	if plan.Argv == nil {
		w.field("Command", "build")
	} else {
		w.field("Command", fmt.Sprintf("%s: %s", plan.Command, shellQuote(plan.Argv)))
	}
	w.field("Image", fmt.Sprintf("%s (fingerprint %s)", plan.Tag, plan.Fingerprint.Short()))
	w.field("Runtimes", orNone(runtimeLabels(r.cfg, plan.Runtimes))...)
	if plan.Argv != nil {
		w.field("Container", plan.Container)
		w.field("Network", plan.Network)
		services := make([]string, 0, len(plan.Services))
		for _, d := range plan.Services {
			services = append(services, d.Name+" ("+d.Image+")")
		}
		w.field("Services", orNone(services)...)
		keys := make([]string, 0, len(plan.Env))
		for _, spec := range plan.Env {
			keys = append(keys, configstore.EnvKey(spec))
		}
		w.field("Env", orNone(keys)...)
		mounts := make([]string, 0, len(plan.Mounts))
		for _, m := range plan.Mounts {
			mounts = append(mounts, m.Spec())
		}
		w.field("Mounts", orNone(mounts)...)
		w.field("post_start", orNone(plan.Hooks.PostStart)...)
		w.field("pre_stop", orNone(plan.Hooks.PreStop)...)
	}
	if r.verbose {
		w.line("")
		w.line(heading.Render("Dockerfile"))
		w.line(strings.TrimRight(plan.Spec.Dockerfile, "\n"))
	}
	return w.err
}

type planWriter struct {
	out   io.Writer
	label lipgloss.Style
	err   error
}

func (w *planWriter) line(s string) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintln(w.out, s)
}

func (w *planWriter) field(name string, values ...string) {
	for i, v := range values {
		prefix := w.label.Render("")
		if i == 0 {
			prefix = w.label.Render(name + ":")
		}
		w.line(prefix + v)
	}
}

func runtimeLabels(cfg configstore.Config, names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		version := ""
		switch name {
		case "php":
			version = deref(cfg.Runtimes.PHP)
		case "node":
			version = deref(cfg.Runtimes.Node)
		case "go":
			version = deref(cfg.Runtimes.Go)
		}
		out = append(out, strings.TrimSpace(name+" "+strings.TrimSpace(version)))
	}
	return out
}

func orNone(values []string) []string {
	if len(values) == 0 {
		return []string{"none"}
	}
	return values
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
