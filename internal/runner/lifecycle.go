package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/strongdm/bubble/internal/buildcache"
	"github.com/strongdm/bubble/internal/cleanup"
	"github.com/strongdm/bubble/internal/configstore"
	"github.com/strongdm/bubble/internal/credentials"
	"github.com/strongdm/bubble/internal/docker"
	"github.com/strongdm/bubble/internal/hooks"
	"github.com/strongdm/bubble/internal/image"
	"github.com/strongdm/bubble/internal/network"
	"github.com/strongdm/bubble/internal/reconcile"
	"github.com/strongdm/bubble/internal/services"
	"github.com/strongdm/bubble/internal/session"
	"github.com/strongdm/bubble/internal/telemetry/otel"
	"github.com/strongdm/bubble/internal/templates"
)

const (
	cleanupTimeout           = 2 * time.Minute
	telemetryShutdownTimeout = 5 * time.Second
)

// Host identity hooks, swapped in tests.
var (
	getuid = os.Getuid
	getgid = os.Getgid
)

// sessionPlan is everything resolved before docker is touched.
type sessionPlan struct {
	Command     string
	Project     string
	ProjectDir  string
	Spec        buildcache.Spec
	Runtimes    []string
	Fingerprint buildcache.Fingerprint
	Tag         string
	Container   string
	Network     string
	Services    []services.Descriptor
	Env         []string
	Mounts      []configstore.Mount
	Hooks       configstore.Hooks
	// Argv is run in the primary container; nil for build.
	Argv []string
}

func (r *runner) buildPlan() (sessionPlan, error) {
	spec, err := templates.Render(r.cfg, templates.Options{Chief: r.opts.subcommand == "chief"})
	if err != nil {
		return sessionPlan{}, err
	}
	runtimes, err := templates.Runtimes(r.cfg)
	if err != nil {
		return sessionPlan{}, err
	}
	fp := buildcache.Compute(spec)
	descs := services.Describe(services.Collect(r.cfg))

	mounts, err := r.dotfileMounts()
	if err != nil {
		return sessionPlan{}, err
	}

	return sessionPlan{
		Command:     r.opts.subcommand,
		Project:     r.project,
		ProjectDir:  r.projectDir,
		Spec:        spec,
		Runtimes:    templates.Names(runtimes),
		Fingerprint: fp,
		Tag:         buildcache.ImageTag(imageRepository, fp),
		Container:   r.containerName(),
		Network:     r.networkName(),
		Services:    descs,
		Env: configstore.MergeEnvLayers(
			configstore.NewEnvLayer(services.AggregateEnv(descs)),
			configstore.NewEnvLayer(r.cfg.Container.Env),
		),
		Mounts: mounts,
		Hooks:  r.cfg.Hooks,
		Argv:   r.sessionCommand(),
	}, nil
}

func (r *runner) dotfileMounts() ([]configstore.Mount, error) {
	if !r.cfg.MountConfigsEnabled() {
		return nil, nil
	}
	home, err := r.homeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory for dotfile mounts: %w", err)
	}
	return configstore.DotfileMounts(home, os.Stat)
}

func (r *runner) homeDir() (string, error) {
	if r.home != "" {
		return r.home, nil
	}
	return configstore.HomeDir()
}

// sessionCommand is the argv run in the primary container.
func (r *runner) sessionCommand() []string {
	switch r.opts.subcommand {
	case "build":
		return nil
	case "claude":
		return append([]string{"claude", "--permission-mode", "bypassPermissions"}, r.opts.args...)
	case "chief":
		return append([]string{"chief"}, r.opts.args...)
	case "exec":
		return append([]string(nil), r.opts.args...)
	default:
		return []string{r.cfg.ResolveShell(r.opts.overrides.Shell, r.getenv("SHELL"))}
	}
}

func (r *runner) runSession(ctx context.Context) error {
	plan, err := r.buildPlan()
	if err != nil {
		return err
	}
	if r.opts.dryRun {
		return r.printPlan(plan)
	}

	if err := r.engine.Preflight(ctx); err != nil {
		return err
	}

	if plan.Argv == nil {
		res, err := r.buildImage(ctx, plan)
		if err != nil {
			return err
		}
		fmt.Fprintln(r.stdout, res.Tag)
		return nil
	}

	r.initSession()
	stop := r.watchSignals()
	defer stop()

	code, runErr := r.runLifecycle(ctx, plan)
	return r.finishLifecycle(ctx, code, runErr)
}

// initSession wires the primary container manager and the cleanup
// coordinator to each other.
func (r *runner) initSession() {
	r.session = &session.Manager{
		Engine:  r.engine,
		Stdin:   r.stdin,
		Stdout:  r.stdout,
		Stderr:  r.stderr,
		TTY:     r.tty,
		Logger:  r.logger,
		Verbose: r.verbose,
	}
	r.coord = cleanup.New(r.session, &network.Manager{Engine: r.engine}, r.logger)
	r.coord.OnRemove = func(res cleanup.Resource, err error) {
		r.instruments().ResourceRemoved(context.Background(), res.Kind.String(), err)
		if err == nil {
			r.debugf("removed %s %s", res.Kind, res.Name)
		}
	}
	r.session.Tracker = r.coord
}

// runLifecycle performs every step up to and including the user's command.
// It returns the command's exit status.
func (r *runner) runLifecycle(ctx context.Context, plan sessionPlan) (int, error) {
	if err := r.phase(ctx, "reconcile", func(ctx context.Context) error {
		return r.reconcile(ctx)
	}); err != nil {
		return 0, err
	}

	var res image.Result
	if err := r.phase(ctx, "build", func(ctx context.Context) error {
		var err error
		res, err = r.buildImage(ctx, plan)
		return err
	}); err != nil {
		return 0, err
	}

	if err := r.phase(ctx, "network", func(ctx context.Context) error {
		return r.ensureNetwork(ctx, plan.Network)
	}); err != nil {
		return 0, err
	}

	if err := r.phase(ctx, "services", func(ctx context.Context) error {
		return r.startServices(ctx, plan)
	}); err != nil {
		return 0, err
	}

	secrets := r.sessionSecrets()

	var id string
	if err := r.phase(ctx, "primary", func(ctx context.Context) error {
		var err error
		id, err = r.session.CreateAndStart(ctx, session.Options{
			Name:       plan.Container,
			Image:      res.Tag,
			ProjectDir: plan.ProjectDir,
			UID:        getuid(),
			GID:        getgid(),
			Env:        plan.Env,
			Secrets:    secrets,
			Network:    plan.Network,
			Mounts:     plan.Mounts,
			Labels:     r.labels(),
		})
		if err != nil {
			return &PhaseError{Phase: "primary container", Err: err}
		}
		return nil
	}); err != nil {
		return 0, err
	}

	hookRunner := &hooks.Runner{Exec: r.session, Container: id, Hooks: plan.Hooks, Logger: r.logger}
	hookRunner.PostStart(ctx)

	var code int
	interactErr := r.phase(ctx, "interact", func(ctx context.Context) error {
		var err error
		if plan.Command == "exec" {
			code, err = r.session.ExecStreaming(ctx, id, plan.Argv)
		} else {
			code, err = r.session.AttachInteractive(ctx, id, plan.Argv)
		}
		return err
	})

	hookRunner.PreStop(ctx)
	if interactErr != nil {
		return code, fmt.Errorf("run %s: %w", strings.Join(plan.Argv, " "), interactErr)
	}
	return code, nil
}

// finishLifecycle is the single teardown path for normal exit and fatal
// errors. It keeps the command's exit status, and a received signal's
// status takes precedence over both.
func (r *runner) finishLifecycle(ctx context.Context, exitCode int, runErr error) error {
	cctx, cancel := context.WithTimeout(cleanupContext(ctx), cleanupTimeout)
	defer cancel()

	cleanupErr := r.phase(cctx, "cleanup", r.coord.Cleanup)
	if cleanupErr != nil {
		r.warnf("cleanup incomplete: %v", cleanupErr)
	}

	if code := r.signaled.Load(); code != 0 {
		return &ExitCodeError{code: int(code)}
	}
	if runErr != nil {
		return runErr
	}
	if exitCode != 0 {
		// Do not wrap inside fmt.Errorf; main unwraps ExitCodeError so it can
		// call os.Exit with the original status.
		return &ExitCodeError{code: exitCode}
	}
	return nil
}

func cleanupContext(ctx context.Context) context.Context {
	if ctx == nil || ctx.Err() != nil {
		return context.Background()
	}
	return ctx
}

func (r *runner) phase(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, end := r.instruments().StartPhase(ctx, name)
	err := fn(ctx)
	end(err)
	return err
}

func (r *runner) instruments() *otel.Instruments {
	return r.telemetry.Lifecycle()
}

// reconcile removes containers and networks a crashed session of this
// project left behind. A container name override only clears a container
// with exactly that name; names sharing it as a prefix belong to the user.
func (r *runner) reconcile(ctx context.Context) error {
	rec := &reconcile.Reconciler{Engine: r.engine, Logger: r.logger}
	report, err := rec.Reconcile(ctx, r.baseName())
	if err != nil {
		return &PhaseError{Phase: "reconcile", Err: err}
	}
	if name := r.containerName(); name != r.baseName() {
		exact, err := rec.RemoveExact(ctx, name)
		if err != nil {
			return &PhaseError{Phase: "reconcile", Err: err}
		}
		report.Containers = append(report.Containers, exact.Containers...)
	}
	for _, name := range report.Containers {
		r.logger.Printf("Removed stale container %s", name)
	}
	for _, name := range report.Networks {
		r.logger.Printf("Removed stale network %s", name)
	}
	return nil
}

func (r *runner) buildImage(ctx context.Context, plan sessionPlan) (image.Result, error) {
	b := &image.Builder{
		Engine:     r.engine,
		Repository: imageRepository,
		Progress:   r.buildProgress,
		Logger:     r.logger,
	}
	res, err := b.Build(ctx, plan.Spec, r.opts.noCache)
	if err != nil {
		return res, &PhaseError{Phase: "build", Err: err}
	}
	if !r.opts.noCache {
		r.instruments().CacheLookup(ctx, res.Cached)
	}
	return res, nil
}

// buildProgress prints build step headers, or every line when verbose.
func (r *runner) buildProgress(line string) {
	if r.verbose || isBuildStep(line) {
		fmt.Fprintln(r.stderr, line)
	}
}

// isBuildStep matches buildkit step headers such as "#7 [3/9] RUN ...".
func isBuildStep(line string) bool {
	if !strings.HasPrefix(line, "#") {
		return false
	}
	_, rest, ok := strings.Cut(line, " ")
	return ok && strings.HasPrefix(rest, "[")
}

func (r *runner) ensureNetwork(ctx context.Context, name string) error {
	labels := r.labels()
	labels[docker.LabelRole] = string(cleanup.RoleNetwork)
	mgr := &network.Manager{Engine: r.engine, Labels: labels}
	created, err := mgr.Ensure(ctx, name)
	if err != nil {
		return &PhaseError{Phase: "network", Err: err}
	}
	if !created {
		r.debugf("reusing network %s", name)
		return nil
	}
	return r.coord.Track(cleanup.Resource{Kind: cleanup.KindNetwork, Role: cleanup.RoleNetwork, Name: name, ID: name})
}

func (r *runner) startServices(ctx context.Context, plan sessionPlan) error {
	if len(plan.Services) == 0 {
		return nil
	}
	prober := &services.Prober{
		Engine: r.engine,
		OnAttempt: func(container string, attempt int, ready bool) {
			r.instruments().ReadinessAttempt(ctx, container, ready)
			if !ready {
				r.debugf("%s not ready (attempt %d)", container, attempt)
			}
		},
	}
	launcher := &services.Launcher{
		Engine:  r.engine,
		Tracker: r.coord,
		Prober:  prober,
		Policy:  services.DefaultPolicy,
		Prefix:  namePrefix,
		Labels:  r.labels(),
		Logger:  r.logger,
	}
	if _, err := launcher.Start(ctx, plan.Services, plan.Network, plan.Project); err != nil {
		var startErr *services.StartError
		if errors.As(err, &startErr) {
			return &PhaseError{Phase: fmt.Sprintf("service %q", startErr.Service), Err: startErr.Err}
		}
		return &PhaseError{Phase: "services", Err: err}
	}
	return nil
}

// sessionSecrets resolves the values passed to the primary container through
// the docker client's environment rather than its command line.
func (r *runner) sessionSecrets() []string {
	var secrets []string
	if r.credentials == nil {
		r.credentials = credentials.NewResolver(r.logger, r.verbose)
		r.credentials.Getenv = r.getenv
	}
	if token, ok := r.credentials.Resolve(); ok {
		secrets = append(secrets, credentials.EnvVar+"="+token)
	}
	home, err := r.homeDir()
	if err != nil {
		r.debugf("skip Claude config: %v", err)
		return secrets
	}
	claudeConfig, err := credentials.ClaudeConfig(home)
	if err != nil {
		r.warnf("%v", err)
		return secrets
	}
	return append(secrets, credentials.ConfigEnvVar+"="+claudeConfig)
}
