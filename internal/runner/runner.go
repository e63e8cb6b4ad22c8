package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/strongdm/bubble/internal/cleanup"
	"github.com/strongdm/bubble/internal/configstore"
	"github.com/strongdm/bubble/internal/credentials"
	"github.com/strongdm/bubble/internal/docker"
	"github.com/strongdm/bubble/internal/image"
	"github.com/strongdm/bubble/internal/network"
	"github.com/strongdm/bubble/internal/reconcile"
	"github.com/strongdm/bubble/internal/services"
	"github.com/strongdm/bubble/internal/session"
	"github.com/strongdm/bubble/internal/telemetry/otel"
)

const (
	// namePrefix starts every container, network and volume name.
	namePrefix = "bubble"
	// imageRepository holds every image bubble builds.
	imageRepository = "bubble"
)

// Engine is the docker surface the runner drives. *docker.Client
// satisfies it.
type Engine interface {
	Preflight(ctx context.Context) error
	image.Engine
	network.Engine
	reconcile.Engine
	services.Engine
	session.Engine
	cleanup.PurgeEngine
}

type options struct {
	subcommand string
	args       []string
	overrides  configstore.Overrides
	noCache    bool
	dryRun     bool
	verbose    bool
	help       bool
	format     string
	volumes    bool
	yes        bool
}

type runner struct {
	opts options

	cfg        configstore.Config
	sources    configstore.Sources
	projectDir string
	project    string
	sessionID  string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	tty    bool

	verbose bool
	logger  *log.Logger
	getenv  func(string) string

	engine      Engine
	telemetry   *otel.Provider
	session     *session.Manager
	coord       *cleanup.Coordinator
	prompter    confirmPrompter
	credentials *credentials.Resolver
	// home overrides the host home directory when set.
	home string

	// signaled holds the exit status owed to a received signal, or 0.
	signaled atomic.Int32
}

// ExitCodeError propagates the exit status of the command run inside the
// primary container, or 128+signal when a signal ended the session.
type ExitCodeError struct {
	code int
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("command exited with code %d", e.code)
}

func (e *ExitCodeError) ExitCode() int {
	return e.code
}

// PhaseError names the lifecycle phase a fatal error came from.
type PhaseError struct {
	Phase string
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// Main runs bubble with the provided argv slice. When args is empty, os.Args
// is used.
func Main(args []string) error {
	if len(args) == 0 {
		args = os.Args
	}
	name := commandName(args)
	return execute(name, args[1:])
}

func execute(cmdName string, args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		if errors.Is(err, errShowUsage) {
			fmt.Println(usage(cmdName))
			return nil
		}
		return err
	}
	if opts.help {
		fmt.Println(usage(cmdName))
		return nil
	}

	callerDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}

	r := &runner{
		opts:       opts,
		projectDir: callerDir,
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		tty:        isTerminal(os.Stdin) && isTerminal(os.Stdout),
		verbose:    opts.verbose,
		logger:     log.New(os.Stderr, "", 0),
		getenv:     os.Getenv,
		engine:     docker.New(""),
	}
	r.prompter = newPrompter(r.stdin, r.stderr, r.projectDir)

	if err := r.loadConfig(); err != nil {
		return err
	}

	ctx := context.Background()
	provider, err := otel.Setup(ctx, otel.LoadConfigFromEnv(r.getenv))
	if err != nil {
		r.logger.Printf("Warning: telemetry disabled: %v", err)
		provider = nil
	}
	r.telemetry = provider
	defer r.shutdownTelemetry()

	return r.dispatch(ctx)
}

func (r *runner) dispatch(ctx context.Context) error {
	switch r.opts.subcommand {
	case "config":
		return r.runConfig()
	case "clean":
		return r.runClean(ctx)
	default:
		return r.runSession(ctx)
	}
}

// loadConfig resolves the layered configuration and CLI overrides.
func (r *runner) loadConfig() error {
	cfg, sources, err := configstore.Load(r.projectDir)
	if err != nil {
		return err
	}
	cfg.Apply(r.opts.overrides)
	r.cfg = cfg
	r.sources = sources
	r.project = configstore.ProjectName(r.projectDir)
	if sources.Global != "" {
		r.debugf("loaded config %s", sources.Global)
	}
	if sources.Project != "" {
		r.debugf("loaded config %s", sources.Project)
	}
	return nil
}

func (r *runner) runConfig() error {
	out, err := configstore.Render(r.cfg, r.opts.format)
	if err != nil {
		return err
	}
	_, err = r.stdout.Write(out)
	return err
}

// baseName is the deterministic "<prefix>-<project>" every session resource
// of this project starts with.
func (r *runner) baseName() string {
	return namePrefix + "-" + r.project
}

func (r *runner) containerName() string {
	if r.cfg.Container.Name != nil && strings.TrimSpace(*r.cfg.Container.Name) != "" {
		return strings.TrimSpace(*r.cfg.Container.Name)
	}
	return r.baseName()
}

func (r *runner) networkName() string {
	if r.cfg.Container.Network != nil && strings.TrimSpace(*r.cfg.Container.Network) != "" {
		return strings.TrimSpace(*r.cfg.Container.Network)
	}
	return r.baseName()
}

// labels returns the labels applied to every resource of this session.
func (r *runner) labels() map[string]string {
	if r.sessionID == "" {
		r.sessionID = uuid.NewString()
	}
	return map[string]string{
		docker.LabelProject: r.project,
		docker.LabelSession: r.sessionID,
	}
}

func (r *runner) shutdownTelemetry() {
	if r.telemetry == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer cancel()
	if r.verbose {
		if totals, err := r.telemetry.Totals(ctx); err == nil {
			for _, name := range sortedKeys(totals) {
				r.debugf("metric %s=%d", name, totals[name])
			}
		}
	}
	if err := r.telemetry.Shutdown(ctx); err != nil {
		r.debugf("telemetry shutdown: %v", err)
	}
}

func (r *runner) debugf(format string, args ...any) {
	if r.verbose && r.logger != nil {
		r.logger.Printf(format, args...)
	}
}

func (r *runner) warnf(format string, args ...any) {
	if r.logger != nil {
		r.logger.Printf("Warning: "+format, args...)
	}
}

func usage(cmdName string) string {
	return fmt.Sprintf(`Usage: %[1]s [flags] [command [args...]]

Start an ephemeral dev container for the current directory, with optional
language runtimes and service containers, and remove everything on exit.

Commands:
  shell                 Open an interactive shell in the container (default).
  claude [args...]      Run Claude Code inside the container.
  chief [args...]       Run Chief inside the container.
  exec <cmd> [args...]  Run a command inside the container and exit with its status.
  build                 Build the container image without starting a container.
  config                Print the effective configuration.
  clean                 Remove bubble images, containers and networks.

Flags:
  --with-php <version>        Include PHP (8.1, 8.2, 8.3).
  --with-node <version>       Include Node.js (18, 20, 22).
  --with-rust                 Include the Rust toolchain.
  --with-go <version>         Include Go (1.22, 1.23).
  --with-mysql[=version]      Start a MySQL service (default %[2]s).
  --with-redis                Start a Redis service.
  --with-postgres[=version]   Start a PostgreSQL service (default %[3]s).
  --network <name>            Docker network name.
  --name <name>               Primary container name.
  --shell <shell>             Shell used by the shell command.
  -e, --env <key[=value]>     Set an environment variable in the container (repeatable).
  --no-cache                  Rebuild the image even when a cached one exists.
  --dry-run                   Print what would run without touching docker.
  -V, --verbose               Enable verbose logging.

Command flags:
  config --format <toml|json|yaml>   Output format (default toml).
  clean --volumes                    Also remove service data volumes.
  clean --yes                        Skip the confirmation prompt.

Environment variables:
  BUBBLE_HOME                 Directory holding config.toml (overrides XDG_CONFIG_HOME/bubble).
  CLAUDE_CODE_OAUTH_TOKEN     OAuth token handed to Claude Code in the container.
  BUBBLE_OTEL_TRACES          Print lifecycle traces to stderr.
  BUBBLE_OTEL_METRICS         Record lifecycle counters (shown with --verbose).

Configuration is read from the global config.toml and then ./.bubble.toml;
command-line flags take precedence.`, cmdName, configstore.DefaultMySQLVersion, configstore.DefaultPostgresVersion)
}

func commandName(args []string) string {
	if len(args) == 0 {
		return "bubble"
	}
	name := strings.TrimSpace(args[0])
	if name == "" {
		return "bubble"
	}
	return filepath.Base(name)
}

func isTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
