package runner

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/strongdm/bubble/internal/configstore"
)

var errShowUsage = errors.New("show usage")

// Subcommands that forward every remaining argument to the program they run.
var passthroughCommands = map[string]bool{
	"claude": true,
	"chief":  true,
	"exec":   true,
}

var knownCommands = map[string]bool{
	"shell":  true,
	"claude": true,
	"chief":  true,
	"exec":   true,
	"build":  true,
	"config": true,
	"clean":  true,
}

// Flags whose value is optional. "--with-mysql 8.4" is accepted as well as
// "--with-mysql=8.4".
var optionalValueFlags = map[string]bool{
	"--with-mysql":    true,
	"--with-postgres": true,
}

func parseArgs(args []string) (options, error) {
	opts := options{subcommand: "shell", format: "toml"}

	global := newGlobalFlagSet("bubble", &opts)
	global.SetInterspersed(false)
	if err := global.Parse(joinOptionalValues(args)); err != nil {
		return opts, flagError(err)
	}
	if opts.help {
		return opts, errShowUsage
	}

	rest := global.Args()
	if len(rest) == 0 {
		return finalizeOptions(opts)
	}
	cmd := rest[0]
	if cmd == "help" {
		return opts, errShowUsage
	}
	if !knownCommands[cmd] {
		return opts, fmt.Errorf("unknown command %q; run with --help for usage", cmd)
	}
	opts.subcommand = cmd
	rest = rest[1:]

	if passthroughCommands[cmd] {
		if len(rest) > 0 && rest[0] == "--" {
			rest = rest[1:]
		}
		opts.args = append([]string(nil), rest...)
		return finalizeOptions(opts)
	}

	// -e given before the subcommand must survive a second flag set binding
	// the same slice.
	envBefore := opts.overrides.Env
	opts.overrides.Env = nil
	sub := newGlobalFlagSet(cmd, &opts)
	switch cmd {
	case "config":
		sub.StringVar(&opts.format, "format", opts.format, "output format: toml, json or yaml")
	case "clean":
		sub.BoolVar(&opts.volumes, "volumes", false, "also remove named volumes")
		sub.BoolVarP(&opts.yes, "yes", "y", false, "do not ask for confirmation")
	}
	if err := sub.Parse(joinOptionalValues(rest)); err != nil {
		return opts, flagError(err)
	}
	opts.overrides.Env = append(envBefore, opts.overrides.Env...)
	if opts.help {
		return opts, errShowUsage
	}
	if extra := sub.Args(); len(extra) > 0 {
		return opts, fmt.Errorf("unexpected arguments for %s: %s", cmd, strings.Join(extra, " "))
	}
	return finalizeOptions(opts)
}

// newGlobalFlagSet binds the flags accepted before any subcommand. Session
// subcommands accept them after the subcommand too.
func newGlobalFlagSet(name string, opts *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	o := &opts.overrides
	fs.StringVar(&o.PHP, "with-php", o.PHP, "include PHP")
	fs.StringVar(&o.Node, "with-node", o.Node, "include Node.js")
	fs.BoolVar(&o.Rust, "with-rust", o.Rust, "include the Rust toolchain")
	fs.StringVar(&o.Go, "with-go", o.Go, "include Go")
	fs.StringVar(&o.MySQL, "with-mysql", o.MySQL, "start a MySQL service")
	fs.Lookup("with-mysql").NoOptDefVal = configstore.DefaultMySQLVersion
	fs.BoolVar(&o.Redis, "with-redis", o.Redis, "start a Redis service")
	fs.StringVar(&o.Postgres, "with-postgres", o.Postgres, "start a PostgreSQL service")
	fs.Lookup("with-postgres").NoOptDefVal = configstore.DefaultPostgresVersion
	fs.StringVar(&o.Network, "network", o.Network, "docker network name")
	fs.StringVar(&o.Name, "name", o.Name, "primary container name")
	fs.StringVar(&o.Shell, "shell", o.Shell, "shell for the shell command")
	fs.StringArrayVarP(&o.Env, "env", "e", o.Env, "environment variable KEY[=VALUE]")
	fs.BoolVar(&opts.noCache, "no-cache", opts.noCache, "rebuild the image")
	fs.BoolVar(&opts.dryRun, "dry-run", opts.dryRun, "print the plan only")
	fs.BoolVarP(&opts.verbose, "verbose", "V", opts.verbose, "verbose logging")
	fs.BoolVarP(&opts.help, "help", "h", false, "show usage")
	return fs
}

// joinOptionalValues rewrites "--with-mysql 8.4" to "--with-mysql=8.4" so a
// version may follow optional-value flags as a separate argument.
func joinOptionalValues(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			out = append(out, args[i:]...)
			break
		}
		if optionalValueFlags[arg] && i+1 < len(args) && looksLikeVersion(args[i+1]) {
			out = append(out, arg+"="+args[i+1])
			i++
			continue
		}
		out = append(out, arg)
	}
	return out
}

func looksLikeVersion(s string) bool {
	if s == "" || s[0] < '0' || s[0] > '9' {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return true
}

func finalizeOptions(opts options) (options, error) {
	for _, spec := range opts.overrides.Env {
		if err := validateEnvSpec(spec); err != nil {
			return opts, err
		}
	}
	switch strings.ToLower(strings.TrimSpace(opts.format)) {
	case "toml", "json", "yaml", "yml":
	default:
		return opts, fmt.Errorf("unsupported config format %q; use toml, json or yaml", opts.format)
	}
	if opts.subcommand == "exec" && len(opts.args) == 0 {
		return opts, errors.New("exec requires a command")
	}
	return opts, nil
}

func validateEnvSpec(spec string) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return fmt.Errorf("environment variable specification cannot be empty")
	}
	if strings.HasPrefix(spec, "-") {
		return fmt.Errorf("environment variable specification %q must not start with '-'; did you forget the value?", spec)
	}
	if strings.HasPrefix(spec, "=") {
		return fmt.Errorf("environment variable name is required in %q", spec)
	}
	return nil
}

func flagError(err error) error {
	if errors.Is(err, pflag.ErrHelp) {
		return errShowUsage
	}
	return err
}

func sortedKeys[V any](m map[string]V) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
