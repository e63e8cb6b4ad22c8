package configstore

import (
	"os"
	"path/filepath"
	"strings"
)

// Default service versions used when a service is enabled without one.
const (
	DefaultMySQLVersion    = "8.0"
	DefaultPostgresVersion = "16"
)

// Config is the effective bubble configuration.
type Config struct {
	Runtimes  Runtimes  `toml:"runtimes" json:"runtimes" yaml:"runtimes"`
	Services  Services  `toml:"services" json:"services" yaml:"services"`
	Hooks     Hooks     `toml:"hooks" json:"hooks" yaml:"hooks"`
	Shell     Shell     `toml:"shell" json:"shell" yaml:"shell"`
	Container Container `toml:"container" json:"container" yaml:"container"`
}

// Runtimes selects language toolchains baked into the image.
type Runtimes struct {
	PHP  *string `toml:"php,omitempty" json:"php,omitempty" yaml:"php,omitempty"`
	Node *string `toml:"node,omitempty" json:"node,omitempty" yaml:"node,omitempty"`
	Rust *bool   `toml:"rust,omitempty" json:"rust,omitempty" yaml:"rust,omitempty"`
	Go   *string `toml:"go,omitempty" json:"go,omitempty" yaml:"go,omitempty"`
}

// Services selects auxiliary containers started next to the session.
type Services struct {
	MySQL    *Database `toml:"mysql,omitempty" json:"mysql,omitempty" yaml:"mysql,omitempty"`
	Redis    *bool     `toml:"redis,omitempty" json:"redis,omitempty" yaml:"redis,omitempty"`
	Postgres *Database `toml:"postgres,omitempty" json:"postgres,omitempty" yaml:"postgres,omitempty"`
}

// Database holds connection settings shared by the SQL services.
type Database struct {
	Version  string `toml:"version" json:"version" yaml:"version"`
	Database string `toml:"database" json:"database" yaml:"database"`
	Username string `toml:"username" json:"username" yaml:"username"`
	Password string `toml:"password" json:"password" yaml:"password"`
}

// MySQLDefaults returns the settings used for unset MySQL fields.
func MySQLDefaults() Database {
	return Database{Version: DefaultMySQLVersion, Database: "app", Username: "root", Password: "password"}
}

// PostgresDefaults returns the settings used for unset Postgres fields.
func PostgresDefaults() Database {
	return Database{Version: DefaultPostgresVersion, Database: "app", Username: "postgres", Password: "password"}
}

func (d Database) withDefaults(def Database) Database {
	if strings.TrimSpace(d.Version) == "" {
		d.Version = def.Version
	}
	if strings.TrimSpace(d.Database) == "" {
		d.Database = def.Database
	}
	if strings.TrimSpace(d.Username) == "" {
		d.Username = def.Username
	}
	if d.Password == "" {
		d.Password = def.Password
	}
	return d
}

// Hooks are shell commands run inside the primary container.
type Hooks struct {
	PostStart []string `toml:"post_start,omitempty" json:"post_start,omitempty" yaml:"post_start,omitempty"`
	PreStop   []string `toml:"pre_stop,omitempty" json:"pre_stop,omitempty" yaml:"pre_stop,omitempty"`
}

// Shell controls host shell integration.
type Shell struct {
	MountConfigs *bool `toml:"mount_configs,omitempty" json:"mount_configs,omitempty" yaml:"mount_configs,omitempty"`
}

// Container overrides naming and the primary container's environment.
type Container struct {
	Name    *string  `toml:"name,omitempty" json:"name,omitempty" yaml:"name,omitempty"`
	Network *string  `toml:"network,omitempty" json:"network,omitempty" yaml:"network,omitempty"`
	Shell   *string  `toml:"shell,omitempty" json:"shell,omitempty" yaml:"shell,omitempty"`
	Env     []string `toml:"env,omitempty" json:"env,omitempty" yaml:"env,omitempty"`
}

// Overrides carries command-line settings. Zero values mean "not given".
type Overrides struct {
	PHP      string
	Node     string
	Go       string
	Rust     bool
	MySQL    string
	Postgres string
	Redis    bool
	Name     string
	Network  string
	Shell    string
	Env      []string
}

// MountConfigsEnabled reports whether host dotfiles should be mounted.
func (c Config) MountConfigsEnabled() bool {
	return c.Shell.MountConfigs != nil && *c.Shell.MountConfigs
}

// RustEnabled reports whether the Rust toolchain is selected.
func (c Config) RustEnabled() bool {
	return c.Runtimes.Rust != nil && *c.Runtimes.Rust
}

// RedisEnabled reports whether the Redis service is selected.
func (c Config) RedisEnabled() bool {
	return c.Services.Redis != nil && *c.Services.Redis
}

// Merge overlays other onto c. Set pointers and non-empty lists in other
// replace c's values; container env is merged per key with other winning.
func (c *Config) Merge(other Config) {
	if other.Runtimes.PHP != nil {
		c.Runtimes.PHP = other.Runtimes.PHP
	}
	if other.Runtimes.Node != nil {
		c.Runtimes.Node = other.Runtimes.Node
	}
	if other.Runtimes.Rust != nil {
		c.Runtimes.Rust = other.Runtimes.Rust
	}
	if other.Runtimes.Go != nil {
		c.Runtimes.Go = other.Runtimes.Go
	}

	if other.Services.MySQL != nil {
		c.Services.MySQL = other.Services.MySQL
	}
	if other.Services.Redis != nil {
		c.Services.Redis = other.Services.Redis
	}
	if other.Services.Postgres != nil {
		c.Services.Postgres = other.Services.Postgres
	}

	if len(other.Hooks.PostStart) > 0 {
		c.Hooks.PostStart = other.Hooks.PostStart
	}
	if len(other.Hooks.PreStop) > 0 {
		c.Hooks.PreStop = other.Hooks.PreStop
	}

	if other.Shell.MountConfigs != nil {
		c.Shell.MountConfigs = other.Shell.MountConfigs
	}

	if other.Container.Name != nil {
		c.Container.Name = other.Container.Name
	}
	if other.Container.Network != nil {
		c.Container.Network = other.Container.Network
	}
	if other.Container.Shell != nil {
		c.Container.Shell = other.Container.Shell
	}
	if len(other.Container.Env) > 0 {
		c.Container.Env = MergeEnvLayers(NewEnvLayer(c.Container.Env), NewEnvLayer(other.Container.Env))
	}
}

// Apply overlays command-line overrides. Service version flags keep any
// credentials already configured for that service.
func (c *Config) Apply(o Overrides) {
	if v := strings.TrimSpace(o.PHP); v != "" {
		c.Runtimes.PHP = stringPtr(v)
	}
	if v := strings.TrimSpace(o.Node); v != "" {
		c.Runtimes.Node = stringPtr(v)
	}
	if o.Rust {
		c.Runtimes.Rust = boolPtr(true)
	}
	if v := strings.TrimSpace(o.Go); v != "" {
		c.Runtimes.Go = stringPtr(v)
	}

	if v := strings.TrimSpace(o.MySQL); v != "" {
		db := MySQLDefaults()
		if c.Services.MySQL != nil {
			db = *c.Services.MySQL
		}
		db.Version = v
		c.Services.MySQL = &db
	}
	if o.Redis {
		c.Services.Redis = boolPtr(true)
	}
	if v := strings.TrimSpace(o.Postgres); v != "" {
		db := PostgresDefaults()
		if c.Services.Postgres != nil {
			db = *c.Services.Postgres
		}
		db.Version = v
		c.Services.Postgres = &db
	}

	if v := strings.TrimSpace(o.Name); v != "" {
		c.Container.Name = stringPtr(v)
	}
	if v := strings.TrimSpace(o.Network); v != "" {
		c.Container.Network = stringPtr(v)
	}
	if v := strings.TrimSpace(o.Shell); v != "" {
		c.Container.Shell = stringPtr(v)
	}
	if len(o.Env) > 0 {
		c.Container.Env = MergeEnvLayers(NewEnvLayer(c.Container.Env), NewEnvLayer(o.Env))
	}
}

// normalize fills service defaults and expands $VAR references after a file
// layer is decoded.
func (c *Config) normalize() {
	if c.Services.MySQL != nil {
		db := c.Services.MySQL.withDefaults(MySQLDefaults())
		db.Username = expandValue(db.Username, os.Getenv)
		db.Password = expandValue(db.Password, os.Getenv)
		c.Services.MySQL = &db
	}
	if c.Services.Postgres != nil {
		db := c.Services.Postgres.withDefaults(PostgresDefaults())
		db.Username = expandValue(db.Username, os.Getenv)
		db.Password = expandValue(db.Password, os.Getenv)
		c.Services.Postgres = &db
	}
	for i, spec := range c.Container.Env {
		key, value, ok := strings.Cut(spec, "=")
		if !ok {
			continue
		}
		c.Container.Env[i] = key + "=" + expandValue(value, os.Getenv)
	}
}

// ResolveShell picks the interactive shell: an explicit override, then the
// configured shell, then the basename of $SHELL, then bash.
func (c Config) ResolveShell(override, envShell string) string {
	if v := strings.TrimSpace(override); v != "" {
		return v
	}
	if c.Container.Shell != nil && strings.TrimSpace(*c.Container.Shell) != "" {
		return strings.TrimSpace(*c.Container.Shell)
	}
	if v := strings.TrimSpace(envShell); v != "" {
		if base := filepath.Base(v); base != "." && base != "/" {
			return base
		}
	}
	return "bash"
}

func stringPtr(v string) *string { return &v }

func boolPtr(v bool) *bool { return &v }
