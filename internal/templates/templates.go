// Package templates renders the Dockerfile for a configuration by stacking
// runtime layers on top of the base image.
package templates

import (
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	"github.com/strongdm/bubble/internal/assets"
	"github.com/strongdm/bubble/internal/buildcache"
	"github.com/strongdm/bubble/internal/configstore"
)

// ChiefPackage is the npm package installed for the chief command.
const ChiefPackage = "@minicodemonkey/chief"

const entrypointMode fs.FileMode = 0o755

// Runtime is one language toolchain layer.
type Runtime interface {
	Name() string
	Render() (string, error)
}

// Options toggles optional layers.
type Options struct {
	Chief bool
}

var (
	phpVersions  = []string{"8.1", "8.2", "8.3"}
	nodeVersions = []string{"18", "20", "22"}
	goReleases   = map[string]string{"1.22": "1.22.12", "1.23": "1.23.12"}
)

// PHP installs php-cli and composer.
type PHP struct{ Version string }

// NewPHP validates the requested version.
func NewPHP(version string) (PHP, error) {
	if err := checkVersion("PHP", version, phpVersions); err != nil {
		return PHP{}, err
	}
	return PHP{Version: version}, nil
}

func (PHP) Name() string { return "php" }

func (p PHP) Render() (string, error) { return execute("php", assets.PHPLayer, p) }

// Node installs Node.js from nodesource.
type Node struct{ Version string }

// NewNode validates the requested version.
func NewNode(version string) (Node, error) {
	if err := checkVersion("Node.js", version, nodeVersions); err != nil {
		return Node{}, err
	}
	return Node{Version: version}, nil
}

func (Node) Name() string { return "node" }

func (n Node) Render() (string, error) { return execute("node", assets.NodeLayer, n) }

// Go installs the Go toolchain.
type Go struct {
	Version string
	Release string
}

// NewGo validates the requested version.
func NewGo(version string) (Go, error) {
	release, ok := goReleases[version]
	if !ok {
		return Go{}, unsupported("Go", version, sortedGoVersions())
	}
	return Go{Version: version, Release: release}, nil
}

func (Go) Name() string { return "go" }

func (g Go) Render() (string, error) { return execute("go", assets.GoLayer, g) }

// Rust installs the stable toolchain through rustup.
type Rust struct{}

func (Rust) Name() string { return "rust" }

func (r Rust) Render() (string, error) { return execute("rust", assets.RustLayer, r) }

// Runtimes returns the configured runtimes in a fixed order: php, node,
// rust, go.
func Runtimes(cfg configstore.Config) ([]Runtime, error) {
	var out []Runtime
	if cfg.Runtimes.PHP != nil {
		rt, err := NewPHP(strings.TrimSpace(*cfg.Runtimes.PHP))
		if err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	if cfg.Runtimes.Node != nil {
		rt, err := NewNode(strings.TrimSpace(*cfg.Runtimes.Node))
		if err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	if cfg.RustEnabled() {
		out = append(out, Rust{})
	}
	if cfg.Runtimes.Go != nil {
		rt, err := NewGo(strings.TrimSpace(*cfg.Runtimes.Go))
		if err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, nil
}

// Render composes the build spec for cfg.
func Render(cfg configstore.Config, opts Options) (buildcache.Spec, error) {
	runtimes, err := Runtimes(cfg)
	if err != nil {
		return buildcache.Spec{}, err
	}

	var b strings.Builder
	b.WriteString(assets.BaseLayer)
	hasNode := false
	for _, rt := range runtimes {
		layer, err := rt.Render()
		if err != nil {
			return buildcache.Spec{}, err
		}
		b.WriteString(layer)
		if rt.Name() == "node" {
			hasNode = true
		}
	}
	agent, err := execute("agent", assets.AgentLayer, struct {
		HasNode      bool
		Chief        bool
		ChiefPackage string
	}{hasNode, opts.Chief, ChiefPackage})
	if err != nil {
		return buildcache.Spec{}, err
	}
	b.WriteString(agent)

	return buildcache.Spec{
		Dockerfile: b.String(),
		Files: []buildcache.ContextFile{{
			Path:    "entrypoint.sh",
			Content: []byte(assets.EntrypointScript),
			Mode:    entrypointMode,
		}},
	}, nil
}

// Names lists the runtime names, for display.
func Names(runtimes []Runtime) []string {
	out := make([]string, 0, len(runtimes))
	for _, rt := range runtimes {
		out = append(out, rt.Name())
	}
	return out
}

func execute(name, text string, data any) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse %s layer: %w", name, err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s layer: %w", name, err)
	}
	return b.String(), nil
}

func checkVersion(kind, version string, supported []string) error {
	for _, v := range supported {
		if v == version {
			return nil
		}
	}
	return unsupported(kind, version, supported)
}

func unsupported(kind, version string, supported []string) error {
	return fmt.Errorf("unsupported %s version %q: supported versions are %s", kind, version, strings.Join(supported, ", "))
}

func sortedGoVersions() []string {
	return []string{"1.22", "1.23"}
}
