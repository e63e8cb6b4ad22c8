// Package configstore resolves bubble's layered configuration. Built-in
// defaults are overlaid by the global config file, then by the project's
// .bubble.toml, then by command-line overrides; later layers win.
package configstore
