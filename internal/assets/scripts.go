// Package assets embeds the Dockerfile fragments and the container entrypoint
// composed into every bubble image.
package assets

import _ "embed"

//go:embed base.dockerfile.tmpl
var BaseLayer string

//go:embed php.dockerfile.tmpl
var PHPLayer string

//go:embed node.dockerfile.tmpl
var NodeLayer string

//go:embed rust.dockerfile.tmpl
var RustLayer string

//go:embed go.dockerfile.tmpl
var GoLayer string

//go:embed agent.dockerfile.tmpl
var AgentLayer string

//go:embed entrypoint.sh
var EntrypointScript string
