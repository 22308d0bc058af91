// Package configs embeds the configuration template written by
// 'codescope init', so the commented example ships inside the binary.
package configs

import _ "embed"

// ProjectConfigTemplate is the annotated .codescope.yaml template.
//
//go:embed codescope.example.yaml
var ProjectConfigTemplate string
