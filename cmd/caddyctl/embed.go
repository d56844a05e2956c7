package main

import _ "embed"

// embeddedConfig holds the YAML configuration embedded at build time.
// Packagers overwrite embed_config.yaml with distribution defaults (PHP-FPM
// socket, unit location) before compiling.
//
//go:embed embed_config.yaml
var embeddedConfig []byte
