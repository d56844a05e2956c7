package setup

import (
	"path/filepath"
)

// Paths holds the install-time locations derived from where caddyd lives.
type Paths struct {
	Install string // root of the installation (VALET_PATH)
	Stubs   string // directory holding the Caddyfile and unit templates
}

// ResolvePaths derives Paths from an install root. An empty stubs argument
// selects <install>/stubs.
func ResolvePaths(install, stubs string) Paths {
	if stubs == "" {
		stubs = filepath.Join(install, "stubs")
	}
	return Paths{
		Install: install,
		Stubs:   stubs,
	}
}

// InstallRootFromExecutable returns the install root for a binary laid out
// as <root>/bin/<name>.
func InstallRootFromExecutable(exe string) (string, error) {
	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", err
	}
	return filepath.Dir(filepath.Dir(abs)), nil
}
