package config

import (
	"os"
	"path/filepath"
)

func configSearchPaths(userHome string) []string {
	if userHome == "" {
		userHome, _ = os.UserHomeDir()
	}
	return []string{
		filepath.Join(userHome, ".valet", "caddyd.yaml"),
		"/etc/caddyd/config.yaml",
	}
}
