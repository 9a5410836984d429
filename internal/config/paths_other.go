//go:build !darwin

package config

import (
	"os"
	"path/filepath"
)

// xdgDir resolves an XDG base directory, falling back to fallback under the
// home directory.
func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, "jobtrail")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, fallback, "jobtrail")
	}
	return "jobtrail-data"
}

func defaultDataDir() string { return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share")) }

func configDir() string { return xdgDir("XDG_CONFIG_HOME", ".config") }
