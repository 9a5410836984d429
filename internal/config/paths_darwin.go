//go:build darwin

package config

import (
	"os"
	"path/filepath"
)

func appSupportDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Library", "Application Support", "jobtrail")
	}
	return "jobtrail-data"
}

func defaultDataDir() string { return appSupportDir() }

func configDir() string { return appSupportDir() }
