package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// appName is the single source of truth for the application name; derived
// identifiers (env vars, config paths) are computed from it the way
// devshell's config.go computes its own.
const appName = "netsuke"

// defaultManifestName is the manifest file netsuke looks for when --file is
// not given (spec §4.1: "NotFound when no manifest exists at the default
// location").
const defaultManifestName = "Netsukefile"

var envConfigDir = "NETSUKE_CONFIG_DIR"

// resolveConfigDir returns the base config directory for the application:
// $NETSUKE_CONFIG_DIR > $XDG_CONFIG_HOME/netsuke > ~/.config/netsuke.
func resolveConfigDir() (string, error) {
	if v := os.Getenv(envConfigDir); v != "" {
		return v, nil
	}
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// resolveManifestPath returns the manifest path to ingest: the explicit
// --file flag if set, else defaultManifestName in the current directory.
func resolveManifestPath(flagFile string) string {
	if flagFile != "" {
		return flagFile
	}
	return defaultManifestName
}

// resolveCacheDir returns the fetch cache directory: the absolute form of
// --cache-dir if given, else a "cache" folder under the resolved config
// directory. The default is per user, not per workspace.
func resolveCacheDir(flagCacheDir string) (string, error) {
	if flagCacheDir != "" {
		abs, err := filepath.Abs(flagCacheDir)
		if err != nil {
			return "", fmt.Errorf("resolving cache dir %q: %w", flagCacheDir, err)
		}
		return abs, nil
	}
	dir, err := resolveConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache"), nil
}
