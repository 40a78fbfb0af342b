package main

import (
	"path/filepath"
	"testing"
)

func TestResolveManifestPath(t *testing.T) {
	if got := resolveManifestPath(""); got != defaultManifestName {
		t.Fatalf("expected default %q, got %q", defaultManifestName, got)
	}
	if got := resolveManifestPath("other.yml"); got != "other.yml" {
		t.Fatalf("expected explicit path preserved, got %q", got)
	}
}

func TestResolveConfigDir_EnvOverride(t *testing.T) {
	t.Setenv(envConfigDir, "/tmp/netsuke-config")
	t.Setenv("XDG_CONFIG_HOME", "")

	dir, err := resolveConfigDir()
	if err != nil {
		t.Fatalf("resolveConfigDir: %v", err)
	}
	if dir != "/tmp/netsuke-config" {
		t.Fatalf("expected env override, got %q", dir)
	}
}

func TestResolveConfigDir_XDGFallback(t *testing.T) {
	t.Setenv(envConfigDir, "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	dir, err := resolveConfigDir()
	if err != nil {
		t.Fatalf("resolveConfigDir: %v", err)
	}
	if dir != filepath.Join("/tmp/xdg", appName) {
		t.Fatalf("expected xdg fallback, got %q", dir)
	}
}

func TestResolveCacheDir_ExplicitFlag(t *testing.T) {
	dir, err := resolveCacheDir("relative-cache")
	if err != nil {
		t.Fatalf("resolveCacheDir: %v", err)
	}
	if !filepath.IsAbs(dir) {
		t.Fatalf("expected absolute path, got %q", dir)
	}
}

func TestResolveCacheDir_DefaultUnderConfigDir(t *testing.T) {
	t.Setenv(envConfigDir, "/tmp/netsuke-config")

	dir, err := resolveCacheDir("")
	if err != nil {
		t.Fatalf("resolveCacheDir: %v", err)
	}
	if dir != filepath.Join("/tmp/netsuke-config", "cache") {
		t.Fatalf("expected cache under config dir, got %q", dir)
	}
}
