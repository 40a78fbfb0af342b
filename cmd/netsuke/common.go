package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/leynos/netsuke/internal/compiler"
	"github.com/leynos/netsuke/internal/diag"
	"github.com/leynos/netsuke/internal/ingest"
	"github.com/leynos/netsuke/internal/policy"
	"github.com/leynos/netsuke/internal/tmpl"
)

// newEnv builds a tmpl.Env configured from the root command's persistent
// flags: the host-configurable budgets and the fetch cache sandbox (spec
// §5, §6). baseDir anchors glob() and filesystem-query functions; the
// callers in this package pass ".", the current working directory.
func newEnv(baseDir string) (*tmpl.Env, error) {
	env := tmpl.NewEnv()
	env.BaseDir = baseDir

	if flagFetchMaxBytes > 0 {
		env.Budgets.FetchMaxBytes = flagFetchMaxBytes
	}
	if flagCommandMaxBytes > 0 {
		env.Budgets.CommandCapturedMaxBytes = flagCommandMaxBytes
	}

	cacheDir, err := resolveCacheDir(flagCacheDir)
	if err != nil {
		return nil, err
	}
	cache, err := policy.NewCacheDir(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("initialising fetch cache: %w", err)
	}
	env.Cache = cache
	return env, nil
}

// compileManifest runs the full pipeline over the manifest named by path,
// returning the compiler.Result the caller (build/targets/repl) needs.
func compileManifest(path string) (*compiler.Result, error) {
	src, err := ingest.FromPath(path)
	if err != nil {
		return nil, err
	}
	env, err := newEnv(".")
	if err != nil {
		return nil, err
	}
	return compiler.Compile(src, env)
}

// renderDiagnosticErr prints err to stderr, as JSON (spec §6) when --json
// is set and err is a *diag.Diagnostic, else as the diagnostic's own
// human-readable Error() text (the core never formats for display itself;
// this is the boundary layer's job per spec §7).
func renderDiagnosticErr(err error) {
	if d, ok := diag.As(err); ok && flagJSON {
		b, jerr := json.MarshalIndent(d, "", "  ")
		if jerr == nil {
			fmt.Fprintln(os.Stderr, string(b))
			return
		}
	}
	fmt.Fprintln(os.Stderr, err)
}
