package tmpl

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/shlex"

	"github.com/leynos/netsuke/internal/diag"
)

// registerStdlib wires the required capability groups from spec §4.7:
// string/path manipulation, filesystem queries, collection operations,
// glob expansion, environment reads, HTTP fetch, and bounded subprocess
// execution. Every impure entry records the externality it observed so
// diagnostics and tests can reproduce the invocation, per spec §4.7.
func registerStdlib(e *Env) {
	pure := func(name string, fn func([]Value) (Value, error)) Callable {
		return Callable{Name: name, Pure: true, Fn: func(_ *Env, args []Value) (Value, *Externality, error) {
			v, err := fn(args)
			return v, nil, err
		}}
	}

	// --- string/path manipulation ---
	e.RegisterFilter(pure("basename", func(a []Value) (Value, error) {
		s, err := arg1String(a, "basename")
		if err != nil {
			return nil, err
		}
		return filepath.Base(s), nil
	}))
	e.RegisterFilter(pure("dirname", func(a []Value) (Value, error) {
		s, err := arg1String(a, "dirname")
		if err != nil {
			return nil, err
		}
		return filepath.Dir(s), nil
	}))
	e.RegisterFilter(pure("with_suffix", func(a []Value) (Value, error) {
		if len(a) != 2 {
			return nil, fmt.Errorf("with_suffix expects (path, suffix)")
		}
		path, err := AsString(a[0])
		if err != nil {
			return nil, err
		}
		suffix, err := AsString(a[1])
		if err != nil {
			return nil, err
		}
		return strings.TrimSuffix(path, filepath.Ext(path)) + suffix, nil
	}))
	e.RegisterFilter(pure("upper", func(a []Value) (Value, error) {
		s, err := arg1String(a, "upper")
		if err != nil {
			return nil, err
		}
		return strings.ToUpper(s), nil
	}))
	e.RegisterFilter(pure("lower", func(a []Value) (Value, error) {
		s, err := arg1String(a, "lower")
		if err != nil {
			return nil, err
		}
		return strings.ToLower(s), nil
	}))
	e.RegisterFilter(pure("trim", func(a []Value) (Value, error) {
		s, err := arg1String(a, "trim")
		if err != nil {
			return nil, err
		}
		return strings.TrimSpace(s), nil
	}))
	e.RegisterFilter(pure("replace", func(a []Value) (Value, error) {
		if len(a) != 3 {
			return nil, fmt.Errorf("replace expects (s, old, new)")
		}
		return strings.ReplaceAll(Stringify(a[0]), Stringify(a[1]), Stringify(a[2])), nil
	}))
	e.RegisterFilter(pure("split", func(a []Value) (Value, error) {
		if len(a) != 2 {
			return nil, fmt.Errorf("split expects (s, sep)")
		}
		parts := strings.Split(Stringify(a[0]), Stringify(a[1]))
		out := make([]Value, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out, nil
	}))
	e.RegisterFilter(pure("join", func(a []Value) (Value, error) {
		if len(a) != 2 {
			return nil, fmt.Errorf("join expects (list, sep)")
		}
		list, err := AsList(a[0])
		if err != nil {
			return nil, err
		}
		sep := Stringify(a[1])
		parts := make([]string, len(list))
		for i, v := range list {
			parts[i] = Stringify(v)
		}
		return strings.Join(parts, sep), nil
	}))

	// --- collection operations ---
	e.RegisterFilter(pure("sort", func(a []Value) (Value, error) {
		list, err := arg1List(a, "sort")
		if err != nil {
			return nil, err
		}
		return SortValues(list), nil
	}))
	e.RegisterFilter(pure("uniq", func(a []Value) (Value, error) {
		list, err := arg1List(a, "uniq")
		if err != nil {
			return nil, err
		}
		var out []Value
		seen := map[string]bool{}
		for _, v := range list {
			k := Stringify(v)
			if !seen[k] {
				seen[k] = true
				out = append(out, v)
			}
		}
		return out, nil
	}))
	e.RegisterFilter(pure("flatten", func(a []Value) (Value, error) {
		list, err := arg1List(a, "flatten")
		if err != nil {
			return nil, err
		}
		var out []Value
		for _, v := range list {
			if nested, ok := v.([]Value); ok {
				out = append(out, nested...)
			} else {
				out = append(out, v)
			}
		}
		return out, nil
	}))
	e.RegisterFilter(pure("first", func(a []Value) (Value, error) {
		list, err := arg1List(a, "first")
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("first: empty list")
		}
		return list[0], nil
	}))
	e.RegisterFilter(pure("last", func(a []Value) (Value, error) {
		list, err := arg1List(a, "last")
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("last: empty list")
		}
		return list[len(list)-1], nil
	}))
	e.RegisterFilter(pure("length", func(a []Value) (Value, error) {
		if len(a) != 1 {
			return nil, fmt.Errorf("length expects one argument")
		}
		switch v := a[0].(type) {
		case []Value:
			return int64(len(v)), nil
		case map[string]Value:
			return int64(len(v)), nil
		case string:
			return int64(len(v)), nil
		default:
			return nil, fmt.Errorf("length: unsupported type %T", v)
		}
	}))
	e.RegisterFilter(pure("group_by", func(a []Value) (Value, error) {
		if len(a) != 2 {
			return nil, fmt.Errorf("group_by expects (list, attr)")
		}
		list, err := AsList(a[0])
		if err != nil {
			return nil, err
		}
		attr, err := AsString(a[1])
		if err != nil {
			return nil, err
		}
		groups := map[string]Value{}
		for _, item := range list {
			m, ok := item.(map[string]Value)
			if !ok {
				continue
			}
			key := Stringify(m[attr])
			existing, _ := groups[key].([]Value)
			groups[key] = append(existing, item)
		}
		return groups, nil
	}))

	// --- filesystem queries (impure: read-only filesystem access) ---
	e.RegisterFunction(fsFunc("exists", func(path string) (Value, error) {
		_, err := os.Stat(path)
		return err == nil, nil
	}))
	e.RegisterFunction(fsFunc("is_file", func(path string) (Value, error) {
		info, err := os.Stat(path)
		return err == nil && !info.IsDir(), nil
	}))
	e.RegisterFunction(fsFunc("is_dir", func(path string) (Value, error) {
		info, err := os.Stat(path)
		return err == nil && info.IsDir(), nil
	}))
	e.RegisterFunction(fsFunc("file_size", func(path string) (Value, error) {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		return info.Size(), nil
	}))
	e.RegisterFunction(fsFunc("file_hash", func(path string) (Value, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		h := sha256.New()
		if _, err := io.Copy(h, f); err != nil {
			return nil, err
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	}))
	e.RegisterFunction(fsFunc("read_file", func(path string) (Value, error) {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}))

	// --- glob expansion: lexicographically sorted, directories excluded ---
	e.RegisterFunction(Callable{Name: "glob", Pure: false, Fn: func(env *Env, args []Value) (Value, *Externality, error) {
		pattern, err := arg1StringArgs(args, "glob")
		if err != nil {
			return nil, nil, err
		}
		base := env.BaseDir
		if base == "" {
			base = "."
		}
		matches, err := doublestar.Glob(os.DirFS(base), pattern)
		if err != nil {
			return nil, nil, fmt.Errorf("glob(%q): %w", pattern, err)
		}
		var files []string
		for _, m := range matches {
			info, err := os.Stat(filepath.Join(base, m))
			if err != nil || info.IsDir() {
				continue
			}
			files = append(files, m)
		}
		sort.Strings(files)
		out := make([]Value, len(files))
		for i, f := range files {
			out[i] = f
		}
		return out, &Externality{Kind: "fs", Detail: pattern}, nil
	}})

	// --- environment reads ---
	e.RegisterFunction(Callable{Name: "env", Pure: false, Fn: func(_ *Env, args []Value) (Value, *Externality, error) {
		if len(args) < 1 || len(args) > 2 {
			return nil, nil, fmt.Errorf("env expects (name) or (name, default)")
		}
		name, err := AsString(args[0])
		if err != nil {
			return nil, nil, err
		}
		v, ok := os.LookupEnv(name)
		ext := &Externality{Kind: "env", Detail: name}
		if !ok {
			if len(args) == 2 {
				return args[1], ext, nil
			}
			return nil, ext, nil
		}
		return v, ext, nil
	}})

	// --- HTTP fetch: byte budget and host policy ---
	e.RegisterFunction(Callable{Name: "fetch", Pure: false, Fn: func(env *Env, args []Value) (Value, *Externality, error) {
		url, err := arg1StringArgs(args, "fetch")
		if err != nil {
			return nil, nil, err
		}
		ext := &Externality{Kind: "fetch", Detail: url}
		body, err := doFetch(env, url)
		if err != nil {
			return nil, ext, err
		}
		return body, ext, nil
	}})

	// --- bounded subprocess execution ---
	e.RegisterFunction(Callable{Name: "shell", Pure: false, Fn: func(env *Env, args []Value) (Value, *Externality, error) {
		cmdline, err := arg1StringArgs(args, "shell")
		if err != nil {
			return nil, nil, err
		}
		ext := &Externality{Kind: "shell", Detail: cmdline}
		out, err := doShell(env, cmdline)
		if err != nil {
			return nil, ext, err
		}
		return out, ext, nil
	}})
}

func arg1String(a []Value, name string) (string, error) {
	if len(a) != 1 {
		return "", fmt.Errorf("%s expects one argument", name)
	}
	return AsString(a[0])
}

func arg1List(a []Value, name string) ([]Value, error) {
	if len(a) != 1 {
		return nil, fmt.Errorf("%s expects one argument", name)
	}
	return AsList(a[0])
}

func arg1StringArgs(a []Value, name string) (string, error) {
	return arg1String(a, name)
}

// fsFunc adapts a single-path filesystem query into a Callable, resolving
// the path against the env's BaseDir and recording it as the externality
// per spec §4.7.
func fsFunc(name string, fn func(resolved string) (Value, error)) Callable {
	return Callable{Name: name, Pure: false, Fn: func(env *Env, args []Value) (Value, *Externality, error) {
		path, err := arg1StringArgs(args, name)
		if err != nil {
			return nil, nil, err
		}
		resolved := env.resolvePath(path)
		v, err := fn(resolved)
		return v, &Externality{Kind: "fs", Detail: resolved}, err
	}}
}

func (e *Env) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	base := e.BaseDir
	if base == "" {
		base = "."
	}
	return filepath.Join(base, path)
}

// fetchCacheKey derives the cache-relative path for a fetched URL: a flat
// sha256 digest keeps the cache a single directory regardless of how the
// URL's own path segments are shaped (spec §5).
func fetchCacheKey(rawURL string) string {
	h := sha256.Sum256([]byte(rawURL))
	return filepath.Join("fetch", hex.EncodeToString(h[:]))
}

// doFetch performs a policy-gated, budget-bounded HTTP GET, consulting and
// populating env.Cache when one is configured (spec §5: "writes happen to a
// temporary file in the cache directory and are atomically renamed... a
// fetch is aborted mid-stream after a partial temp write... cache file
// removed"). A cache hit skips the network entirely.
func doFetch(env *Env, rawURL string) (string, error) {
	if err := env.Network.Check(rawURL); err != nil {
		return "", err
	}

	var cacheKey string
	if env.Cache != nil {
		cacheKey = fetchCacheKey(rawURL)
		if cached, ok, err := env.Cache.Read(cacheKey); err == nil && ok {
			return string(cached), nil
		}
	}

	resp, err := http.Get(rawURL)
	if err != nil {
		return "", diag.Wrap(diag.Policy, "FetchFailed", err)
	}
	defer resp.Body.Close()
	limit := env.Budgets.FetchMaxBytes
	if limit <= 0 {
		limit = 1 << 62
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		if env.Cache != nil {
			env.Cache.Remove(cacheKey)
		}
		return "", diag.Wrap(diag.Policy, "FetchFailed", err)
	}
	if int64(len(body)) > limit {
		if env.Cache != nil {
			env.Cache.Remove(cacheKey)
		}
		return "", diag.New(diag.Policy, "FetchTooLarge",
			fmt.Sprintf("fetch %q exceeds maximum response size: configured=%d", rawURL, limit))
	}

	if env.Cache != nil {
		if err := env.Cache.WriteAtomic(cacheKey, body); err != nil {
			return "", diag.Wrap(diag.Io, "FetchCacheWrite", err)
		}
	}
	return string(body), nil
}

func doShell(env *Env, cmdline string) (string, error) {
	argv, err := shlex.Split(cmdline)
	if err != nil || len(argv) == 0 {
		return "", fmt.Errorf("shell(%q): not a parseable command", cmdline)
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = env.BaseDir
	limit := env.Budgets.CommandCapturedMaxBytes
	if limit <= 0 {
		limit = 1 << 62
	}
	out, err := cmd.Output()
	if err != nil {
		return "", diag.Wrap(diag.Policy, "CommandFailed", fmt.Errorf("shell(%q): %w", cmdline, err))
	}
	if int64(len(out)) > limit {
		return "", diag.New(diag.Policy, "CommandOutputTooLarge",
			fmt.Sprintf("shell(%q) output exceeds maximum captured size: configured=%d", cmdline, limit))
	}
	return strings.TrimRight(string(out), "\r\n"), nil
}
