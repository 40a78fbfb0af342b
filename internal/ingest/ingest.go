// Package ingest implements stage S1: turning a manifest path (or an
// in-memory buffer, for tests) into bytes plus an
// origin label the rest of the pipeline attaches to diagnostics.
package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/leynos/netsuke/internal/diag"
)

// ErrNotFound is wrapped into a diag.Diagnostic when the manifest path does
// not exist; kept as a sentinel so callers can errors.Is against it.
var ErrNotFound = errors.New("manifest not found")

// Source is the ingested manifest: its origin label (normally the path, as
// recorded on every diag.Span) and its raw bytes.
type Source struct {
	Origin string
	Bytes  []byte
}

// FromPath reads path from disk, reporting a diag.Io/NotFound diagnostic
// with an actionable hint when the file is missing, and diag.Io/ReadFailed
// for any other I/O error.
func FromPath(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, diag.Wrap(diag.Io, "NotFound", fmt.Errorf("%s: %w", path, ErrNotFound)).
				WithHint(fmt.Sprintf("check that %q exists and is readable, or pass --file to point at another manifest", path))
		}
		return nil, diag.Wrap(diag.Io, "ReadFailed", fmt.Errorf("reading %s: %w", path, err))
	}
	return &Source{Origin: path, Bytes: data}, nil
}

// FromBytes wraps an in-memory buffer as a Source, used by tests that
// exercise the pipeline without a filesystem.
func FromBytes(origin string, data []byte) *Source {
	return &Source{Origin: origin, Bytes: data}
}
