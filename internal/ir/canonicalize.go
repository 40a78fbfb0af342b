package ir

import (
	"strings"

	"github.com/alessio/shellescape"
	"github.com/google/shlex"

	"github.com/leynos/netsuke/internal/tmpl"
)

// Canonicalize applies the command-canonicalization pass from spec §4.5.b:
// every interpolated segment, unless marked `raw`, is replaced by its
// portable single-quote POSIX-quoted form; the `{{ ins }}`/`{{ outs }}`
// placeholders survive verbatim so Ninja can later substitute $in/$out.
// The result must parse as a valid POSIX shell word sequence.
func Canonicalize(r *tmpl.Rendered) (string, error) {
	var b strings.Builder
	for _, seg := range r.Segments {
		switch {
		case !seg.IsInterp:
			b.WriteString(seg.Literal)
		case seg.Placeholder:
			b.WriteString("{{ " + seg.Value + " }}")
		case seg.Raw:
			b.WriteString(seg.Value)
		default:
			b.WriteString(shellescape.Quote(seg.Value))
		}
	}
	canonical := b.String()
	if _, err := shlex.Split(canonical); err != nil {
		return "", err
	}
	return canonical, nil
}
