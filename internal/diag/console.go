package diag

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"tml/internal/source"
)

var (
	errColor  = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	infoColor = color.New(color.FgCyan)
	posColor  = color.New(color.Faint)
)

// Print writes the bag's diagnostics to w, one per line, resolving spans
// through fs when possible. Colors follow the fatih/color global settings,
// so callers can force plain output via color.NoColor.
func Print(w io.Writer, fs *source.FileSet, b *Bag) {
	if b == nil {
		return
	}
	for _, d := range b.Items() {
		var label string
		switch d.Severity {
		case SevError:
			label = errColor.Sprint("error")
		case SevWarning:
			label = warnColor.Sprint("warning")
		default:
			label = infoColor.Sprint("info")
		}
		pos := formatSpan(fs, d.Primary)
		fmt.Fprintf(w, "%s %s[%s]: %s\n", pos, label, d.Code, d.Message)
		for _, n := range d.Notes {
			fmt.Fprintf(w, "  %s note: %s\n", formatSpan(fs, n.Span), n.Msg)
		}
	}
}

func formatSpan(fs *source.FileSet, sp source.Span) string {
	if fs == nil || sp.File == source.NoFileID {
		return posColor.Sprint("<unknown>")
	}
	f := fs.Get(sp.File)
	if f == nil {
		return posColor.Sprint("<unknown>")
	}
	if lc, ok := fs.Position(sp.File, sp.Start); ok {
		return posColor.Sprintf("%s:%d:%d", f.Path, lc.Line, lc.Col)
	}
	return posColor.Sprint(f.Path)
}
