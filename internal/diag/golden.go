package diag

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"interpol/internal/source"
)

// goldenLine is one rendered entry; notes become entries of their own.
type goldenLine struct {
	sev  string
	code string
	path string
	line uint32
	col  uint32
	msg  string
}

func (l goldenLine) String() string {
	return fmt.Sprintf("%s %s %s:%d:%d %s", l.sev, l.code, l.path, l.line, l.col, l.msg)
}

// FormatGoldenDiagnostics renders one line per diagnostic (and per note when
// includeNotes is set), ordered by path, position, severity, code and message.
// The order does not depend on the order of diags. Unanchored diagnostics
// render with an empty path and position 0:0.
func FormatGoldenDiagnostics(diags []Diagnostic, fs *source.FileSet, includeNotes bool) string {
	if fs == nil || len(diags) == 0 {
		return ""
	}
	lines := make([]goldenLine, 0, len(diags))
	for i := range diags {
		d := &diags[i]
		lines = append(lines, goldenAt(fs, d.Primary, d.Severity.Label(), d.Code, d.Message))
		if !includeNotes {
			continue
		}
		for _, n := range d.Notes {
			lines = append(lines, goldenAt(fs, n.Span, "note", d.Code, n.Msg))
		}
	}
	slices.SortStableFunc(lines, func(a, b goldenLine) int {
		return cmp.Or(
			cmp.Compare(a.path, b.path),
			cmp.Compare(a.line, b.line),
			cmp.Compare(a.col, b.col),
			cmp.Compare(a.sev, b.sev),
			cmp.Compare(a.code, b.code),
			cmp.Compare(a.msg, b.msg),
		)
	})
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.String()
	}
	return strings.Join(out, "\n")
}

func goldenAt(fs *source.FileSet, sp source.Span, sev string, code Code, msg string) goldenLine {
	l := goldenLine{sev: sev, code: code.ID(), msg: oneLine(msg)}
	if f := fs.Get(sp.File); f != nil {
		start, _ := fs.Resolve(sp)
		l.path = source.RelativePath(f.Path, fs.BaseDir())
		l.line, l.col = start.Line, start.Col
	}
	return l
}

// oneLine folds line breaks into spaces.
func oneLine(msg string) string {
	msg = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(msg)
	return strings.TrimSpace(msg)
}
