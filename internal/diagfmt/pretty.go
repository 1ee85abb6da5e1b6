package diagfmt

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"interpol/internal/diag"
	"interpol/internal/source"
)

type palette struct {
	sev    map[diag.Severity]*color.Color
	code   *color.Color
	path   *color.Color
	gutter *color.Color
	caret  *color.Color
	note   *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		sev: map[diag.Severity]*color.Color{
			diag.SevError:   color.New(color.FgRed, color.Bold),
			diag.SevWarning: color.New(color.FgYellow, color.Bold),
			diag.SevInfo:    color.New(color.FgCyan, color.Bold),
		},
		code:   color.New(color.FgMagenta),
		path:   color.New(color.Bold),
		gutter: color.New(color.FgBlue),
		caret:  color.New(color.FgGreen, color.Bold),
		note:   color.New(color.FgCyan),
	}
	all := []*color.Color{p.code, p.path, p.gutter, p.caret, p.note}
	for _, c := range p.sev {
		all = append(all, c)
	}
	// глобальный color.NoColor не трогаем: он общий для всего процесса
	for _, c := range all {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(s diag.Severity) *color.Color {
	if c, ok := p.sev[s]; ok {
		return c
	}
	return p.code
}

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждого diag печатает:
// <path>:<line>:<col>: <SEV> <CODE>: <Message>
// затем контекст строки с подчёркиванием ^~~~ по Span, затем Notes с аналогичным форматом.
// Цвет включается опцией.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	if bag == nil {
		return
	}
	p := newPalette(opts.Color)
	items := bag.Items()
	n := limit(len(items), opts.Max)
	for i := range n {
		d := &items[i]
		if i > 0 {
			fmt.Fprintln(w)
		}
		writeHeader(w, p, fs, opts, d)
		writeSnippet(w, p, fs, opts, d.Primary)
		if !opts.ShowNotes {
			continue
		}
		for _, note := range d.Notes {
			fmt.Fprintf(w, "  %s ", p.note.Sprint("note:"))
			if loc := location(fs, opts.PathMode, note.Span); loc != "" {
				fmt.Fprintf(w, "%s: ", p.path.Sprint(loc))
			}
			fmt.Fprintln(w, note.Msg)
		}
	}
	if hidden := len(items) - n; hidden > 0 {
		fmt.Fprintf(w, "\n... %d more diagnostic(s) not shown\n", hidden)
	}
}

func writeHeader(w io.Writer, p palette, fs *source.FileSet, opts PrettyOpts, d *diag.Diagnostic) {
	if loc := location(fs, opts.PathMode, d.Primary); loc != "" {
		fmt.Fprintf(w, "%s: ", p.path.Sprint(loc))
	}
	fmt.Fprintf(w, "%s %s: %s\n", p.severity(d.Severity).Sprint(d.Severity.String()), p.code.Sprint(d.Code.ID()), d.Message)
}

func location(fs *source.FileSet, mode PathMode, sp source.Span) string {
	if fs == nil {
		return ""
	}
	f := fs.Get(sp.File)
	if f == nil {
		return ""
	}
	start, _ := fs.Resolve(sp)
	return fmt.Sprintf("%s:%d:%d", formatPath(f, fs, mode), start.Line, start.Col)
}

func writeSnippet(w io.Writer, p palette, fs *source.FileSet, opts PrettyOpts, sp source.Span) {
	if fs == nil {
		return
	}
	f := fs.Get(sp.File)
	if f == nil {
		return
	}
	start, end := fs.Resolve(sp)
	ctx := uint32(max(opts.Context, 0))
	first := uint32(1)
	if start.Line > ctx {
		first = start.Line - ctx
	}
	last := min(start.Line+ctx, uint32(len(f.LineIdx))+1)
	gutterWidth := len(strconv.FormatUint(uint64(last), 10))

	for ln := first; ln <= last; ln++ {
		text := strings.TrimRight(f.GetLine(ln), "\r")
		shown := text
		if opts.Width > 0 && runewidth.StringWidth(shown) > int(opts.Width) {
			shown = runewidth.Truncate(shown, int(opts.Width), "…")
		}
		fmt.Fprintf(w, "%s %s\n", p.gutter.Sprintf("%*d |", gutterWidth, ln), shown)
		if ln != start.Line {
			continue
		}
		stop := len(text)
		if end.Line == start.Line {
			stop = min(int(end.Col-1), len(text))
		}
		pad, marks := caret(text, int(start.Col-1), stop)
		fmt.Fprintf(w, "%s %s%s\n", p.gutter.Sprintf("%*s |", gutterWidth, ""), pad, p.caret.Sprint(marks))
	}
}

// caret returns the padding up to byte offset from and an underline covering
// text[from:to] in display columns. Tabs are kept so the underline follows the
// terminal's tab stops.
func caret(text string, from, to int) (pad, marks string) {
	from = min(max(from, 0), len(text))
	to = min(max(to, from), len(text))
	var b strings.Builder
	for _, r := range text[:from] {
		if r == '\t' {
			b.WriteByte('\t')
			continue
		}
		b.WriteString(strings.Repeat(" ", runewidth.RuneWidth(r)))
	}
	width := max(runewidth.StringWidth(text[from:to]), 1)
	return b.String(), "^" + strings.Repeat("~", width-1)
}
