package pass

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/printer"
	"go/token"
	"go/types"
	"path"
	"strings"

	"fortio.org/safecast"
	"github.com/rs/zerolog"
	"golang.org/x/tools/go/ast/astutil"
	"golang.org/x/tools/go/types/typeutil"

	"interpol/internal/diag"
	"interpol/internal/edit"
	"interpol/internal/fragment"
	"interpol/internal/rewrite"
	"interpol/internal/source"
	"interpol/internal/wrap"
	"interpol/protocol"
)

// Unit is one type-checked file.
type Unit struct {
	Fset *token.FileSet
	File *ast.File
	Pkg  *types.Package
	// Info must record Types, Defs, Uses and Implicits.
	Info *types.Info
	// Src is the content File was parsed from.
	Src []byte
	// Files maps token positions to diagnostic spans; Src must be loaded
	// in it under the file's name.
	Files      *source.FileSet
	Directives wrap.Directives
}

// Site summarizes one recognized call site.
type Site struct {
	Location    string
	Entry       string
	Shape       fragment.Shape
	Slots       int
	Resolutions []string
	Rewritten   bool
}

// Result is the outcome of one run.
type Result struct {
	// Output is the rewritten file; it equals Src when nothing changed.
	Output  []byte
	Changed bool
	Sites   []Site
	Imports []rewrite.Import
}

type run struct {
	cfg   Config
	u     Unit
	rep   diag.Reporter
	log   zerolog.Logger
	env   *fragment.InfoEnv
	synth *rewrite.Synthesizer

	interps map[string]*typeutil.Map // entry name -> recv type -> describe outcome
	sites   []Site
}

type described struct {
	in  *wrap.Interpolator
	err error
}

// Run rewrites every interpolator call site of u. Sites that fail are
// reported and left as written; the others are replaced innermost first so
// an enclosing site sees the rewritten form of the calls in its slots.
func Run(cfg Config, u Unit, rep diag.Reporter) (*Result, error) {
	if u.File == nil || u.Fset == nil || u.Info == nil {
		return nil, errors.New("pass: unit is missing syntax or type information")
	}
	if rep == nil {
		rep = diag.NopReporter{}
	}
	names := rewrite.NewNames(u.File)
	r := &run{
		cfg: cfg,
		u:   u,
		rep: rep,
		log: cfg.logger(),
		env: fragment.NewInfoEnv(u.Fset, u.File, u.Info, u.Src),
		synth: &rewrite.Synthesizer{
			Imports: rewrite.NewImports(u.Pkg, u.File, u.Info, names),
			Names:   names,
			Runtime: cfg.runtime(),
		},
		interps: make(map[string]*typeutil.Map),
	}

	astutil.Apply(u.File, nil, func(c *astutil.Cursor) bool {
		call, ok := c.Node().(*ast.CallExpr)
		if !ok {
			return true
		}
		if expr := r.site(call); expr != nil {
			c.Replace(expr)
			r.env.Replace(call, expr)
		}
		return true
	})

	res := &Result{Output: u.Src, Sites: r.sites}
	edits := r.edits()
	if len(edits) == 0 {
		return res, nil
	}
	out, err := r.apply(edits)
	if err != nil {
		return res, err
	}
	res.Output = out
	res.Changed = true
	res.Imports = r.synth.Imports.Added()
	return res, nil
}

// site rewrites one call, or returns nil when the call is not a site or
// cannot be rewritten.
func (r *run) site(call *ast.CallExpr) ast.Expr {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return nil
	}
	point, ok := wrap.EntryPoints[sel.Sel.Name]
	if !ok {
		return nil
	}
	callerType := r.env.TypeOf(sel.X)
	if callerType == nil || r.isPackage(sel.X) {
		return nil
	}
	in, err := r.describe(callerType, point.Entry)
	if err != nil {
		if !errors.Is(err, wrap.ErrNotInterpolator) {
			r.reportBackend(call, err)
		}
		return nil
	}

	shape := fragment.ShapeFragments
	if point.Batched {
		shape = fragment.ShapeBatch
	}
	loc := r.location(call.Pos())
	rec := Site{Location: loc, Entry: point.Entry, Shape: shape}
	defer func() { r.sites = append(r.sites, rec) }()

	site, err := fragment.Extract(call, shape, r.env)
	if err != nil {
		r.reportShape(err)
		return nil
	}
	tpl := site.Template()
	rec.Slots = len(tpl.Slots)

	params := make([]rewrite.Param, len(tpl.Slots))
	failed := false
	for i, slot := range tpl.Slots {
		res, err := in.Table.Resolve(slot.Type)
		if err != nil {
			r.reportResolution(slot, in, err)
			failed = true
			continue
		}
		params[i] = rewrite.Param{Slot: slot, Resolution: res, Location: r.location(slot.Pos)}
		rec.Resolutions = append(rec.Resolutions, res.String())
	}
	if failed {
		return nil
	}

	expr, err := r.synth.Synthesize(rewrite.Input{
		Site:       site,
		Interp:     in,
		Template:   tpl,
		Params:     params,
		CallerType: callerType,
	})
	if err != nil {
		r.reportSynth(call, err)
		return nil
	}
	rec.Rewritten = true
	r.log.Debug().
		Str("site", loc).
		Stringer("shape", shape).
		Int("slots", rec.Slots).
		Strs("resolutions", rec.Resolutions).
		Msg("rewrite")
	return expr
}

func (r *run) isPackage(x ast.Expr) bool {
	id, ok := x.(*ast.Ident)
	if !ok {
		return false
	}
	_, isPkg := r.u.Info.Uses[id].(*types.PkgName)
	return isPkg
}

func (r *run) describe(recv types.Type, entry string) (*wrap.Interpolator, error) {
	m := r.interps[entry]
	if m == nil {
		m = new(typeutil.Map)
		r.interps[entry] = m
	}
	if d, ok := m.At(recv).(described); ok {
		return d.in, d.err
	}
	in, err := wrap.Describe(recv, entry, r.u.Directives)
	m.Set(recv, described{in: in, err: err})
	return in, err
}

func (r *run) location(pos token.Pos) string {
	p := r.u.Fset.Position(pos)
	if !p.IsValid() {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", source.RelativePath(p.Filename, r.cfg.ProjectRoot), p.Line, p.Column)
}

// edits turns every outermost replaced node into a text edit.
func (r *run) edits() []edit.TextEdit {
	var out []edit.TextEdit
	tf := r.u.Fset.File(r.u.File.Pos())
	ast.Inspect(r.u.File, func(n ast.Node) bool {
		if n == nil || !r.env.Replaced(n) {
			return true
		}
		pos, end := r.env.Range(n)
		var buf bytes.Buffer
		cfg := printer.Config{Mode: printer.UseSpaces | printer.TabIndent, Tabwidth: 8}
		if err := cfg.Fprint(&buf, r.u.Fset, n); err != nil {
			r.log.Debug().Err(err).Msg("print rewritten site")
			return false
		}
		start, err := safecast.Conv[uint32](tf.Offset(pos))
		if err != nil {
			return false
		}
		stop, err := safecast.Conv[uint32](tf.Offset(end))
		if err != nil {
			return false
		}
		text := carryComments(buf.String(), r.u.File.Comments, pos, end)
		out = append(out, edit.TextEdit{Span: source.Span{Start: start, End: stop}, NewText: text})
		return false
	})
	return out
}

// carryComments keeps the comments of the replaced range [pos, end). The
// printed node has none, so they are placed after the first open
// parenthesis, where a line break is always legal. The printed text starts
// with a caller made of identifiers and selectors or with a binding func
// literal, so that parenthesis is never inside a literal.
func carryComments(text string, groups []*ast.CommentGroup, pos, end token.Pos) string {
	var lead strings.Builder
	for _, g := range groups {
		if g.End() <= pos || g.Pos() >= end {
			continue
		}
		for _, c := range g.List {
			if c.Pos() >= pos && c.End() <= end {
				lead.WriteString(c.Text)
				lead.WriteByte('\n')
			}
		}
	}
	i := strings.IndexByte(text, '(')
	if lead.Len() == 0 || i < 0 {
		return text
	}
	return text[:i+1] + lead.String() + text[i+1:]
}

// apply splices the edits into the source, adds the new imports and formats
// the result.
func (r *run) apply(edits []edit.TextEdit) ([]byte, error) {
	out, err := edit.Apply(r.u.Src, edits)
	if err != nil {
		return nil, fmt.Errorf("apply rewrites: %w", err)
	}
	fset := token.NewFileSet()
	name := r.u.Fset.Position(r.u.File.Pos()).Filename
	file, err := parser.ParseFile(fset, name, out, parser.ParseComments)
	if err != nil {
		diag.ReportError(r.rep, diag.RewriteOutputInvalid, r.fileSpan(), fmt.Sprintf("rewritten file does not parse: %v", err)).Emit()
		return nil, fmt.Errorf("reparse %s: %w", name, err)
	}
	for _, imp := range r.synth.Imports.Added() {
		alias := imp.Name
		if alias == path.Base(imp.Path) {
			alias = ""
		}
		astutil.AddNamedImport(fset, file, alias, imp.Path)
	}
	var buf bytes.Buffer
	if err := format.Node(&buf, fset, file); err != nil {
		return nil, fmt.Errorf("format %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func (r *run) span(pos, end token.Pos) source.Span {
	if r.u.Files == nil {
		return source.Span{File: source.NoFile}
	}
	sp, ok := r.u.Files.SpanOf(r.u.Fset, pos, end)
	if !ok {
		return source.Span{File: source.NoFile}
	}
	return sp
}

func (r *run) fileSpan() source.Span {
	return r.span(r.u.File.Package, r.u.File.Name.End())
}

func (r *run) reportShape(err error) {
	var se *fragment.ShapeError
	if !errors.As(err, &se) {
		diag.ReportError(r.rep, diag.ShapeInfo, r.fileSpan(), err.Error()).Emit()
		return
	}
	code := diag.ShapeNotTemplate
	switch se.Reason {
	case fragment.ReasonSpread:
		code = diag.ShapeSpread
	case fragment.ReasonBatchFunc:
		code = diag.ShapeBatchFunc
	}
	pos, end := r.env.Range(se.Node)
	sp := r.span(pos, end)
	b := diag.ReportError(r.rep, code, sp, se.Error())
	if r.cfg.Trace && se.Dump != "" {
		b.WithNote(sp, "syntax:\n"+se.Dump)
	}
	b.Emit()
	r.log.Debug().Str("site", r.location(pos)).Str("reason", se.Detail).Str("dump", se.Dump).Msg("shape mismatch")
}

func (r *run) reportResolution(slot *fragment.Slot, in *wrap.Interpolator, err error) {
	sp := r.span(slot.Pos, slot.End)
	var re *wrap.ResolutionError
	if !errors.As(err, &re) {
		diag.ReportError(r.rep, diag.WrapNoCandidate, sp, err.Error()).Emit()
		return
	}
	code := diag.WrapNoCandidate
	if re.Ambiguous {
		code = diag.WrapAmbiguous
	}
	msg := fmt.Sprintf("slot %q: %s", slot.Text, re.Error())
	b := diag.ReportError(r.rep, code, sp, msg)
	listed := re.Candidates
	if re.Ambiguous {
		listed = re.Matches
	}
	for _, c := range listed {
		b.WithNote(r.declSpan(c.Method, sp), "candidate "+c.String())
	}
	for _, m := range re.Malformed {
		b.WithNote(r.declSpan(m.Method, sp), fmt.Sprintf("%s: %s", diag.WrapMalformedCandidate.ID(), m.String()))
	}
	b.Emit()
	r.log.Debug().
		Str("slot", slot.Text).
		Str("type", types.TypeString(slot.Type, nil)).
		Str("interpolator", types.TypeString(in.Recv, nil)).
		Msg("no wrap")
}

func (r *run) declSpan(fn *types.Func, fallback source.Span) source.Span {
	if r.u.Files == nil {
		return fallback
	}
	name := fn.Name()
	sp, ok := r.u.Files.SpanOf(r.u.Fset, fn.Pos(), fn.Pos()+token.Pos(len(name)))
	if !ok {
		return fallback
	}
	return sp
}

func (r *run) reportBackend(call *ast.CallExpr, err error) {
	sp := r.span(call.Pos(), call.End())
	var be *wrap.BackendError
	if !errors.As(err, &be) {
		diag.ReportError(r.rep, diag.RewriteNoBackend, sp, err.Error()).Emit()
		return
	}
	code := diag.RewriteNoBackend
	if be.Reason == wrap.BackendResultMismatch {
		code = diag.RewriteResultMismatch
	}
	diag.ReportError(r.rep, code, sp, be.Error()).
		WithNote(r.declSpan(be.Backend, sp), "backend declared here").
		Emit()
}

func (r *run) reportSynth(call *ast.CallExpr, err error) {
	pos, end := r.env.Range(call)
	sp := r.span(pos, end)
	var ue *rewrite.UnnameableError
	var ae *protocol.MismatchedArityError
	switch {
	case errors.As(err, &ue):
		diag.ReportError(r.rep, diag.RewriteUnnameableType, sp, ue.Error()).Emit()
	case errors.As(err, &ae):
		diag.ReportError(r.rep, diag.RewriteArity, sp, ae.Error()).Emit()
	default:
		diag.ReportError(r.rep, diag.RewriteInfo, sp, strings.TrimPrefix(err.Error(), "rewrite: ")).Emit()
	}
}
