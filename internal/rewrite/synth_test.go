package rewrite

import (
	"bytes"
	"errors"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"go/types"
	"strings"
	"testing"

	"golang.org/x/tools/go/ast/astutil"

	"interpol/internal/fragment"
	"interpol/internal/wrap"
)

// The package under test provides its own Guard and SlotInfo so rewritten
// sources type-check without importing the runtime.
const header = `package p

type SlotInfo struct {
	Text     string
	Exact    bool
	Ordinal  int
	Total    int
	Location string
}

func Guard[T any](s SlotInfo, f func() T) T { return f() }

type Arg struct{ v any }

type Q struct{}

func (Q) Invoke(fragments ...any) string                                { return "" }
func (Q) Interpolate(parts func() []string, params func() []Arg) string { return "" }
func (Q) WrapInt(v int) Arg                                             { return Arg{v} }
func (Q) WrapString(v string) Arg                                       { return Arg{v} }

type P struct{ n int }

func (*P) Invoke(fragments ...any) int                                 { return 0 }
func (*P) Interpolate(parts func() []string, params func() []any) int  { return 0 }

type User struct{ ID int }

type B struct{}

func (B) InvokeBatch(fragments func(User) []any) string                                 { return "" }
func (B) InterpolateBatch(parts func() []string, params func(User) []Arg) string       { return "" }
func (B) WrapInt(v int) Arg                                                             { return Arg{v} }

func newQ() *Q { return &Q{} }

var (
	q    Q
	arr  [2]P
	pv   P
	b    B
	id   int
	name string
)
`

type result struct {
	out     string
	imports []Import
}

func typecheck(t *testing.T, fset *token.FileSet, file *ast.File) (*types.Package, *types.Info) {
	t.Helper()
	info := &types.Info{
		Types:     make(map[ast.Expr]types.TypeAndValue),
		Defs:      make(map[*ast.Ident]types.Object),
		Uses:      make(map[*ast.Ident]types.Object),
		Implicits: make(map[ast.Node]types.Object),
	}
	pkg, err := (&types.Config{}).Check("p", fset, []*ast.File{file}, info)
	if err != nil {
		t.Fatalf("type-check: %v", err)
	}
	return pkg, info
}

type prepared struct {
	fset  *token.FileSet
	file  *ast.File
	call  *ast.CallExpr
	synth *Synthesizer
	in    Input
}

// prepare resolves the first entry point call inside body.
func prepare(t *testing.T, body string) prepared {
	t.Helper()
	src := header + "\nfunc f() any {\n" + body + "\n}\n"
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "p.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	pkg, info := typecheck(t, fset, file)
	env := fragment.NewInfoEnv(fset, file, info, []byte(src))

	var call *ast.CallExpr
	ast.Inspect(file, func(n ast.Node) bool {
		if c, ok := n.(*ast.CallExpr); ok && call == nil {
			if sel, ok := c.Fun.(*ast.SelectorExpr); ok {
				if _, entry := wrap.EntryPoints[sel.Sel.Name]; entry {
					call = c
				}
			}
		}
		return call == nil
	})
	if call == nil {
		t.Fatal("no call site")
	}
	sel := call.Fun.(*ast.SelectorExpr)
	point := wrap.EntryPoints[sel.Sel.Name]
	shape := fragment.ShapeFragments
	if point.Batched {
		shape = fragment.ShapeBatch
	}
	site, err := fragment.Extract(call, shape, env)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	callerType := info.TypeOf(sel.X)
	interp, err := wrap.Describe(callerType, sel.Sel.Name, nil)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	tpl := site.Template()
	params := make([]Param, len(tpl.Slots))
	for i, slot := range tpl.Slots {
		res, err := interp.Table.Resolve(slot.Type)
		if err != nil {
			t.Fatalf("Resolve %s: %v", slot.Text, err)
		}
		params[i] = Param{Slot: slot, Resolution: res, Location: "p.go:1:1"}
	}
	names := NewNames(file)
	s := &Synthesizer{Imports: NewImports(pkg, file, info, names), Names: names, Runtime: "p"}
	return prepared{
		fset:  fset,
		file:  file,
		call:  call,
		synth: s,
		in:    Input{Site: site, Interp: interp, Template: tpl, Params: params, CallerType: callerType},
	}
}

// synthesize rewrites the first entry point call inside body and checks that
// the rewritten file still type-checks.
func synthesize(t *testing.T, body string) (result, error) {
	t.Helper()
	p := prepare(t, body)
	fset, file, call, s := p.fset, p.file, p.call, p.synth
	expr, err := s.Synthesize(p.in)
	if err != nil {
		return result{}, err
	}
	astutil.Apply(file, nil, func(c *astutil.Cursor) bool {
		if c.Node() == call {
			c.Replace(expr)
		}
		return true
	})
	var buf bytes.Buffer
	if err := format.Node(&buf, fset, file); err != nil {
		t.Fatalf("print: %v", err)
	}
	out := buf.String()
	refset := token.NewFileSet()
	refile, err := parser.ParseFile(refset, "p.go", out, 0)
	if err != nil {
		t.Fatalf("rewritten file does not parse: %v\n%s", err, out)
	}
	if _, err := (&types.Config{}).Check("p", refset, []*ast.File{refile}, nil); err != nil {
		t.Fatalf("rewritten file does not type-check: %v\n%s", err, out)
	}
	return result{out: out, imports: s.Imports.Added()}, nil
}

func mustSynthesize(t *testing.T, body string) result {
	t.Helper()
	r, err := synthesize(t, body)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	return r
}

func assertContains(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}
}

func TestSynthesizeWrapped(t *testing.T) {
	r := mustSynthesize(t, `return q.Invoke("a ", id, " b ", name)`)
	assertContains(t, r.out,
		"q.Interpolate(",
		`[]string{"a ", " b ", ""}`,
		"func() []Arg",
		"q.WrapInt(id)",
		"q.WrapString(name)",
		`Text: "id"`,
		"Exact: true",
		"Ordinal: 2",
		"Total: 2",
		`Location: "p.go:1:1"`,
	)
	if strings.Contains(r.out, "q.Invoke(") {
		t.Errorf("entry point call left behind:\n%s", r.out)
	}
	if len(r.imports) != 0 {
		t.Errorf("unexpected imports %v", r.imports)
	}
}

func TestSynthesizeIdentity(t *testing.T) {
	r := mustSynthesize(t, `return pv.Invoke("n=", id + 1)`)
	assertContains(t, r.out, "pv.Interpolate(", "func() []any", "return id + 1")
}

func TestSynthesizeBindsImpureCaller(t *testing.T) {
	r := mustSynthesize(t, `return newQ().Invoke("x", id)`)
	assertContains(t, r.out, "func(interp *Q) string", "interp.Interpolate(", "interp.WrapInt(id)", "}(newQ())")
}

func TestSynthesizeTakesAddressForPointerReceiver(t *testing.T) {
	r := mustSynthesize(t, `i := 0
	return arr[i+0].Invoke("x", id)`)
	assertContains(t, r.out, "func(interp *P) int", "(&arr[i+0])")
}

func TestSynthesizeBatch(t *testing.T) {
	r := mustSynthesize(t, `return b.InvokeBatch(func(u User) []any { return []any{"id=", u.ID, ";"} })`)
	assertContains(t, r.out,
		"b.InterpolateBatch(",
		"func(u User) []Arg",
		"b.WrapInt(u.ID)",
		`[]string{"id=", ";"}`,
	)
}

func TestSynthesizeUnnameableElem(t *testing.T) {
	_, err := synthesize(t, `Arg := 1
	_ = Arg
	return q.Invoke("x", id)`)
	var ue *UnnameableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnnameableError, got %v", err)
	}
}

func TestSynthesizeFailureRecordsNoImports(t *testing.T) {
	p := prepare(t, `Q := 0
	_ = Q
	return newQ().Invoke("x", id)`)
	p.synth.Runtime = DefaultRuntime
	_, err := p.synth.Synthesize(p.in)
	var ue *UnnameableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnnameableError for the shadowed receiver, got %v", err)
	}
	if added := p.synth.Imports.Added(); len(added) != 0 {
		t.Fatalf("failed site left imports %v", added)
	}

	ok := prepare(t, `return q.Invoke("x", id)`)
	ok.synth.Runtime = DefaultRuntime
	if _, err := ok.synth.Synthesize(ok.in); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if added := ok.synth.Imports.Added(); len(added) != 1 || added[0].Path != DefaultRuntime {
		t.Fatalf("added = %v", added)
	}
}

func TestImportsAllocatesNames(t *testing.T) {
	src := `package p

import "strings"

var protocol = strings.ToUpper
`
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "p.go", src, 0)
	if err != nil {
		t.Fatal(err)
	}
	info := &types.Info{Defs: make(map[*ast.Ident]types.Object), Implicits: make(map[ast.Node]types.Object)}
	pkg, err := (&types.Config{Importer: fakeImporter{}}).Check("p", fset, []*ast.File{file}, info)
	if err != nil {
		t.Fatal(err)
	}
	im := NewImports(pkg, file, info, NewNames(file))
	pos := file.Decls[len(file.Decls)-1].Pos()
	if got := im.Package("strings", "strings", pos); got != "strings" {
		t.Fatalf("existing import spelled %q", got)
	}
	if got := im.Package("interpol/protocol", "protocol", pos); got != "protocol1" {
		t.Fatalf("new import spelled %q", got)
	}
	if got := im.Package("interpol/protocol", "protocol", pos); got != "protocol1" {
		t.Fatalf("second use spelled %q", got)
	}
	added := im.Added()
	if len(added) != 1 || added[0] != (Import{Name: "protocol1", Path: "interpol/protocol"}) {
		t.Fatalf("added = %v", added)
	}
}

type fakeImporter struct{}

func (fakeImporter) Import(path string) (*types.Package, error) {
	pkg := types.NewPackage(path, path)
	sig := types.NewSignatureType(nil, nil, nil,
		types.NewTuple(types.NewVar(token.NoPos, pkg, "s", types.Typ[types.String])),
		types.NewTuple(types.NewVar(token.NoPos, pkg, "", types.Typ[types.String])), false)
	pkg.Scope().Insert(types.NewFunc(token.NoPos, pkg, "ToUpper", sig))
	pkg.MarkComplete()
	return pkg, nil
}

func TestNamesFresh(t *testing.T) {
	file, err := parser.ParseFile(token.NewFileSet(), "p.go", "package p\n\nvar interp, interp1 int\n", 0)
	if err != nil {
		t.Fatal(err)
	}
	n := NewNames(file)
	if got := n.Fresh("interp"); got != "interp2" {
		t.Fatalf("Fresh = %q", got)
	}
	if got := n.Fresh("interp"); got != "interp3" {
		t.Fatalf("second Fresh = %q", got)
	}
}
