package pass

import (
	"bytes"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"interpol/internal/diag"
	"interpol/internal/source"
	"interpol/internal/wrap"
)

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

type Foo struct{}

type Q struct{}

func (Q) Invoke(fragments ...any) string { return "" }

func (Q) Interpolate(parts func() []string, params func() []Arg) string { return "" }

func (Q) WrapInt(v int) Arg { return Arg{v} }

func (Q) WrapString(v string) Arg { return Arg{v} }

//interpol:strict
func (Q) WrapInt64(v int64) Arg { return Arg{v} }

func newQ() *Q { return &Q{} }

type User struct{ ID int }

type B struct{}

func (B) InvokeBatch(fragments func(User) []any) string { return "" }

func (B) InterpolateBatch(parts func() []string, params func(User) []Arg) string { return "" }

func (B) WrapInt(v int) Arg { return Arg{v} }

var (
	q   Q
	b   B
	id  int
	foo Foo
)
`

type outcome struct {
	res   *Result
	bag   *diag.Bag
	files *source.FileSet
	err   error
}

func runPass(t *testing.T, body string, cfg Config) outcome {
	t.Helper()
	src := []byte(header + "\nfunc f() []string {\n\treturn []string{\n" + body + "\n\t}\n}\n")
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "p.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
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
	files := source.NewFileSetWithBase(".")
	files.AddVirtual("p.go", src)
	dirs := wrap.NewSourceDirectives(fset)
	dirs.Preload(fset, file)
	bag := diag.NewBag(100)
	res, err := Run(cfg, Unit{
		Fset:       fset,
		File:       file,
		Pkg:        pkg,
		Info:       info,
		Src:        src,
		Files:      files,
		Directives: dirs,
	}, diag.BagReporter{Bag: bag})
	return outcome{res: res, bag: bag, files: files, err: err}
}

func localRuntime() Config { return Config{RuntimeImport: "p"} }

func typechecks(t *testing.T, out []byte) {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "p.go", out, 0)
	if err != nil {
		t.Fatalf("output does not parse: %v\n%s", err, out)
	}
	if _, err := (&types.Config{}).Check("p", fset, []*ast.File{file}, nil); err != nil {
		t.Fatalf("output does not type-check: %v\n%s", err, out)
	}
}

func golden(o outcome) string {
	return diag.FormatGoldenDiagnostics(o.bag.Items(), o.files, false)
}

func TestRunRewritesNestedSites(t *testing.T) {
	o := runPass(t, `q.Invoke("outer ", q.Invoke("inner ", id), " end"),`, localRuntime())
	if o.err != nil {
		t.Fatalf("Run: %v", o.err)
	}
	if o.bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics:\n%s", golden(o))
	}
	out := string(o.res.Output)
	if !o.res.Changed {
		t.Fatal("file not changed")
	}
	if strings.Contains(out, "q.Invoke(") {
		t.Fatalf("entry point call left:\n%s", out)
	}
	if n := strings.Count(out, "q.Interpolate("); n != 2 {
		t.Fatalf("got %d backend calls:\n%s", n, out)
	}
	for _, want := range []string{
		`Text: "q.Invoke(\"inner \", id)"`,
		"q.WrapString(q.Interpolate(",
		"q.WrapInt(id)",
		`Location: "p.go:`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}
	typechecks(t, o.res.Output)

	if len(o.res.Sites) != 2 {
		t.Fatalf("got %d sites", len(o.res.Sites))
	}
	// inner site completes first
	if o.res.Sites[0].Slots != 1 || o.res.Sites[0].Resolutions[0] != "WrapInt" {
		t.Fatalf("inner site = %+v", o.res.Sites[0])
	}
	if !o.res.Sites[1].Rewritten || o.res.Sites[1].Resolutions[0] != "WrapString" {
		t.Fatalf("outer site = %+v", o.res.Sites[1])
	}
}

func TestRunRewritesBatchAndImpureCaller(t *testing.T) {
	o := runPass(t, `b.InvokeBatch(func(u User) []any { return []any{"id=", u.ID, ";"} }),
		newQ().Invoke("x", id),`, localRuntime())
	if o.err != nil {
		t.Fatalf("Run: %v", o.err)
	}
	if o.bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics:\n%s", golden(o))
	}
	out := string(o.res.Output)
	for _, want := range []string{
		"b.InterpolateBatch(",
		"func(u User) []Arg",
		"b.WrapInt(u.ID)",
		`[]string{"id=", ";"}`,
		"func(interp *Q) string",
		"interp.WrapInt(id)",
		"}(newQ())",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}
	typechecks(t, o.res.Output)
	if len(o.res.Sites) != 2 || !o.res.Sites[0].Rewritten || !o.res.Sites[1].Rewritten {
		t.Fatalf("sites = %+v", o.res.Sites)
	}
}

func TestRunKeepsCommentsInsideSites(t *testing.T) {
	o := runPass(t, `q.Invoke("a", id /* keep me */, "b"),
		q.Invoke("x ", // first
			q.Invoke("y ", id), // inner
		),`, localRuntime())
	if o.err != nil {
		t.Fatalf("Run: %v", o.err)
	}
	if o.bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics:\n%s", golden(o))
	}
	out := string(o.res.Output)
	for _, want := range []string{"/* keep me */", "// first", "// inner", "q.WrapInt(id)"} {
		if n := strings.Count(out, want); n == 0 || (strings.HasPrefix(want, "/") && n != 1) {
			t.Errorf("output contains %q %d times:\n%s", want, n, out)
		}
	}
	if strings.Contains(out, "q.Invoke(") {
		t.Fatalf("entry point call left:\n%s", out)
	}
	typechecks(t, o.res.Output)
}

func TestRunReportsUnresolvedSlot(t *testing.T) {
	o := runPass(t, `q.Invoke("ok ", id),
		q.Invoke("bad ", foo),`, localRuntime())
	if o.err != nil {
		t.Fatalf("Run: %v", o.err)
	}
	items := o.bag.Items()
	if len(items) != 1 || items[0].Code != diag.WrapNoCandidate {
		t.Fatalf("diagnostics:\n%s", golden(o))
	}
	msg := items[0].Message
	for _, want := range []string{`slot "foo"`, "p.Foo", "WrapInt(int)", "WrapString(string)", "WrapInt64(int64) [strict]"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q does not mention %q", msg, want)
		}
	}
	if len(items[0].Notes) != 3 {
		t.Errorf("got %d candidate notes", len(items[0].Notes))
	}
	out := string(o.res.Output)
	if !strings.Contains(out, `q.Invoke("bad ", foo)`) {
		t.Fatalf("failing site was rewritten:\n%s", out)
	}
	if !strings.Contains(out, "q.WrapInt(id)") {
		t.Fatalf("good site was not rewritten:\n%s", out)
	}
	typechecks(t, o.res.Output)
}

func TestRunStrictWrapRejectsOtherTypes(t *testing.T) {
	o := runPass(t, `q.Invoke("n=", int32(1)),`, localRuntime())
	items := o.bag.Items()
	if len(items) != 1 || items[0].Code != diag.WrapNoCandidate {
		t.Fatalf("diagnostics:\n%s", golden(o))
	}
}

func TestRunReportsShapeErrors(t *testing.T) {
	o := runPass(t, `q.Invoke(id),`, localRuntime())
	items := o.bag.Items()
	if len(items) != 1 || items[0].Code != diag.ShapeNotTemplate {
		t.Fatalf("diagnostics:\n%s", golden(o))
	}
	if got, _ := o.files.Text(items[0].Primary); got != "id" {
		t.Fatalf("primary span covers %q", got)
	}
	if o.res.Changed {
		t.Fatal("file changed")
	}
}

func TestRunAddsRuntimeImport(t *testing.T) {
	o := runPass(t, `q.Invoke("x", id),`, Config{})
	if o.err != nil {
		t.Fatalf("Run: %v", o.err)
	}
	out := string(o.res.Output)
	for _, want := range []string{`import "interpol/protocol"`, "protocol.Guard(protocol.SlotInfo{"} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}
	if len(o.res.Imports) != 1 || o.res.Imports[0].Path != "interpol/protocol" {
		t.Fatalf("imports = %v", o.res.Imports)
	}
}

func TestRunLeavesPlainFilesAlone(t *testing.T) {
	o := runPass(t, `"nothing to do",`, localRuntime())
	if o.res.Changed || !bytes.Equal(o.res.Output, []byte(header+"\nfunc f() []string {\n\treturn []string{\n\"nothing to do\",\n\t}\n}\n")) {
		t.Fatal("unchanged file was modified")
	}
}

func TestRunTraces(t *testing.T) {
	var buf bytes.Buffer
	cfg := localRuntime()
	cfg.Trace = true
	cfg.Logger = zerolog.New(&buf)
	runPass(t, `q.Invoke("x", id),`, cfg)
	line := buf.String()
	for _, want := range []string{`"message":"rewrite"`, `"slots":1`, `"resolutions":["WrapInt"]`} {
		if !strings.Contains(line, want) {
			t.Errorf("trace %q does not contain %q", line, want)
		}
	}

	buf.Reset()
	cfg.Trace = false
	runPass(t, `q.Invoke("x", id),`, cfg)
	if buf.Len() != 0 {
		t.Fatalf("trace written while disabled: %s", buf.String())
	}
}
