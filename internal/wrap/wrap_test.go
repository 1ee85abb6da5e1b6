package wrap

import (
	"errors"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type checked struct {
	fset *token.FileSet
	file *ast.File
	pkg  *types.Package
}

func check(t *testing.T, src string) checked {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "q.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	pkg, err := (&types.Config{}).Check("q", fset, []*ast.File{file}, nil)
	if err != nil {
		t.Fatalf("type-check: %v", err)
	}
	return checked{fset: fset, file: file, pkg: pkg}
}

func (c checked) typ(t *testing.T, name string) types.Type {
	t.Helper()
	obj := c.pkg.Scope().Lookup(name)
	if obj == nil {
		t.Fatalf("no %s in package", name)
	}
	return obj.Type()
}

func (c checked) directives() *SourceDirectives {
	d := NewSourceDirectives(c.fset)
	d.Preload(c.fset, c.file)
	return d
}

func (c checked) describe(t *testing.T, recv, method string) *Interpolator {
	t.Helper()
	in, err := Describe(c.typ(t, recv), method, c.directives())
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	return in
}

const querySrc = `package q

type Arg struct{ v any }
type Stmt struct{}
type Foo struct{}
type ID int
type Stringer interface{ String() string }

type Q struct{}

func (Q) Invoke(fragments ...any) Stmt                                  { return Stmt{} }
func (Q) Interpolate(parts func() []string, params func() []Arg) Stmt   { return Stmt{} }
func (Q) WrapInt(v int) Arg                                             { return Arg{v} }
func (Q) WrapString(v string) Arg                                       { return Arg{v} }
func (Q) WrapStringer(v Stringer) Arg                                   { return Arg{v} }
func (Q) WrapAny(v any) Arg                                             { return Arg{v} }
func (Q) Inlined(text string) Arg                                       { return Arg{text} }
func (Q) WrapPair(a, b int) Arg                                         { return Arg{a} }
func (Q) WrapWrong(v float64) int                                       { return 0 }

//interpol:strict
func (Q) WrapID(v ID) Arg { return Arg{v} }

type Name string

func (n Name) String() string { return string(n) }
`

func TestDescribe(t *testing.T) {
	c := check(t, querySrc)
	in := c.describe(t, "Q", "Invoke")
	if in.Entry.Name() != "Invoke" || in.Backend.Name() != "Interpolate" || in.Point.Batched {
		t.Fatalf("entry points = %s/%s", in.Entry.Name(), in.Backend.Name())
	}
	if got := types.TypeString(in.Elem, pkgName); got != "q.Arg" {
		t.Fatalf("elem = %s", got)
	}
	if got := types.TypeString(in.Result, pkgName); got != "q.Stmt" {
		t.Fatalf("result = %s", got)
	}
	if in.Table.Inline == nil {
		t.Fatal("Inlined not recognized")
	}

	var names []string
	for _, cv := range in.Table.Candidates() {
		names = append(names, cv.Method.Name())
	}
	want := []string{"WrapAny", "WrapInt", "WrapID", "WrapStringer", "WrapString"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("candidates (-want +got):\n%s", diff)
	}
	if !in.Table.Conversions[KeyOf(c.typ(t, "ID"))].Strict {
		t.Fatal("WrapID is not strict")
	}
	var malformed []string
	for _, m := range in.Table.Malformed {
		malformed = append(malformed, m.Method.Name())
	}
	if diff := cmp.Diff([]string{"WrapPair", "WrapWrong"}, malformed); diff != "" {
		t.Fatalf("malformed (-want +got):\n%s", diff)
	}
}

func TestResolve(t *testing.T) {
	c := check(t, querySrc)
	table := c.describe(t, "Q", "Invoke").Table
	tests := []struct {
		name string
		slot types.Type
		kind ResolutionKind
		via  string
	}{
		{"identity", c.typ(t, "Arg"), Identity, ""},
		{"exact int", types.Typ[types.Int], Wrapped, "WrapInt"},
		{"untyped constant", types.Typ[types.UntypedInt], Wrapped, "WrapInt"},
		{"untyped string", types.Typ[types.UntypedString], Wrapped, "WrapString"},
		{"strict exact", c.typ(t, "ID"), Wrapped, "WrapID"},
		{"interface over any", c.typ(t, "Name"), Wrapped, "WrapStringer"},
		{"fallback to any", types.Typ[types.Float64], Wrapped, "WrapAny"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := table.Resolve(tt.slot)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if res.Kind != tt.kind {
				t.Fatalf("kind = %s, want %s", res.Kind, tt.kind)
			}
			if tt.via != "" && res.Conversion.Method.Name() != tt.via {
				t.Fatalf("resolved via %s, want %s", res.Conversion.Method.Name(), tt.via)
			}
		})
	}
}

const noAnySrc = `package q

type Arg struct{}
type Foo struct{}
type ID int

type Q struct{}

func (Q) Invoke(fragments ...any) []byte                               { return nil }
func (Q) Interpolate(parts func() []string, params func() []Arg) []byte { return nil }
func (Q) WrapInt(v int) Arg                                            { return Arg{} }
func (Q) WrapString(v string) Arg                                      { return Arg{} }
func (Q) WrapExtra(a, b string) Arg                                    { return Arg{} }

//interpol:strict
func (Q) WrapInt64(v int64) Arg { return Arg{} }
`

func TestResolveNoCandidate(t *testing.T) {
	c := check(t, noAnySrc)
	table := c.describe(t, "Q", "Invoke").Table
	_, err := table.Resolve(c.typ(t, "Foo"))
	var re *ResolutionError
	if !errors.As(err, &re) {
		t.Fatalf("expected ResolutionError, got %v", err)
	}
	if re.Ambiguous {
		t.Fatal("unexpected ambiguity")
	}
	msg := err.Error()
	for _, want := range []string{"q.Foo", "WrapInt(int)", "WrapString(string)", "WrapInt64(int64) [strict]", "WrapExtra"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q does not mention %q", msg, want)
		}
	}
	if len(re.Candidates) != 3 {
		t.Fatalf("got %d candidates", len(re.Candidates))
	}
}

func TestResolveStrictRejectsConvertible(t *testing.T) {
	c := check(t, noAnySrc)
	table := c.describe(t, "Q", "Invoke").Table
	if _, err := table.Resolve(c.typ(t, "ID")); err == nil {
		t.Fatal("expected error for ID")
	}
}

func TestResolveAmbiguous(t *testing.T) {
	c := check(t, `package q

type Arg struct{}
type A interface{ A() }
type B interface{ B() }
type AB struct{}

func (AB) A() {}
func (AB) B() {}

type Q struct{}

func (Q) Invoke(fragments ...any) Arg                                 { return Arg{} }
func (Q) Interpolate(parts func() []string, params func() []Arg) Arg  { return Arg{} }
func (Q) WrapA(v A) Arg                                               { return Arg{} }
func (Q) WrapB(v B) Arg                                               { return Arg{} }
`)
	table := c.describe(t, "Q", "Invoke").Table
	_, err := table.Resolve(c.typ(t, "AB"))
	var re *ResolutionError
	if !errors.As(err, &re) || !re.Ambiguous {
		t.Fatalf("expected ambiguity, got %v", err)
	}
	if len(re.Matches) != 2 {
		t.Fatalf("got %d matches", len(re.Matches))
	}
}

func TestResolveWithoutWrapsUsesAssignability(t *testing.T) {
	c := check(t, `package q

type Q struct{}

func (Q) Invoke(fragments ...any) string                               { return "" }
func (Q) Interpolate(parts func() []string, params func() []any) string { return "" }
`)
	table := c.describe(t, "Q", "Invoke").Table
	res, err := table.Resolve(types.Typ[types.Int])
	if err != nil || res.Kind != Identity {
		t.Fatalf("Resolve = %v, %v", res, err)
	}
}

func TestDescribeBatchAndPromotion(t *testing.T) {
	c := check(t, `package q

type User struct{ ID int }
type Arg struct{}
type Result struct{}

type base struct{}

func (*base) InvokeBatch(fragments func(User) []any) Result                               { return Result{} }
func (*base) InterpolateBatch(parts func() []string, params func(User) []Arg) Result      { return Result{} }
func (*base) WrapInt(v int) Arg                                                           { return Arg{} }

type Insert struct{ *base }
`)
	in := c.describe(t, "Insert", "InvokeBatch")
	if !in.Point.Batched || in.Backend.Name() != "InterpolateBatch" {
		t.Fatalf("point = %+v", in.Point)
	}
	if got := types.TypeString(in.Record, pkgName); got != "q.User" {
		t.Fatalf("record = %s", got)
	}
	if in.Table.Conversions[KeyOf(types.Typ[types.Int])] == nil {
		t.Fatal("promoted WrapInt not found")
	}
}

func TestDescribeRejections(t *testing.T) {
	c := check(t, `package q

type R struct{}
type S struct{}

type NoBackend struct{}

func (NoBackend) Invoke(fragments ...any) R { return R{} }

type WrongEntry struct{}

func (WrongEntry) Invoke(s string) R                                         { return R{} }
func (WrongEntry) Interpolate(parts func() []string, params func() []any) R  { return R{} }

type Mismatch struct{}

func (Mismatch) Invoke(fragments ...any) R                                   { return R{} }
func (Mismatch) Interpolate(parts func() []string, params func() []any) S    { return S{} }

type BadBackend struct{}

func (BadBackend) Invoke(fragments ...any) R                    { return R{} }
func (BadBackend) Interpolate(parts []string, params []any) R   { return R{} }
`)
	tests := []struct {
		recv   string
		sentry bool
		reason BackendReason
	}{
		{"NoBackend", true, 0},
		{"WrongEntry", true, 0},
		{"Mismatch", false, BackendResultMismatch},
		{"BadBackend", false, BackendMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.recv, func(t *testing.T) {
			_, err := Describe(c.typ(t, tt.recv), "Invoke", nil)
			if tt.sentry {
				if !errors.Is(err, ErrNotInterpolator) {
					t.Fatalf("expected ErrNotInterpolator, got %v", err)
				}
				return
			}
			var be *BackendError
			if !errors.As(err, &be) || be.Reason != tt.reason {
				t.Fatalf("expected backend error %d, got %v", tt.reason, err)
			}
		})
	}
}

func TestSourceDirectivesReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/q.go"
	src := "package q\n\ntype Q struct{}\n\n// WrapN converts.\n//\n//interpol:strict\nfunc (Q) WrapN(v int) int { return v }\n\nfunc (Q) WrapM(v int) int { return v }\n"
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		t.Fatal(err)
	}
	pkg, err := (&types.Config{}).Check("q", fset, []*ast.File{file}, nil)
	if err != nil {
		t.Fatal(err)
	}
	recv := pkg.Scope().Lookup("Q").Type()
	d := NewSourceDirectives(fset)
	n, _ := lookupMethod(recv, "WrapN")
	m, _ := lookupMethod(recv, "WrapM")
	if !d.Strict(n) {
		t.Error("WrapN not strict")
	}
	if d.Strict(m) {
		t.Error("WrapM strict")
	}
}

// Methods of dependencies come from export data, where positions carry the
// line of the declaration and column 1.
func TestSourceDirectivesMatchesLineOnlyPositions(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/q.go"
	src := "package q\n\ntype Q struct{}\n\n//interpol:strict\nfunc (*Q) WrapN(v int) int { return v }\n\nfunc (Q) WrapM(v int) int { return v }\n"
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}
	fset := token.NewFileSet()
	tf := fset.AddFile(path, -1, len(src))
	tf.SetLinesForContent([]byte(src))

	pkg := types.NewPackage("example.com/q", "q")
	named := types.NewNamed(types.NewTypeName(tf.LineStart(3), pkg, "Q", nil), types.NewStruct(nil, nil), nil)
	method := func(line int, name string, recv types.Type) *types.Func {
		pos := tf.LineStart(line)
		sig := types.NewSignatureType(types.NewVar(pos, pkg, "", recv), nil, nil,
			types.NewTuple(types.NewVar(pos, pkg, "v", types.Typ[types.Int])),
			types.NewTuple(types.NewVar(pos, pkg, "", types.Typ[types.Int])), false)
		return types.NewFunc(pos, pkg, name, sig)
	}

	d := NewSourceDirectives(fset)
	if !d.Strict(method(6, "WrapN", types.NewPointer(named))) {
		t.Error("WrapN not strict with a line-only position")
	}
	if d.Strict(method(8, "WrapM", named)) {
		t.Error("WrapM strict")
	}
}
