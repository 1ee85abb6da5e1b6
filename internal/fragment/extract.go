package fragment

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"strconv"
	"strings"
)

// Shape names a recognized call-site variant.
type Shape uint8

const (
	// ShapeFragments is Invoke(fragments ...any).
	ShapeFragments Shape = iota + 1
	// ShapeBatch is InvokeBatch(func(A) []any { return []any{...} }).
	ShapeBatch
)

func (s Shape) String() string {
	switch s {
	case ShapeFragments:
		return "fragments"
	case ShapeBatch:
		return "batch"
	}
	return "unknown"
}

// Env gives the extractor access to types and source text. Nodes replaced by
// an earlier rewrite are unknown to go/types and have no positions of their
// own, so every lookup goes through Env, which answers for the original node.
type Env interface {
	TypeOf(e ast.Expr) types.Type
	Range(n ast.Node) (pos, end token.Pos)
	SourceText(n ast.Node) (string, bool)
	Print(n ast.Node) string
}

// Site is an extracted call site.
type Site struct {
	Shape     Shape
	Call      *ast.CallExpr
	Caller    ast.Expr
	Method    string
	Fragments []Fragment
	// Batch is the record function literal of a ShapeBatch site.
	Batch *ast.FuncLit
}

// Template decomposes the site's fragments.
func (s *Site) Template() Template { return Unzip(s.Fragments) }

// ShapeReason classifies shape mismatches.
type ShapeReason uint8

const (
	ReasonNotTemplate ShapeReason = iota + 1
	ReasonSpread
	ReasonBatchFunc
	ReasonNotMethodCall
)

// ShapeError reports a call whose argument cannot be decomposed.
type ShapeError struct {
	Reason ShapeReason
	Detail string
	Node   ast.Node
	// Text is the source text of Expr, Dump its syntax tree.
	Text string
	Dump string
}

func (e *ShapeError) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("%s: %s", e.Detail, e.Text)
	}
	return e.Detail
}

type matcher func(x *extractor, call *ast.CallExpr) (*Site, error)

var matchers = map[Shape]matcher{
	ShapeFragments: matchFragments,
	ShapeBatch:     matchBatch,
}

// Extract matches call against shape and returns its fragments.
// Slot expressions are taken as they currently are in the tree, so nested
// sites rewritten earlier appear in their rewritten form.
func Extract(call *ast.CallExpr, shape Shape, env Env) (*Site, error) {
	m, ok := matchers[shape]
	if !ok {
		return nil, fmt.Errorf("fragment: unknown shape %d", shape)
	}
	x := &extractor{env: env}
	sel, ok := ast.Unparen(call.Fun).(*ast.SelectorExpr)
	if !ok {
		return nil, x.shapeError(ReasonNotMethodCall, "interpolator entry point must be called as a method", call.Fun)
	}
	site, err := m(x, call)
	if err != nil {
		return nil, err
	}
	site.Shape = shape
	site.Call = call
	site.Caller = sel.X
	site.Method = sel.Sel.Name
	return site, nil
}

type extractor struct {
	env Env
}

func matchFragments(x *extractor, call *ast.CallExpr) (*Site, error) {
	if call.Ellipsis.IsValid() {
		return nil, x.shapeError(ReasonSpread, "spread arguments cannot be decomposed", call.Args[len(call.Args)-1])
	}
	if len(call.Args) == 1 && !x.isChain(call.Args[0]) {
		return nil, x.shapeError(ReasonNotTemplate, "argument is neither a string literal nor a concatenation", call.Args[0])
	}
	frags := make([]Fragment, 0, len(call.Args))
	for _, arg := range call.Args {
		frags = x.chain(arg, frags)
	}
	return &Site{Fragments: frags}, nil
}

func matchBatch(x *extractor, call *ast.CallExpr) (*Site, error) {
	if len(call.Args) != 1 || call.Ellipsis.IsValid() {
		return nil, x.shapeError(ReasonBatchFunc, "batch entry point takes exactly one function literal", call)
	}
	fl, ok := ast.Unparen(call.Args[0]).(*ast.FuncLit)
	if !ok {
		return nil, x.shapeError(ReasonBatchFunc, "batch argument must be a function literal", call.Args[0])
	}
	if fl.Type.Params.NumFields() != 1 {
		return nil, x.shapeError(ReasonBatchFunc, "batch function literal must take exactly one record parameter", fl.Type)
	}
	if fl.Body == nil || len(fl.Body.List) != 1 {
		return nil, x.shapeError(ReasonBatchFunc, "batch function body must be a single return statement", fl)
	}
	ret, ok := fl.Body.List[0].(*ast.ReturnStmt)
	if !ok || len(ret.Results) != 1 {
		return nil, x.shapeError(ReasonBatchFunc, "batch function body must be a single return statement", fl.Body.List[0])
	}
	lit, ok := ast.Unparen(ret.Results[0]).(*ast.CompositeLit)
	if !ok {
		return nil, x.shapeError(ReasonBatchFunc, "batch function must return a fragment list literal", ret.Results[0])
	}
	frags := make([]Fragment, 0, len(lit.Elts))
	for _, elt := range lit.Elts {
		if kv, isKV := elt.(*ast.KeyValueExpr); isKV {
			return nil, x.shapeError(ReasonBatchFunc, "indexed fragment list elements are not supported", kv)
		}
		frags = x.chain(elt, frags)
	}
	return &Site{Fragments: frags, Batch: fl}, nil
}

// isChain reports whether e is a string literal or a string concatenation.
func (x *extractor) isChain(e ast.Expr) bool {
	switch n := ast.Unparen(e).(type) {
	case *ast.BasicLit:
		return n.Kind == token.STRING
	case *ast.BinaryExpr:
		return n.Op == token.ADD && x.isString(n)
	}
	return false
}

// chain appends the fragments of e. String literals become literals, string
// concatenations are split into their operands, everything else is a slot.
func (x *extractor) chain(e ast.Expr, out []Fragment) []Fragment {
	e = ast.Unparen(e)
	switch n := e.(type) {
	case *ast.BasicLit:
		if n.Kind == token.STRING {
			if s, err := strconv.Unquote(n.Value); err == nil {
				return append(out, Lit(s))
			}
		}
	case *ast.BinaryExpr:
		if n.Op == token.ADD && x.isString(n) {
			out = x.chain(n.X, out)
			return x.chain(n.Y, out)
		}
	}
	return append(out, SlotOf(x.slot(e)))
}

func (x *extractor) isString(e ast.Expr) bool {
	t := x.env.TypeOf(e)
	if t == nil {
		return false
	}
	b, ok := t.Underlying().(*types.Basic)
	return ok && b.Info()&types.IsString != 0
}

func (x *extractor) slot(e ast.Expr) *Slot {
	pos, end := x.env.Range(e)
	s := &Slot{Expr: e, Type: x.env.TypeOf(e), Pos: pos, End: end}
	if text, ok := x.env.SourceText(e); ok {
		s.Text, s.Exact = text, true
	} else {
		s.Text = x.env.Print(e)
	}
	return s
}

func (x *extractor) shapeError(reason ShapeReason, detail string, n ast.Node) *ShapeError {
	err := &ShapeError{Reason: reason, Detail: detail, Node: n}
	if n == nil {
		return err
	}
	if text, ok := x.env.SourceText(n); ok {
		err.Text = text
	} else {
		err.Text = x.env.Print(n)
	}
	err.Dump = dump(n)
	return err
}

const maxDumpLines = 40

func dump(n ast.Node) string {
	var buf bytes.Buffer
	if err := ast.Fprint(&buf, nil, n, ast.NotNilFilter); err != nil {
		return ""
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) > maxDumpLines {
		lines = append(lines[:maxDumpLines], fmt.Sprintf("... (%d more lines)", len(lines)-maxDumpLines))
	}
	return strings.Join(lines, "\n")
}
