// Package rewrite builds the backend call that replaces an interpolator call site.
package rewrite

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"strconv"

	"interpol/internal/fragment"
	"interpol/internal/wrap"
)

// DefaultRuntime is the import path of the package generated code refers to.
const DefaultRuntime = "interpol/protocol"

// Param is one resolved slot.
type Param struct {
	Slot       *fragment.Slot
	Resolution wrap.Resolution
	// Location is the slot position as path:line:col.
	Location string
}

// Input is everything known about one call site.
type Input struct {
	Site     *fragment.Site
	Interp   *wrap.Interpolator
	Template fragment.Template
	Params   []Param
	// CallerType is the static type of Site.Caller.
	CallerType types.Type
}

// Synthesizer builds rewrites for the sites of one file.
type Synthesizer struct {
	Imports *Imports
	Names   *Names
	// Runtime is the import path of the guard package.
	Runtime string
}

// Synthesize returns the expression replacing in.Site.Call. The expression
// has the entry point's static type and evaluates the caller once. On error
// no import is recorded for the site.
func (s *Synthesizer) Synthesize(in Input) (_ ast.Expr, err error) {
	mark := s.Imports.checkpoint()
	defer func() {
		if err != nil {
			s.Imports.rollback(mark)
		}
	}()
	if err := in.Template.Validate(); err != nil {
		return nil, err
	}
	if len(in.Params) != len(in.Template.Slots) {
		return nil, fmt.Errorf("rewrite: %d resolutions for %d slots", len(in.Params), len(in.Template.Slots))
	}
	pos := in.Site.Call.Pos()
	elem, err := s.Imports.TypeExpr(in.Interp.Elem, pos)
	if err != nil {
		return nil, err
	}
	runtime := s.Runtime
	if runtime == "" {
		runtime = DefaultRuntime
	}
	rt := s.Imports.Package(runtime, "protocol", pos)

	caller := in.Site.Caller
	var bind *binding
	if !isSimple(caller) {
		bind, err = s.bind(in, pos)
		if err != nil {
			return nil, err
		}
		caller = ast.NewIdent(bind.name)
	}

	b := builder{caller: caller, elem: elem, rt: rt}
	parts := b.parts(in.Template.Parts)
	var producer ast.Expr
	if in.Interp.Point.Batched {
		producer = b.batchParams(in.Site.Batch, in.Params)
	} else {
		producer = b.params(in.Params)
	}
	call := &ast.CallExpr{
		Fun:  &ast.SelectorExpr{X: caller, Sel: ast.NewIdent(in.Interp.Point.Backend)},
		Args: []ast.Expr{parts, producer},
	}
	if bind == nil {
		return call, nil
	}
	return bind.wrap(call), nil
}

type binding struct {
	name   string
	typ    ast.Expr
	result ast.Expr
	arg    ast.Expr
}

// bind evaluates a caller with possible side effects exactly once by passing
// it to an immediately called function literal.
func (s *Synthesizer) bind(in Input, pos token.Pos) (*binding, error) {
	recv := in.CallerType
	arg := in.Site.Caller
	if needsAddress(in.Interp.Entry, recv) {
		recv = types.NewPointer(recv)
		arg = &ast.UnaryExpr{Op: token.AND, X: arg}
	}
	typ, err := s.Imports.TypeExpr(recv, pos)
	if err != nil {
		return nil, err
	}
	result, err := s.Imports.TypeExpr(in.Interp.Result, pos)
	if err != nil {
		return nil, err
	}
	return &binding{name: s.Names.Fresh("interp"), typ: typ, result: result, arg: arg}, nil
}

func (b *binding) wrap(body ast.Expr) ast.Expr {
	return &ast.CallExpr{
		Fun: &ast.FuncLit{
			Type: &ast.FuncType{
				Params:  fields(&ast.Field{Names: []*ast.Ident{ast.NewIdent(b.name)}, Type: b.typ}),
				Results: fields(&ast.Field{Type: b.result}),
			},
			Body: returning(body),
		},
		Args: []ast.Expr{b.arg},
	}
}

type builder struct {
	caller ast.Expr
	elem   ast.Expr
	rt     string
}

// parts builds func() []string { return []string{...} }.
func (b builder) parts(parts []string) ast.Expr {
	elts := make([]ast.Expr, len(parts))
	for i, p := range parts {
		elts[i] = &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(p)}
	}
	strs := &ast.ArrayType{Elt: ast.NewIdent("string")}
	return &ast.FuncLit{
		Type: &ast.FuncType{Params: fields(), Results: fields(&ast.Field{Type: strs})},
		Body: returning(&ast.CompositeLit{Type: &ast.ArrayType{Elt: ast.NewIdent("string")}, Elts: elts}),
	}
}

// params builds func() []T { return []T{guard(...), ...} }.
func (b builder) params(params []Param) ast.Expr {
	return &ast.FuncLit{
		Type: &ast.FuncType{Params: fields(), Results: fields(&ast.Field{Type: b.elems()})},
		Body: returning(b.guarded(params)),
	}
}

// batchParams reuses the record parameter list of the original literal so
// slot expressions keep referring to it.
func (b builder) batchParams(lit *ast.FuncLit, params []Param) ast.Expr {
	return &ast.FuncLit{
		Type: &ast.FuncType{Params: lit.Type.Params, Results: fields(&ast.Field{Type: b.elems()})},
		Body: returning(b.guarded(params)),
	}
}

func (b builder) elems() ast.Expr { return &ast.ArrayType{Elt: b.elem} }

func (b builder) guarded(params []Param) ast.Expr {
	elts := make([]ast.Expr, len(params))
	for i, p := range params {
		elts[i] = b.guard(p, i+1, len(params))
	}
	return &ast.CompositeLit{Type: b.elems(), Elts: elts}
}

// guard builds rt.Guard(rt.SlotInfo{...}, func() T { return conv(expr) }).
func (b builder) guard(p Param, ordinal, total int) ast.Expr {
	var value ast.Expr = p.Slot.Expr
	if p.Resolution.Kind == wrap.Wrapped {
		value = &ast.CallExpr{
			Fun:  &ast.SelectorExpr{X: b.caller, Sel: ast.NewIdent(p.Resolution.Conversion.Method.Name())},
			Args: []ast.Expr{p.Slot.Expr},
		}
	}
	info := []ast.Expr{
		kv("Text", str(p.Slot.Text)),
	}
	if p.Slot.Exact {
		info = append(info, kv("Exact", ast.NewIdent("true")))
	}
	info = append(info,
		kv("Ordinal", num(ordinal)),
		kv("Total", num(total)),
	)
	if p.Location != "" {
		info = append(info, kv("Location", str(p.Location)))
	}
	eval := &ast.FuncLit{
		Type: &ast.FuncType{Params: fields(), Results: fields(&ast.Field{Type: b.elem})},
		Body: returning(value),
	}
	return &ast.CallExpr{
		Fun: b.qualified("Guard"),
		Args: []ast.Expr{
			&ast.CompositeLit{Type: b.qualified("SlotInfo"), Elts: info},
			eval,
		},
	}
}

func (b builder) qualified(name string) ast.Expr {
	if b.rt == "" {
		return ast.NewIdent(name)
	}
	return &ast.SelectorExpr{X: ast.NewIdent(b.rt), Sel: ast.NewIdent(name)}
}

// isSimple reports whether evaluating e again has no effects: identifiers
// and selector chains over them.
func isSimple(e ast.Expr) bool {
	switch e := ast.Unparen(e).(type) {
	case *ast.Ident:
		return true
	case *ast.SelectorExpr:
		return isSimple(e.X)
	}
	return false
}

// needsAddress reports whether the entry point is only in the method set of
// the caller's address.
func needsAddress(entry *types.Func, caller types.Type) bool {
	obj, _, _ := types.LookupFieldOrMethod(caller, false, nil, entry.Name())
	return obj == nil
}

func fields(list ...*ast.Field) *ast.FieldList { return &ast.FieldList{List: list} }

func returning(e ast.Expr) *ast.BlockStmt {
	return &ast.BlockStmt{List: []ast.Stmt{&ast.ReturnStmt{Results: []ast.Expr{e}}}}
}

func kv(key string, value ast.Expr) ast.Expr {
	return &ast.KeyValueExpr{Key: ast.NewIdent(key), Value: value}
}

func str(s string) ast.Expr { return &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(s)} }

func num(n int) ast.Expr { return &ast.BasicLit{Kind: token.INT, Value: strconv.Itoa(n)} }
