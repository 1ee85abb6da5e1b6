package rewrite

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"path"
	"sort"
	"strconv"
)

// Import is an import the rewritten file needs and does not have yet.
type Import struct {
	Name string
	Path string
}

// UnnameableError reports a type that cannot be spelled at the call site.
type UnnameableError struct {
	Type   types.Type
	Reason string
}

func (e *UnnameableError) Error() string {
	return fmt.Sprintf("type %s cannot be named here: %s", types.TypeString(e.Type, pkgName), e.Reason)
}

// Imports spells types and package references for one file. It reuses the
// file's imports where they are visible and allocates new ones otherwise.
type Imports struct {
	pkg   *types.Package
	names *Names

	existing map[string][]string // path -> local names declared in the file
	added    map[string]string   // path -> name of a new import
	order    []string            // paths of added, oldest first
}

// NewImports indexes the imports of file. info must hold Defs and Implicits
// for it.
func NewImports(pkg *types.Package, file *ast.File, info *types.Info, names *Names) *Imports {
	im := &Imports{
		pkg:      pkg,
		names:    names,
		existing: make(map[string][]string),
		added:    make(map[string]string),
	}
	for _, spec := range file.Imports {
		var obj types.Object
		if spec.Name != nil {
			obj = info.Defs[spec.Name]
		} else {
			obj = info.Implicits[spec]
		}
		pn, ok := obj.(*types.PkgName)
		if !ok || pn.Name() == "_" || pn.Name() == "." {
			continue
		}
		p := pn.Imported().Path()
		im.existing[p] = append(im.existing[p], pn.Name())
	}
	return im
}

// Package returns the name under which the package at importPath is visible
// at pos, recording a new import when needed. defaultName is the package's
// declared name.
func (im *Imports) Package(importPath, defaultName string, pos token.Pos) string {
	if im.pkg != nil && importPath == im.pkg.Path() {
		return ""
	}
	scope := im.scopeAt(pos)
	for _, name := range im.existing[importPath] {
		if visible(scope, name, pos, importPath) {
			return name
		}
	}
	if name, ok := im.added[importPath]; ok {
		return name
	}
	if defaultName == "" {
		defaultName = path.Base(importPath)
	}
	name := im.names.Fresh(defaultName)
	im.added[importPath] = name
	im.order = append(im.order, importPath)
	return name
}

func (im *Imports) checkpoint() int { return len(im.order) }

// rollback forgets the imports recorded after mark.
func (im *Imports) rollback(mark int) {
	for _, p := range im.order[mark:] {
		delete(im.added, p)
	}
	im.order = im.order[:mark]
}

func visible(scope *types.Scope, name string, pos token.Pos, importPath string) bool {
	if scope == nil {
		return true
	}
	_, obj := scope.LookupParent(name, pos)
	pn, ok := obj.(*types.PkgName)
	return ok && pn.Imported().Path() == importPath
}

func (im *Imports) scopeAt(pos token.Pos) *types.Scope {
	if im.pkg == nil || !pos.IsValid() {
		return nil
	}
	return im.pkg.Scope().Innermost(pos)
}

// Added returns the new imports, sorted by path.
func (im *Imports) Added() []Import {
	out := make([]Import, 0, len(im.added))
	for p, name := range im.added {
		out = append(out, Import{Name: name, Path: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// TypeExpr spells t as an expression valid at pos.
func (im *Imports) TypeExpr(t types.Type, pos token.Pos) (ast.Expr, error) {
	if err := im.nameable(t, pos, make(map[types.Type]bool)); err != nil {
		return nil, err
	}
	mark := im.checkpoint()
	qual := func(p *types.Package) string { return im.Package(p.Path(), p.Name(), pos) }
	text := types.TypeString(t, qual)
	expr, err := parser.ParseExpr(text)
	if err != nil {
		im.rollback(mark)
		return nil, &UnnameableError{Type: t, Reason: "spelling " + strconv.Quote(text) + " does not parse"}
	}
	return stripPositions(expr), nil
}

func (im *Imports) nameable(t types.Type, pos token.Pos, seen map[types.Type]bool) error {
	if seen[t] {
		return nil
	}
	seen[t] = true
	switch t := t.(type) {
	case *types.Basic:
		if t.Info()&types.IsUntyped != 0 {
			return &UnnameableError{Type: t, Reason: "untyped"}
		}
	case *types.Alias:
		if err := im.object(t, t.Obj(), pos); err != nil {
			return err
		}
		if args := t.TypeArgs(); args != nil {
			for i := range args.Len() {
				if err := im.nameable(args.At(i), pos, seen); err != nil {
					return err
				}
			}
		}
	case *types.Named:
		if err := im.object(t, t.Obj(), pos); err != nil {
			return err
		}
		if args := t.TypeArgs(); args != nil {
			for i := range args.Len() {
				if err := im.nameable(args.At(i), pos, seen); err != nil {
					return err
				}
			}
		}
	case *types.TypeParam:
		return im.object(t, t.Obj(), pos)
	case *types.Pointer:
		return im.nameable(t.Elem(), pos, seen)
	case *types.Slice:
		return im.nameable(t.Elem(), pos, seen)
	case *types.Array:
		return im.nameable(t.Elem(), pos, seen)
	case *types.Chan:
		return im.nameable(t.Elem(), pos, seen)
	case *types.Map:
		if err := im.nameable(t.Key(), pos, seen); err != nil {
			return err
		}
		return im.nameable(t.Elem(), pos, seen)
	case *types.Signature:
		if err := im.tuple(t.Params(), pos, seen); err != nil {
			return err
		}
		return im.tuple(t.Results(), pos, seen)
	case *types.Struct:
		for i := range t.NumFields() {
			f := t.Field(i)
			if !f.Exported() && f.Pkg() != im.pkg {
				return &UnnameableError{Type: t, Reason: "unexported field " + f.Name()}
			}
			if err := im.nameable(f.Type(), pos, seen); err != nil {
				return err
			}
		}
	case *types.Interface:
		for i := range t.NumExplicitMethods() {
			m := t.ExplicitMethod(i)
			if !m.Exported() && m.Pkg() != im.pkg {
				return &UnnameableError{Type: t, Reason: "unexported method " + m.Name()}
			}
			if err := im.nameable(m.Type(), pos, seen); err != nil {
				return err
			}
		}
		for i := range t.NumEmbeddeds() {
			if err := im.nameable(t.EmbeddedType(i), pos, seen); err != nil {
				return err
			}
		}
	case *types.Union:
		for i := range t.Len() {
			if err := im.nameable(t.Term(i).Type(), pos, seen); err != nil {
				return err
			}
		}
	case *types.Tuple:
		return im.tuple(t, pos, seen)
	}
	return nil
}

func (im *Imports) tuple(t *types.Tuple, pos token.Pos, seen map[types.Type]bool) error {
	for i := range t.Len() {
		if err := im.nameable(t.At(i).Type(), pos, seen); err != nil {
			return err
		}
	}
	return nil
}

// object checks a type name: exported or local to this package, and, when
// declared in this package, not shadowed at pos.
func (im *Imports) object(t types.Type, obj *types.TypeName, pos token.Pos) error {
	if obj.Pkg() == nil {
		return nil
	}
	if obj.Pkg() != im.pkg {
		if !obj.Exported() {
			return &UnnameableError{Type: t, Reason: "unexported in " + obj.Pkg().Path()}
		}
		if obj.Parent() != nil && obj.Parent() != obj.Pkg().Scope() {
			return &UnnameableError{Type: t, Reason: "declared inside a function"}
		}
		return nil
	}
	scope := im.scopeAt(pos)
	if scope == nil {
		return nil
	}
	if _, found := scope.LookupParent(obj.Name(), pos); found != obj {
		return &UnnameableError{Type: t, Reason: "not in scope"}
	}
	return nil
}

// stripPositions zeroes the positions of a freshly parsed expression so it
// prints cleanly next to nodes of another file.
func stripPositions(e ast.Expr) ast.Expr {
	ast.Inspect(e, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.Ident:
			n.NamePos = token.NoPos
		case *ast.StarExpr:
			n.Star = token.NoPos
		case *ast.ArrayType:
			n.Lbrack = token.NoPos
		case *ast.MapType:
			n.Map = token.NoPos
		case *ast.ChanType:
			n.Begin, n.Arrow = token.NoPos, token.NoPos
		case *ast.FuncType:
			n.Func = token.NoPos
		case *ast.FieldList:
			n.Opening, n.Closing = token.NoPos, token.NoPos
		case *ast.StructType:
			n.Struct = token.NoPos
		case *ast.InterfaceType:
			n.Interface = token.NoPos
		case *ast.IndexExpr:
			n.Lbrack, n.Rbrack = token.NoPos, token.NoPos
		case *ast.IndexListExpr:
			n.Lbrack, n.Rbrack = token.NoPos, token.NoPos
		case *ast.BasicLit:
			n.ValuePos = token.NoPos
		case *ast.BinaryExpr:
			n.OpPos = token.NoPos
		case *ast.UnaryExpr:
			n.OpPos = token.NoPos
		case *ast.ParenExpr:
			n.Lparen, n.Rparen = token.NoPos, token.NoPos
		case *ast.Ellipsis:
			n.Ellipsis = token.NoPos
		case *ast.Field:
			if n.Tag != nil {
				n.Tag.ValuePos = token.NoPos
			}
		}
		return true
	})
	return e
}

func pkgName(p *types.Package) string { return p.Name() }
