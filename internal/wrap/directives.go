package wrap

import (
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"strings"
	"sync"
)

// StrictDirective marks a wrap method that only accepts its exact parameter type.
const StrictDirective = "//interpol:strict"

// Directives answers directive queries about capability methods.
type Directives interface {
	Strict(fn *types.Func) bool
}

// DirectiveFunc adapts a function to Directives.
type DirectiveFunc func(fn *types.Func) bool

func (f DirectiveFunc) Strict(fn *types.Func) bool { return f(fn) }

// declKey names a method by receiver base type and method name. Positions of
// methods read from export data carry only the line, so they cannot be
// matched against the name's column in the source.
type declKey struct {
	recv, method string
}

// SourceDirectives reads directives from the doc comments of method
// declarations. Files are parsed at most once; files already held in memory
// can be registered with Preload.
type SourceDirectives struct {
	fset *token.FileSet

	mu    sync.Mutex
	files map[string]map[declKey]bool // filename -> strict flags
}

// NewSourceDirectives returns a directive index for positions in fset.
func NewSourceDirectives(fset *token.FileSet) *SourceDirectives {
	return &SourceDirectives{
		fset:  fset,
		files: make(map[string]map[declKey]bool),
	}
}

// Preload indexes an already parsed file. fset must be the set file was parsed with.
func (d *SourceDirectives) Preload(fset *token.FileSet, file *ast.File) {
	name := fset.Position(file.Pos()).Filename
	decls := index(file)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[name] = decls
}

func (d *SourceDirectives) Strict(fn *types.Func) bool {
	if fn == nil || d == nil {
		return false
	}
	fn = fn.Origin()
	pos := d.fset.Position(fn.Pos())
	if !pos.IsValid() || pos.Filename == "" {
		return false
	}
	recv := receiverName(fn)
	if recv == "" {
		return false
	}
	decls := d.lookup(pos.Filename)
	return decls[declKey{recv, fn.Name()}]
}

func receiverName(fn *types.Func) string {
	sig, ok := fn.Type().(*types.Signature)
	if !ok || sig.Recv() == nil {
		return ""
	}
	t := types.Unalias(sig.Recv().Type())
	if p, ok := t.(*types.Pointer); ok {
		t = types.Unalias(p.Elem())
	}
	if n, ok := t.(*types.Named); ok {
		return n.Obj().Name()
	}
	return ""
}

func (d *SourceDirectives) lookup(filename string) map[declKey]bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if decls, ok := d.files[filename]; ok {
		return decls
	}
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, nil, parser.ParseComments|parser.SkipObjectResolution)
	var decls map[declKey]bool
	if err == nil {
		decls = index(file)
	}
	// a failed parse is cached too
	d.files[filename] = decls
	return decls
}

func index(file *ast.File) map[declKey]bool {
	decls := make(map[declKey]bool)
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Recv == nil || !hasStrict(fd.Doc) {
			continue
		}
		if recv := recvTypeName(fd.Recv.List[0].Type); recv != "" {
			decls[declKey{recv, fd.Name.Name}] = true
		}
	}
	return decls
}

// recvTypeName strips pointers, parentheses and type parameters from a
// receiver type expression.
func recvTypeName(e ast.Expr) string {
	for {
		switch x := e.(type) {
		case *ast.StarExpr:
			e = x.X
		case *ast.ParenExpr:
			e = x.X
		case *ast.IndexExpr:
			e = x.X
		case *ast.IndexListExpr:
			e = x.X
		case *ast.Ident:
			return x.Name
		default:
			return ""
		}
	}
}

func hasStrict(doc *ast.CommentGroup) bool {
	if doc == nil {
		return false
	}
	for _, c := range doc.List {
		if strings.TrimSpace(c.Text) == StrictDirective {
			return true
		}
	}
	return false
}
