package fragment

import (
	"bytes"
	"go/ast"
	"go/printer"
	"go/token"
	"go/types"
	"strings"
)

// InfoEnv is the Env of one type-checked file. It tracks nodes replaced during
// the pass so their type and source are answered from the original node.
type InfoEnv struct {
	fset     *token.FileSet
	info     *types.Info
	src      []byte
	tf       *token.File
	replaced map[ast.Node]ast.Expr
}

// NewInfoEnv builds an Env for file. src is the file's content as parsed; it
// may be nil, in which case slot text is reconstructed by printing.
func NewInfoEnv(fset *token.FileSet, file *ast.File, info *types.Info, src []byte) *InfoEnv {
	var tf *token.File
	if file != nil {
		tf = fset.File(file.Pos())
	}
	return &InfoEnv{
		fset:     fset,
		info:     info,
		src:      src,
		tf:       tf,
		replaced: make(map[ast.Node]ast.Expr),
	}
}

// Replace records that repl took the place of orig in the tree.
func (e *InfoEnv) Replace(orig, repl ast.Expr) {
	e.replaced[repl] = e.Original(orig).(ast.Expr)
}

// Original returns the node n replaced, or n itself.
func (e *InfoEnv) Original(n ast.Node) ast.Node {
	if orig, ok := e.replaced[n]; ok {
		return orig
	}
	return n
}

// Replaced reports whether n was produced by Replace.
func (e *InfoEnv) Replaced(n ast.Node) bool {
	_, ok := e.replaced[n]
	return ok
}

func (e *InfoEnv) TypeOf(x ast.Expr) types.Type {
	if orig, ok := e.replaced[x]; ok {
		x = orig
	}
	if e.info == nil {
		return nil
	}
	return e.info.TypeOf(x)
}

func (e *InfoEnv) Range(n ast.Node) (token.Pos, token.Pos) {
	n = e.Original(n)
	return n.Pos(), n.End()
}

func (e *InfoEnv) SourceText(n ast.Node) (string, bool) {
	if e.src == nil || e.tf == nil {
		return "", false
	}
	pos, end := e.Range(n)
	if !pos.IsValid() || !end.IsValid() || end < pos {
		return "", false
	}
	base := token.Pos(e.tf.Base())
	if pos < base || int(end-base) > e.tf.Size() {
		return "", false
	}
	start, stop := e.tf.Offset(pos), e.tf.Offset(end)
	if stop > len(e.src) {
		return "", false
	}
	return string(e.src[start:stop]), true
}

func (e *InfoEnv) Print(n ast.Node) string {
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, e.fset, n); err != nil {
		return ""
	}
	return strings.Join(strings.Fields(buf.String()), " ")
}
