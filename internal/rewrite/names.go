package rewrite

import (
	"go/ast"
	"strconv"
)

// Names hands out identifiers unused anywhere in a file.
type Names struct {
	taken map[string]bool
}

// NewNames collects every identifier of file.
func NewNames(file *ast.File) *Names {
	n := &Names{taken: make(map[string]bool)}
	if file == nil {
		return n
	}
	ast.Inspect(file, func(node ast.Node) bool {
		if id, ok := node.(*ast.Ident); ok {
			n.taken[id.Name] = true
		}
		return true
	})
	return n
}

// Fresh returns base or base followed by a number, and reserves it.
func (n *Names) Fresh(base string) string {
	name := base
	for i := 1; n.taken[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	n.taken[name] = true
	return name
}
