package driver

import (
	"context"
	"fmt"
	"go/ast"
	"go/token"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"

	"interpol/internal/diag"
	"interpol/internal/source"
)

const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedImports |
	packages.NeedSyntax |
	packages.NeedTypes |
	packages.NeedTypesInfo

// unit is a file scheduled for the pass.
type unit struct {
	path string
	rel  string
	file *ast.File
	pkg  *packages.Package
}

// load type-checks the packages matching patterns and returns their files,
// one entry per path. Packages with errors are reported and skipped.
func load(ctx context.Context, opts Options, fset *token.FileSet, rep diag.Reporter) ([]unit, int, error) {
	cfg := &packages.Config{
		Context: ctx,
		Mode:    loadMode,
		Dir:     opts.Dir,
		Tests:   opts.Tests,
		Fset:    fset,
		Env:     opts.Env,
	}
	patterns := opts.Patterns
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, 0, fmt.Errorf("load packages: %w", err)
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].ID < pkgs[j].ID })

	root := opts.root()
	seen := make(map[string]bool)
	var units []unit
	loaded := 0
	for _, pkg := range pkgs {
		if reportErrors(rep, pkg) {
			continue
		}
		loaded++
		goFiles := make(map[string]bool, len(pkg.GoFiles))
		for _, f := range pkg.GoFiles {
			goFiles[filepath.Clean(f)] = true
		}
		for _, file := range pkg.Syntax {
			path := filepath.Clean(fset.Position(file.Pos()).Filename)
			if seen[path] || !goFiles[path] {
				continue
			}
			rel := source.RelativePath(path, root)
			if filepath.IsAbs(rel) || strings.HasPrefix(rel, "../") {
				continue
			}
			seen[path] = true
			units = append(units, unit{path: path, rel: rel, file: file, pkg: pkg})
		}
	}
	sort.Slice(units, func(i, j int) bool { return units[i].path < units[j].path })
	return units, loaded, nil
}

// reportErrors turns package errors into diagnostics and reports whether any
// were found.
func reportErrors(rep diag.Reporter, pkg *packages.Package) bool {
	if len(pkg.Errors) == 0 {
		return false
	}
	for _, e := range pkg.Errors {
		code := diag.LoadPackageError
		switch e.Kind {
		case packages.TypeError:
			code = diag.LoadTypeError
		case packages.ParseError:
			code = diag.LoadFileError
		}
		diag.ReportError(rep, code, source.Span{File: source.NoFile}, fmt.Sprintf("%s: %s", pkg.PkgPath, e.Error())).Emit()
	}
	return true
}
