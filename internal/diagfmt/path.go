package diagfmt

import (
	"path/filepath"

	"interpol/internal/source"
)

func formatPath(f *source.File, fs *source.FileSet, mode PathMode) string {
	if f == nil {
		return "<unknown>"
	}
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(f.Path); err == nil {
			return filepath.ToSlash(abs)
		}
		return f.Path
	case PathModeBasename:
		return filepath.Base(f.Path)
	case PathModeRelative:
		rel, err := filepath.Rel(fs.BaseDir(), f.Path)
		if err != nil {
			return f.Path
		}
		return filepath.ToSlash(rel)
	default:
		return source.RelativePath(f.Path, fs.BaseDir())
	}
}

func limit(n, max int) int {
	if max > 0 && max < n {
		return max
	}
	return n
}
