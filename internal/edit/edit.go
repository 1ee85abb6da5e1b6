// Package edit applies byte-range replacements to source files.
package edit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"interpol/internal/source"
)

var (
	// ErrOverlap is returned when two edits of one file touch the same bytes.
	ErrOverlap = errors.New("overlapping edits")
	// ErrOutOfRange is returned for an edit outside the file content.
	ErrOutOfRange = errors.New("edit span out of range")
	// ErrMismatch is returned when OldText no longer matches the content.
	ErrMismatch = errors.New("existing text does not match expected content")
)

// TextEdit replaces the bytes of Span with NewText. A non-empty OldText must
// match the replaced bytes.
type TextEdit struct {
	Span    source.Span
	NewText string
	OldText string
}

// Apply returns content with all edits applied. Edits are applied back to
// front so earlier offsets stay valid; content is not modified.
func Apply(content []byte, edits []TextEdit) ([]byte, error) {
	sorted := append([]TextEdit(nil), edits...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Span.Start == sorted[j].Span.Start {
			return sorted[i].Span.End > sorted[j].Span.End
		}
		return sorted[i].Span.Start > sorted[j].Span.Start
	})
	for i := 1; i < len(sorted); i++ {
		if Conflicts(sorted[i], sorted[i-1]) {
			return nil, fmt.Errorf("%w: %s and %s", ErrOverlap, sorted[i].Span, sorted[i-1].Span)
		}
	}

	working := append([]byte(nil), content...)
	for _, e := range sorted {
		start, end := int(e.Span.Start), int(e.Span.End)
		if end < start || end > len(working) {
			return nil, fmt.Errorf("%w: %s", ErrOutOfRange, e.Span)
		}
		if e.OldText != "" && string(working[start:end]) != e.OldText {
			return nil, fmt.Errorf("%w at %s", ErrMismatch, e.Span)
		}
		suffix := append([]byte(nil), working[end:]...)
		working = append(append(working[:start], e.NewText...), suffix...)
	}
	return working, nil
}

// Conflicts reports whether two edits overlap. Spans are half-open. Two
// insertions never conflict; an insertion conflicts with a replacement that
// strictly contains its position.
func Conflicts(a, b TextEdit) bool {
	aInsert, bInsert := a.Span.Start == a.Span.End, b.Span.Start == b.Span.End
	switch {
	case aInsert && bInsert:
		return false
	case aInsert:
		return b.Span.Start < a.Span.Start && a.Span.Start < b.Span.End
	case bInsert:
		return a.Span.Start < b.Span.Start && b.Span.Start < a.Span.End
	}
	return a.Span.Overlaps(b.Span)
}

// WriteInPlace replaces the file at path, keeping its permissions. The new
// content is written to a temporary file in the same directory first.
func WriteInPlace(path string, content []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	return writeAtomic(path, content, mode)
}

// Mirror writes content to rel under dir, creating directories as needed.
func Mirror(dir, rel string, content []byte) error {
	clean := filepath.Clean(rel)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("edit: %s escapes output directory", rel)
	}
	target := filepath.Join(dir, clean)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(target), err)
	}
	return writeAtomic(target, content, 0o644)
}

func writeAtomic(path string, content []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
