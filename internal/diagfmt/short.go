package diagfmt

import (
	"io"

	"interpol/internal/diag"
	"interpol/internal/source"
)

// Short печатает по одной строке на диагностику, в стабильном порядке.
func Short(w io.Writer, bag *diag.Bag, fs *source.FileSet, includeNotes bool) error {
	if bag == nil || bag.Len() == 0 {
		return nil
	}
	out := diag.FormatGoldenDiagnostics(bag.Items(), fs, includeNotes)
	if out == "" {
		return nil
	}
	_, err := io.WriteString(w, out+"\n")
	return err
}
