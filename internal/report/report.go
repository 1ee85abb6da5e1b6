// Package report records the outcome of a run in a machine-readable file.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"interpol/internal/diag"
	"interpol/internal/driver"
	"interpol/internal/observ"
	"interpol/internal/project"
	"interpol/internal/source"
)

// SchemaVersion is bumped whenever the Report layout changes.
const SchemaVersion uint16 = 1

// Report is the serialized summary of a run.
type Report struct {
	Schema    uint16        `msgpack:"schema" json:"schema"`
	Tool      string        `msgpack:"tool" json:"tool"`
	Root      string        `msgpack:"root" json:"root"`
	Manifest  string        `msgpack:"manifest,omitempty" json:"manifest,omitempty"`
	Inputs    string        `msgpack:"inputs" json:"inputs"`
	Packages  int           `msgpack:"packages" json:"packages"`
	ElapsedMS int64         `msgpack:"elapsed_ms" json:"elapsed_ms"`
	Timings   observ.Report `msgpack:"timings" json:"timings"`
	Files     []File        `msgpack:"files" json:"files"`
	Diags     []Diagnostic  `msgpack:"diagnostics" json:"diagnostics"`
}

// File is one processed source file.
type File struct {
	Path    string `msgpack:"path" json:"path"`
	Hash    string `msgpack:"hash" json:"hash"`
	Changed bool   `msgpack:"changed" json:"changed"`
	Sites   []Site `msgpack:"sites" json:"sites"`
}

// Site is one recognized call site.
type Site struct {
	Location    string   `msgpack:"location" json:"location"`
	Entry       string   `msgpack:"entry" json:"entry"`
	Shape       string   `msgpack:"shape" json:"shape"`
	Slots       int      `msgpack:"slots" json:"slots"`
	Resolutions []string `msgpack:"resolutions,omitempty" json:"resolutions,omitempty"`
	Rewritten   bool     `msgpack:"rewritten" json:"rewritten"`
}

// Diagnostic is a flattened diag.Diagnostic.
type Diagnostic struct {
	Severity string `msgpack:"severity" json:"severity"`
	Code     string `msgpack:"code" json:"code"`
	Message  string `msgpack:"message" json:"message"`
	Location string `msgpack:"location,omitempty" json:"location,omitempty"`
	Notes    []Note `msgpack:"notes,omitempty" json:"notes,omitempty"`
}

// Note is a diagnostic note.
type Note struct {
	Message  string `msgpack:"message" json:"message"`
	Location string `msgpack:"location,omitempty" json:"location,omitempty"`
}

// Meta carries run facts the driver result does not hold.
type Meta struct {
	Tool     string
	Manifest string
	// ManifestDigest is zero when the run had no manifest.
	ManifestDigest project.Digest
}

// Build summarizes res.
func Build(res *driver.Result, meta Meta) *Report {
	r := &Report{
		Schema:    SchemaVersion,
		Tool:      meta.Tool,
		Root:      res.Files.BaseDir(),
		Manifest:  meta.Manifest,
		Packages:  res.Packages,
		ElapsedMS: res.Elapsed.Milliseconds(),
		Timings:   res.Timings.Report(),
		Files:     make([]File, 0, len(res.Results)),
	}
	inputs := make([]project.Digest, 0, len(res.Results))
	for i := range res.Results {
		fr := &res.Results[i]
		f := File{Path: fr.Rel, Changed: fr.Changed()}
		if sf := res.Files.Get(fr.FileID); sf != nil && fr.Err == nil {
			d := project.Digest(sf.Hash)
			f.Hash = d.String()
			inputs = append(inputs, d)
		}
		if fr.Result != nil {
			for _, s := range fr.Result.Sites {
				f.Sites = append(f.Sites, Site{
					Location:    s.Location,
					Entry:       s.Entry,
					Shape:       s.Shape.String(),
					Slots:       s.Slots,
					Resolutions: s.Resolutions,
					Rewritten:   s.Rewritten,
				})
			}
		}
		r.Files = append(r.Files, f)
	}
	r.Inputs = project.Combine(meta.ManifestDigest, inputs...).String()
	for _, d := range res.Diagnostics() {
		r.Diags = append(r.Diags, flatten(res.Files, d))
	}
	return r
}

func flatten(fs *source.FileSet, d diag.Diagnostic) Diagnostic {
	out := Diagnostic{
		Severity: d.Severity.String(),
		Code:     d.Code.ID(),
		Message:  d.Message,
		Location: location(fs, d.Primary),
	}
	for _, n := range d.Notes {
		out.Notes = append(out.Notes, Note{Message: n.Msg, Location: location(fs, n.Span)})
	}
	return out
}

func location(fs *source.FileSet, sp source.Span) string {
	if fs == nil {
		return ""
	}
	return fs.Location(sp)
}

// Encode serializes r as JSON when path ends in .json and msgpack otherwise.
func Encode(path string, r *Report) ([]byte, error) {
	if isJSON(path) {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write stores r at path, replacing any previous report atomically.
func Write(path string, r *Report) error {
	data, err := Encode(path, r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "tmp-report-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(tmp, path)
}

// Read loads a report written by Write.
func Read(path string) (*Report, error) {
	// #nosec G304 -- path is provided by the caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if isJSON(path) {
		err = json.Unmarshal(data, &r)
	} else {
		err = msgpack.Unmarshal(data, &r)
	}
	if err != nil {
		return nil, fmt.Errorf("decode report %s: %w", path, err)
	}
	if r.Schema != SchemaVersion {
		return nil, fmt.Errorf("report %s: schema %d, want %d", path, r.Schema, SchemaVersion)
	}
	return &r, nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// Elapsed returns the run duration recorded in r.
func (r *Report) Elapsed() time.Duration {
	return time.Duration(r.ElapsedMS) * time.Millisecond
}
