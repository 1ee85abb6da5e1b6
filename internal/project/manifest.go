// Package project reads and writes the interpol.toml project manifest.
package project

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Manifest is the decoded interpol.toml.
type Manifest struct {
	Project ProjectSection `toml:"project"`
	Rewrite RewriteSection `toml:"rewrite"`

	// Path and Root are set by Load.
	Path   string `toml:"-"`
	Root   string `toml:"-"`
	Digest Digest `toml:"-"`
}

// ProjectSection is the [project] table.
type ProjectSection struct {
	// Root is relative to the manifest directory.
	Root string `toml:"root"`
}

// RewriteSection is the [rewrite] table.
type RewriteSection struct {
	Patterns []string `toml:"patterns"`
	Runtime  string   `toml:"runtime"`
	Tests    bool     `toml:"tests"`
	Jobs     int      `toml:"jobs"`
	Trace    bool     `toml:"trace"`
}

// DefaultRuntime is the import path generated code refers to by default.
const DefaultRuntime = "interpol/protocol"

// Default returns the manifest written by "interpol init".
func Default() Manifest {
	return Manifest{
		Project: ProjectSection{Root: "."},
		Rewrite: RewriteSection{
			Patterns: []string{"./..."},
			Runtime:  DefaultRuntime,
		},
	}
}

// Load decodes the manifest at path. Missing keys take their defaults and
// unknown keys are an error.
func Load(path string) (*Manifest, error) {
	// #nosec G304 -- path is provided by the caller
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNoManifest)
		}
		return nil, err
	}
	m, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	m.Path = abs
	m.Root = filepath.Clean(filepath.Join(filepath.Dir(abs), m.Project.Root))
	return m, nil
}

// Decode parses manifest content.
func Decode(data []byte) (*Manifest, error) {
	m := Default()
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	m.Digest = DigestOf(data)
	return &m, nil
}

func (m *Manifest) validate() error {
	if m.Rewrite.Jobs < 0 {
		return fmt.Errorf("[rewrite] jobs must not be negative, got %d", m.Rewrite.Jobs)
	}
	if strings.TrimSpace(m.Rewrite.Runtime) == "" {
		return errors.New("[rewrite] runtime must not be empty")
	}
	if len(m.Rewrite.Patterns) == 0 {
		m.Rewrite.Patterns = []string{"./..."}
	}
	if m.Project.Root == "" {
		m.Project.Root = "."
	}
	return nil
}

// Encode renders the manifest as TOML.
func (m Manifest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("failed to encode TOML: %w", err)
	}
	return buf.Bytes(), nil
}

// Discover loads the manifest found from startDir upwards. ok is false when
// there is none.
func Discover(startDir string) (m *Manifest, ok bool, err error) {
	path, ok, err := FindManifest(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	m, err = Load(path)
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// Init writes the default manifest into dir and fails if one exists.
func Init(dir string) (string, error) {
	path := filepath.Join(dir, ManifestName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to stat %q: %w", path, err)
	}
	data, err := Default().Encode()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
