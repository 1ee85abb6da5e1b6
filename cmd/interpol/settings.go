package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"interpol/internal/project"
	"interpol/internal/report"
	"interpol/internal/version"
)

type outputFormat string

const (
	formatPretty outputFormat = "pretty"
	formatJSON   outputFormat = "json"
	formatShort  outputFormat = "short"
)

// settings is the manifest merged with command-line flags; flags win when set.
type settings struct {
	manifest *project.Manifest
	root     string
	patterns []string
	runtime  string
	tests    bool
	jobs     int
	trace    bool
	maxDiag  int
	timings  bool
	format   outputFormat
	color    bool
}

func loadSettings(cmd *cobra.Command, args []string) (*settings, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	m, found, err := project.Discover(wd)
	if err != nil {
		return nil, err
	}
	s := &settings{root: wd}
	if found {
		s.manifest = m
		s.root = m.Root
	} else {
		def := project.Default()
		m = &def
	}
	s.patterns = m.Rewrite.Patterns
	s.runtime = m.Rewrite.Runtime
	s.tests = m.Rewrite.Tests
	s.jobs = m.Rewrite.Jobs
	s.trace = m.Rewrite.Trace

	flags := cmd.Flags()
	if len(args) > 0 {
		s.patterns = args
	}
	if flags.Changed("runtime") {
		if s.runtime, err = flags.GetString("runtime"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("tests") {
		if s.tests, err = flags.GetBool("tests"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("jobs") {
		if s.jobs, err = flags.GetInt("jobs"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("trace") {
		if s.trace, err = flags.GetBool("trace"); err != nil {
			return nil, err
		}
	}
	if s.maxDiag, err = flags.GetInt("max-diagnostics"); err != nil {
		return nil, err
	}
	if s.timings, err = flags.GetBool("timings"); err != nil {
		return nil, err
	}

	format, err := flags.GetString("format")
	if err != nil {
		return nil, err
	}
	switch f := outputFormat(strings.ToLower(format)); f {
	case formatPretty, formatJSON, formatShort:
		s.format = f
	default:
		return nil, fmt.Errorf("unsupported format %q (must be pretty, json or short)", format)
	}

	colorFlag, err := flags.GetString("color")
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(colorFlag) {
	case "on":
		s.color = true
	case "off":
		s.color = false
	case "auto", "":
		s.color = isTerminal(os.Stderr) && os.Getenv("NO_COLOR") == ""
	default:
		return nil, fmt.Errorf("invalid --color value %q (expected auto|on|off)", colorFlag)
	}
	return s, nil
}

func (s *settings) manifestPath() string {
	if s.manifest == nil {
		return ""
	}
	return s.manifest.Path
}

func (s *settings) reportMeta() report.Meta {
	meta := report.Meta{Tool: "interpol " + version.Version, Manifest: s.manifestPath()}
	if s.manifest != nil {
		meta.ManifestDigest = s.manifest.Digest
	}
	return meta
}
