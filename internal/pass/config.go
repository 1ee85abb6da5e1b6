// Package pass runs the rewrite over one type-checked file.
package pass

import (
	"github.com/rs/zerolog"

	"interpol/internal/rewrite"
)

// Config is passed explicitly to every run; the pass reads no global state.
type Config struct {
	// Trace enables debug events on Logger.
	Trace  bool
	Logger zerolog.Logger
	// ProjectRoot is the directory slot locations are relative to.
	ProjectRoot string
	// RuntimeImport is the import path of the guard package.
	RuntimeImport string
}

func (c Config) runtime() string {
	if c.RuntimeImport == "" {
		return rewrite.DefaultRuntime
	}
	return c.RuntimeImport
}

func (c Config) logger() zerolog.Logger {
	if !c.Trace {
		return zerolog.Nop()
	}
	return c.Logger
}
