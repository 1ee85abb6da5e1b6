package main

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// newTraceLogger returns the logger handed to the pass. Tracing off yields a
// disabled logger so call sites pay nothing.
func newTraceLogger(enabled bool, w io.Writer) zerolog.Logger {
	if !enabled {
		return zerolog.Nop()
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	return zerolog.New(out).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}
