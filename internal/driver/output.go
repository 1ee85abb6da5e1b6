package driver

import (
	"fmt"
	"io"
	"time"

	"interpol/internal/edit"
)

// OutputMode selects where rewritten files go.
type OutputMode uint8

const (
	// OutputStdout prints every rewritten file, preceded by a header line.
	OutputStdout OutputMode = iota
	// OutputInPlace overwrites the original files.
	OutputInPlace
	// OutputDir mirrors rewritten files under a directory, keeping their
	// paths relative to the project root.
	OutputDir
	// OutputNone writes nothing.
	OutputNone
)

// Output configures Write.
type Output struct {
	Mode   OutputMode
	Dir    string
	Stdout io.Writer
}

// Write emits every changed file of res and returns their relative paths.
func Write(res *Result, out Output, progress ProgressSink) ([]string, error) {
	var written []string
	if res.Timings != nil && out.Mode != OutputNone {
		phase := res.Timings.Begin(string(StageWrite))
		defer func() { res.Timings.End(phase, fmt.Sprintf("%d file(s)", len(written))) }()
	}
	for i := range res.Results {
		fr := &res.Results[i]
		if !fr.Changed() {
			continue
		}
		began := time.Now()
		var err error
		switch out.Mode {
		case OutputNone:
			continue
		case OutputInPlace:
			err = edit.WriteInPlace(fr.Path, fr.Result.Output)
		case OutputDir:
			err = edit.Mirror(out.Dir, fr.Rel, fr.Result.Output)
		default:
			if out.Stdout == nil {
				return written, fmt.Errorf("driver: no writer for stdout output")
			}
			if _, err = fmt.Fprintf(out.Stdout, "// %s\n", fr.Rel); err == nil {
				_, err = out.Stdout.Write(fr.Result.Output)
			}
		}
		if err != nil {
			emit(progress, Event{File: fr.Rel, Stage: StageWrite, Status: StatusError, Err: err})
			return written, fmt.Errorf("write %s: %w", fr.Rel, err)
		}
		emit(progress, Event{File: fr.Rel, Stage: StageWrite, Status: StatusDone, Elapsed: time.Since(began)})
		written = append(written, fr.Rel)
	}
	return written, nil
}
