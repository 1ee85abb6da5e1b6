package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"interpol/internal/diag"
	"interpol/internal/diagfmt"
	"interpol/internal/driver"
	"interpol/internal/pass"
)

func driverOptions(s *settings) driver.Options {
	return driver.Options{
		Dir:            s.root,
		Patterns:       s.patterns,
		Tests:          s.tests,
		Jobs:           s.jobs,
		MaxDiagnostics: s.maxDiag,
		Pass: pass.Config{
			Trace:         s.trace,
			Logger:        newTraceLogger(s.trace, os.Stderr),
			ProjectRoot:   s.root,
			RuntimeImport: s.runtime,
		},
	}
}

func runDriver(ctx context.Context, s *settings, mode uiMode, title string) (*driver.Result, error) {
	opts := driverOptions(s)
	// трассировка и TUI делят stderr, поэтому вместе не включаются
	if shouldUseTUI(mode) && !s.trace {
		return runRewriteWithUI(ctx, title, opts)
	}
	return driver.Rewrite(ctx, opts)
}

// printDiagnostics renders every diagnostic of res in the selected format.
func printDiagnostics(w io.Writer, res *driver.Result, s *settings) error {
	bag := diag.NewBag(0)
	for _, d := range res.Diagnostics() {
		bag.Add(d)
	}
	switch s.format {
	case formatJSON:
		return diagfmt.JSON(w, bag, res.Files, diagfmt.JSONOpts{
			IncludePositions: true,
			Max:              s.maxDiag,
			IncludeNotes:     true,
		})
	case formatShort:
		return diagfmt.Short(w, bag, res.Files, true)
	default:
		diagfmt.Pretty(w, bag, res.Files, diagfmt.PrettyOpts{
			Color:     s.color,
			Context:   0,
			ShowNotes: true,
			Max:       s.maxDiag,
		})
		return nil
	}
}

func summary(res *driver.Result) string {
	changed, sites := 0, 0
	for i := range res.Results {
		fr := &res.Results[i]
		if fr.Changed() {
			changed++
		}
		if fr.Result != nil {
			for _, site := range fr.Result.Sites {
				if site.Rewritten {
					sites++
				}
			}
		}
	}
	return fmt.Sprintf("%d package(s), %d file(s), %d rewritten, %d site(s) in %s",
		res.Packages, len(res.Results), changed, sites, res.Elapsed.Round(time.Millisecond))
}
