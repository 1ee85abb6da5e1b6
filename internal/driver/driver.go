// Package driver loads Go packages and runs the rewrite pass over their files
// in parallel.
package driver

import (
	"context"
	"fmt"
	"go/token"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"interpol/internal/diag"
	"interpol/internal/observ"
	"interpol/internal/pass"
	"interpol/internal/source"
	"interpol/internal/wrap"
)

// Options configures a run.
type Options struct {
	// Dir is the directory packages are loaded from; empty means the working directory.
	Dir      string
	Patterns []string
	Tests    bool
	// Jobs bounds the number of files processed at once; <= 0 means GOMAXPROCS.
	Jobs           int
	MaxDiagnostics int
	// Env overrides the environment of the go command; nil inherits it.
	Env      []string
	Pass     pass.Config
	Progress ProgressSink
}

func (o Options) root() string {
	if o.Pass.ProjectRoot != "" {
		return o.Pass.ProjectRoot
	}
	if o.Dir != "" {
		return o.Dir
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// FileResult is the outcome for one file.
type FileResult struct {
	Path   string
	Rel    string
	FileID source.FileID
	Bag    *diag.Bag
	Result *pass.Result
	Err    error
}

// Changed reports whether the pass rewrote the file.
func (r *FileResult) Changed() bool { return r.Result != nil && r.Result.Changed }

// Result aggregates a run.
type Result struct {
	Files    *source.FileSet
	Packages int
	// Load holds diagnostics about packages that could not be loaded.
	Load    *diag.Bag
	Results []FileResult
	Elapsed time.Duration
	// Timings holds one phase per stage; Write appends its own.
	Timings *observ.Timer
}

// HasErrors reports whether any diagnostic of error severity was produced.
func (r *Result) HasErrors() bool {
	if r.Load.HasErrors() {
		return true
	}
	for i := range r.Results {
		if r.Results[i].Err != nil || r.Results[i].Bag.HasErrors() {
			return true
		}
	}
	return false
}

// Diagnostics returns every diagnostic of the run, sorted.
func (r *Result) Diagnostics() []diag.Diagnostic {
	all := diag.NewBag(0)
	all.Merge(r.Load)
	for i := range r.Results {
		all.Merge(r.Results[i].Bag)
	}
	all.Sort()
	all.Dedup()
	return all.Items()
}

// Rewrite loads the packages of opts and rewrites their files. The returned
// error covers loading and cancellation; per-file failures are in the results.
func Rewrite(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	root := opts.root()
	if opts.Pass.ProjectRoot == "" {
		opts.Pass.ProjectRoot = root
	}
	fset := token.NewFileSet()
	res := &Result{
		Files:   source.NewFileSetWithBase(root),
		Load:    diag.NewBag(opts.MaxDiagnostics),
		Timings: observ.NewTimer(),
	}

	emit(opts.Progress, Event{Stage: StageLoad, Status: StatusWorking})
	phase := res.Timings.Begin(string(StageLoad))
	units, loaded, err := load(ctx, opts, fset, diag.BagReporter{Bag: res.Load})
	if err != nil {
		emit(opts.Progress, Event{Stage: StageLoad, Status: StatusError, Err: err})
		return nil, err
	}
	res.Packages = loaded
	res.Timings.End(phase, fmt.Sprintf("%d package(s), %d file(s)", loaded, len(units)))
	emit(opts.Progress, Event{Stage: StageLoad, Status: StatusDone, Elapsed: time.Since(start)})

	// everything shared by the workers is populated here, before they start
	dirs := wrap.NewSourceDirectives(fset)
	ids := make([]source.FileID, len(units))
	contents := make([][]byte, len(units))
	loadErrs := make([]error, len(units))
	for i, u := range units {
		dirs.Preload(fset, u.file)
		// #nosec G304 -- path comes from the package loader
		content, err := os.ReadFile(u.path)
		if err != nil {
			loadErrs[i] = fmt.Errorf("read %s: %w", u.rel, err)
			continue
		}
		contents[i] = content
		ids[i] = res.Files.Add(u.path, content, 0)
		emit(opts.Progress, Event{File: u.rel, Stage: StageRewrite, Status: StatusQueued})
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	phase = res.Timings.Begin(string(StageRewrite))
	res.Results = make([]FileResult, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(units))))
	for i, u := range units {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			bag := diag.NewBag(opts.MaxDiagnostics)
			fr := FileResult{Path: u.path, Rel: u.rel, FileID: ids[i], Bag: bag}
			if loadErrs[i] != nil {
				fr.Err = loadErrs[i]
				diag.ReportError(diag.BagReporter{Bag: bag}, diag.LoadFileError, source.Span{File: source.NoFile}, loadErrs[i].Error()).Emit()
				res.Results[i] = fr
				emit(opts.Progress, Event{File: u.rel, Stage: StageRewrite, Status: StatusError, Err: fr.Err})
				return nil
			}

			began := time.Now()
			emit(opts.Progress, Event{File: u.rel, Stage: StageRewrite, Status: StatusWorking})
			rep := diag.NewDedupReporter(diag.BagReporter{Bag: bag})
			out, err := pass.Run(opts.Pass, pass.Unit{
				Fset:       fset,
				File:       u.file,
				Pkg:        u.pkg.Types,
				Info:       u.pkg.TypesInfo,
				Src:        contents[i],
				Files:      res.Files,
				Directives: dirs,
			}, rep)
			fr.Result, fr.Err = out, err
			res.Results[i] = fr

			evt := Event{File: u.rel, Stage: StageRewrite, Status: StatusDone, Elapsed: time.Since(began)}
			switch {
			case err != nil:
				evt.Status, evt.Err = StatusError, err
			case bag.HasErrors():
				evt.Status = StatusError
			}
			if out != nil {
				for _, s := range out.Sites {
					if s.Rewritten {
						evt.Sites++
					}
				}
			}
			emit(opts.Progress, evt)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	res.Timings.End(phase, fmt.Sprintf("%d job(s)", max(1, min(jobs, len(units)))))
	res.Elapsed = time.Since(start)
	return res, nil
}
