// Package pool implements the engine's Pool (spec §4.5): it drives
// execution over a list of files with bounded concurrency, collecting one
// PoolResult per file and surfacing a terminal progress model.
//
// The Pool owns the only mutable shared state in a run (the PoolResult map,
// stats counters, the terminal view); its per-file goroutines update it only
// while holding one Pool-owned mutex, much as the teacher's planner owns
// DUTStatus and the run's summary (chromiumos/tast/internal/planner/run.go);
// per-file logs are appended only by that file's own capture.Capture, never
// touched by the Pool directly.
package pool

import (
	"context"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/google/uuid"
	"github.com/traefik/yaegi/interp"
	"golang.org/x/sync/errgroup"

	"vela/internal/capture"
	"vela/internal/isolate"
	"vela/internal/runtime"
	"vela/internal/sourcemap"
	"vela/internal/term"
	"vela/internal/transform"
)

// PoolResult is one file's outcome (spec §3's PoolResult row).
type PoolResult struct {
	Report    *runtime.TestReport
	Error     error
	DurationS float64
	Logs      []capture.Entry
	SourceMap *sourcemap.SourceMap
}

// Failed reports whether this result should flip the run's exit code, per
// spec §4.5 step 7.
func (r PoolResult) Failed() bool {
	return r.Error != nil || (r.Report != nil && r.Report.Status == runtime.ReportFailed)
}

// Options configures a Pool run.
type Options struct {
	// Concurrency bounds how many files run at once per chunk (spec §4.5
	// "Concurrency policy"), default 4.
	Concurrency int
	// Timeout is the Isolator's per-file top-level limit (spec §4.5 step 4).
	Timeout time.Duration
	// Echo mirrors each file's captured console writes to stdout as they
	// happen.
	Echo bool
	// Preload carries require-equivalent yaegi symbol tables merged into
	// every file's interpreter (spec §6 "--require").
	Preload []interp.Exports
	// RequireSources holds the loaded source of each --require module, in
	// configured order, merged into every file's interpreter ahead of its
	// own code (spec §6 "--require").
	RequireSources []string
	// UserContext carries the config's `context: {string→any}` overrides
	// into every file's fresh Context (spec §4.5 step 3).
	UserContext map[string]string
	// Clock drives every file's timeout race; defaults to the real clock
	// when nil.
	Clock clock.Clock
}

func (o Options) concurrency() int {
	if o.Concurrency <= 0 {
		return 4
	}
	return o.Concurrency
}

func (o Options) clock() clock.Clock {
	if o.Clock == nil {
		return clock.NewClock()
	}
	return o.Clock
}

// Run is the result of driving a whole file list: the ordered PoolResult
// map plus the derived exit code (spec §4.5 step 7).
type Run struct {
	// ID uniquely identifies this run for logging and reporter
	// correlation, generated fresh per Run call the way the pack's own
	// services stamp a uuid per request rather than reusing one globally.
	ID string
	// Files preserves submission order, satisfying spec §3's "the map
	// preserves insertion order for stable reporting".
	Files    []string
	Results  map[string]PoolResult
	ExitCode int
}

// Pool drives Transform -> Isolator.Execute over a file list.
type Pool struct {
	transformer *transform.Transformer
	isolator    *isolate.Isolator
	view        *term.View
}

// New creates a Pool. view may be nil, in which case progress is not
// rendered (useful for tests and non-interactive output modes).
func New(view *term.View) *Pool {
	return &Pool{
		transformer: transform.New(),
		isolator:    isolate.New(),
		view:        view,
	}
}

// Run executes every file in files per spec §4.5's per-file protocol and
// concurrency policy, returning the aggregated Run.
func (p *Pool) Run(ctx context.Context, files []string, opts Options) *Run {
	run := &Run{ID: uuid.New().String(), Files: files, Results: make(map[string]PoolResult, len(files))}
	clk := opts.clock()
	width := opts.concurrency()

	if p.view != nil {
		p.view.Init(files)
	}

	var mu sync.Mutex // guards run.Results and terminal updates, per spec §4.5 "Shared-resource policy"

	for chunkStart := 0; chunkStart < len(files); chunkStart += width {
		chunkEnd := chunkStart + width
		if chunkEnd > len(files) {
			chunkEnd = len(files)
		}
		chunk := files[chunkStart:chunkEnd]

		g, gctx := errgroup.WithContext(ctx)
		for _, f := range chunk {
			f := f
			g.Go(func() error {
				res := p.runFile(gctx, f, opts, clk, &mu)
				mu.Lock()
				run.Results[f] = res
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		if p.view != nil {
			p.view.Render()
		}
	}

	run.ExitCode = 0
	for _, res := range run.Results {
		if res.Failed() {
			run.ExitCode = 1
			break
		}
	}

	return run
}

// runFile implements spec §4.5's 7-step per-file protocol for one file.
func (p *Pool) runFile(ctx context.Context, file string, opts Options, clk clock.Clock, mu *sync.Mutex) PoolResult {
	if p.view != nil {
		mu.Lock()
		p.view.SetStatus(file, term.StatusPending)
		mu.Unlock()
	}

	start := clk.Now()

	script, smap, err := p.transformer.Transform(file)
	if err != nil {
		return p.finish(file, PoolResult{Error: err, DurationS: elapsed(clk, start)}, mu)
	}

	clog := capture.New(opts.Echo)
	execRes := p.isolator.Execute(script, isolate.Context{
		Timeout:     opts.Timeout,
		Clock:       clk,
		Capture:     clog,
		Preload:     opts.Preload,
		Requires:    opts.RequireSources,
		UserContext: opts.UserContext,
		SourceMap:   smap,
	})

	res := PoolResult{
		Report:    execRes.Report,
		Error:     execRes.Error,
		DurationS: elapsed(clk, start),
		Logs:      clog.Entries(),
		SourceMap: smap,
	}
	return p.finish(file, res, mu)
}

func (p *Pool) finish(file string, res PoolResult, mu *sync.Mutex) PoolResult {
	if p.view != nil {
		mu.Lock()
		if res.Failed() {
			p.view.SetStatus(file, term.StatusFailed)
		} else {
			p.view.SetStatus(file, term.StatusPassed)
		}
		mu.Unlock()
	}
	return res
}

func elapsed(clk clock.Clock, start time.Time) float64 {
	return clk.Now().Sub(start).Seconds()
}
