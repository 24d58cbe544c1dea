// Package isolate implements the engine's Isolator (spec §4.2): it executes
// one file's transformed script in its own interpreter instance, wired to a
// fresh Context, and returns the run's TestReport or a classified error.
//
// Every file gets its own yaegi interpreter the same way codenerd's
// YaegiExecutor creates a fresh interp.New per tool invocation, so one
// file's globals, panics, or import side effects can never leak into
// another file's execution (spec §5 invariant: "an execution context never
// outlives Isolator.Execute", spec §8 invariant 4: "no test in file A can
// observe state from file B").
package isolate

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"vela/errors"
	"vela/internal/capture"
	"vela/internal/runtime"
	"vela/internal/sourcemap"
	"vela/internal/testcase"
	"vela/internal/transform"
	"vela/internal/xcontext"
)

// entrypoint is the conventionally-named function every script must define,
// following the same convention codenerd's YaegiExecutor uses for RunTool:
// yaegi's whole-file Eval has no REPL-style "last expression" value, so the
// script's result is retrieved by fetching and calling a well-known symbol
// after evaluation rather than by inspecting Eval's return.
const entrypoint = "main.Describe"

// entrypointFunc is the Go type every script's Describe function must
// satisfy: given a fresh *testcase.TestCase, register tests and hooks on it.
type entrypointFunc = func(*testcase.TestCase)

// ExecResult is the Isolator's output for one file (spec §4.2).
type ExecResult struct {
	OK     bool
	Report *runtime.TestReport
	Error  error
}

// Context is everything one execution can observe, handed to the script via
// the virtual "vela/testcase", "vela/console" and "vela/context" imports
// (spec §3's Context: host bindings, testcase API, capture logger,
// require-preload).
type Context struct {
	// Timeout bounds, separately, the file's evaluation, its entrypoint
	// call, and the run of its tests: for the run it is the parent
	// deadline every test body sees, so a test still in flight when it
	// fires fails with a timeout. Each test also has its own timeout via
	// Options.Timeout, enforced by runtime.Run.
	Timeout time.Duration
	Clock   clock.Clock
	Capture *capture.Capture
	// Preload lists extra yaegi symbol tables (e.g. a require-equivalent
	// exposing host packages) merged in before evaluation.
	Preload []interp.Exports
	// Requires holds the source of each --require module (spec §6), in
	// configured order. Each is evaluated into the interpreter before the
	// file's own code, the same way the config's require list preloads
	// shared helpers ahead of every test file (spec §4.2's "preamble").
	// A require module is declarations only (no package clause), matching
	// what Transform prepends for package-clause-less test files.
	Requires []string
	// UserContext carries the config's `context: {string→any}` overrides
	// (spec §3's Context row, spec §4.5 step 3's "user-provided context
	// overrides"), exposed to scripts as vela/context.Vars.
	UserContext map[string]string
	// SourceMap is the file's Transformer-produced source map (spec §4.1),
	// paired 1:1 with script. Execute uses it to map a failing test or
	// hook's generated-position error back to the line the test author
	// actually wrote (spec §1, §7). May be nil, in which case no position
	// mapping is attempted.
	SourceMap *sourcemap.SourceMap
}

// Isolator executes transformed Scripts inside fresh yaegi interpreters.
type Isolator struct{}

// New creates an Isolator. It is stateless and safe for concurrent Execute
// calls since every call builds its own interpreter.
func New() *Isolator { return &Isolator{} }

// Execute runs script under cctx, per spec §4.2's "Execution protocol".
func (iso *Isolator) Execute(script *transform.Script, cctx Context) ExecResult {
	tc := testcase.New(script.Path)

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return ExecResult{Error: errors.NewInternalError(err, "failed to load stdlib symbols")}
	}
	if err := i.Use(dslExports(cctx.Capture, cctx.UserContext)); err != nil {
		return ExecResult{Error: errors.NewInternalError(err, "failed to load dsl symbols")}
	}
	for _, exp := range cctx.Preload {
		if err := i.Use(exp); err != nil {
			return ExecResult{Error: errors.NewInternalError(err, "failed to load preloaded symbols")}
		}
	}
	for _, src := range cctx.Requires {
		if _, err := i.Eval(src); err != nil {
			return ExecResult{Error: errors.NewLoadError(err, "require")}
		}
	}

	describe, execErr := evalEntrypoint(i, script, cctx)
	if execErr != nil {
		return ExecResult{Error: execErr}
	}

	if execErr := callEntrypoint(describe, tc, script, cctx); execErr != nil {
		return ExecResult{Error: execErr}
	}

	runCtx, cancel := xcontext.WithTimeout(context.Background(), cctx.Clock, effectiveTimeout(cctx.Timeout), errExecTimedOut)
	defer cancel(errExecCanceled)

	report := tc.Run(runCtx, cctx.Clock)
	if err := validateReport(report); err != nil {
		return ExecResult{Error: err}
	}
	annotateSourcePositions(report, cctx.SourceMap)

	return ExecResult{OK: report.Status != runtime.ReportFailed, Report: report}
}

var (
	errExecTimedOut  = fmt.Errorf("isolate: file execution timed out")
	errExecCanceled  = fmt.Errorf("isolate: file execution canceled")
)

// evalEntrypoint evaluates code and fetches its Describe function, racing
// evaluation against cctx's timeout the same way runtime/stage.go races a
// test body: the interpreter runs in its own goroutine and a panic inside
// Eval is recovered into an ExecutionError rather than crashing the Pool.
func evalEntrypoint(i *interp.Interpreter, script *transform.Script, cctx Context) (fn entrypointFunc, execErr error) {
	done := make(chan struct{})
	var v reflect.Value
	var evalErr error

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				evalErr = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
			}
		}()
		if _, err := i.Eval(script.Code); err != nil {
			evalErr = err
			return
		}
		v, evalErr = i.Eval(entrypoint)
	}()

	timeout := effectiveTimeout(cctx.Timeout)
	ctx, cancel := xcontext.WithTimeout(context.Background(), cctx.Clock, timeout, errExecTimedOut)
	defer cancel(errExecCanceled)

	select {
	case <-done:
	case <-ctx.Done():
		return nil, errors.NewTimeoutError(int(timeout/time.Millisecond), cctx.Timeout <= 0)
	}

	if evalErr != nil {
		return nil, errors.NewBuildError(script.Path, "failed to evaluate script", []string{evalErr.Error()})
	}

	fn, ok := v.Interface().(entrypointFunc)
	if !ok {
		return nil, errors.NewInvalidReportError(fmt.Sprintf("%s must be func(*testcase.TestCase), found %s", entrypoint, v.Type()))
	}
	return fn, nil
}

// callEntrypoint invokes describe(tc), racing it against cctx's timeout the
// same way evalEntrypoint races evaluation. Like runBody, it does not wait
// for the goroutine after a timeout fires: Describe is documented to do
// nothing but register tests and hooks, so a Describe that never returns is
// a malformed script, not a slow test body, and gets no further grace
// period (spec §4.2's timeout bounds "the whole file's evaluation and
// entrypoint call").
func callEntrypoint(describe entrypointFunc, tc *testcase.TestCase, script *transform.Script, cctx Context) error {
	done := make(chan struct{})
	var panicErr error

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				panicErr = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
			}
		}()
		describe(tc)
	}()

	timeout := effectiveTimeout(cctx.Timeout)
	ctx, cancel := xcontext.WithTimeout(context.Background(), cctx.Clock, timeout, errExecTimedOut)
	defer cancel(errExecCanceled)

	select {
	case <-done:
	case <-ctx.Done():
		return errors.NewTimeoutError(int(timeout/time.Millisecond), cctx.Timeout <= 0)
	}

	if panicErr != nil {
		return errors.NewBuildError(script.Path, "entrypoint panicked", []string{panicErr.Error()})
	}
	return nil
}

func effectiveTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return runtime.MaxTimeout
	}
	return d
}

// validateReport implements the shape-validation half of spec §4.2: a
// well-formed TestReport always carries a non-empty Status.
func validateReport(r *runtime.TestReport) error {
	if r == nil {
		return errors.NewInvalidReportError("run() returned a nil report")
	}
	if r.Status == "" {
		return errors.NewInvalidReportError("report is missing a status")
	}
	return nil
}
