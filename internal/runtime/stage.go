package runtime

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"code.cloudfoundry.org/clock"

	"vela/errors"
	"vela/internal/xcontext"
)

// runBody races e.Body against e's effective timeout on clk, exactly like
// the teacher's stage.runStages: the body runs on its own goroutine so a
// non-cooperating body cannot block the scheduler, and the first of
// "body returned" or "timer fired" decides the outcome (spec §5
// "Cancellation": the timer's rejection wins).
func runBody(ctx context.Context, clk clock.Clock, timeout time.Duration, body Body) (stackText string, err error) {
	rctx, cancel := xcontext.WithTimeout(ctx, clk, timeout, errBodyTimedOut)
	defer cancel(errBodyCanceled)

	type outcome struct {
		stack string
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		var o outcome
		defer func() {
			if r := recover(); r != nil {
				o = outcome{stack: string(debug.Stack()), err: fmt.Errorf("panic: %v", r)}
			}
			done <- o
		}()
		o.err = body(rctx)
	}()

	select {
	case o := <-done:
		return o.stack, o.err
	case <-rctx.Done():
		// body still owns its goroutine; its result is discarded
		return "", errTimedOut
	}
}

var (
	errBodyTimedOut  = fmt.Errorf("runtime: body exceeded its timeout")
	errBodyCanceled  = fmt.Errorf("runtime: body canceled")
	errTimedOut      = fmt.Errorf("runtime: timed out")
)

// runEntry executes a single test or hook end to end per spec §4.4's
// "Per-executable execution algorithm". isHook distinguishes a hook body
// from a test body so a failure tags the right spec §7 error kind
// (KindHook vs KindExecution) via tagEntryError.
func runEntry(ctx context.Context, clk clock.Clock, e Entry, isHook bool) Result {
	res := Result{Description: e.Description}

	if e.Options.Todo {
		res.Status = StatusTodo
		return res
	}

	if skipped := isSkipped(ctx, e.Options); skipped {
		res.Status = StatusSkipped
		return res
	}

	effTimeout := e.Options.EffectiveTimeout()
	usedFallback := e.Options.Timeout <= 0

	start := clk.Now()
	var lastErr error
	var lastStack string
	retries := 0
	for {
		stackText, err := runBody(ctx, clk, effTimeout, e.Body)
		if err == nil {
			break
		}
		lastErr = err
		lastStack = stackText
		if err == errTimedOut {
			lastErr = errors.NewTimeoutError(int(effTimeout/time.Millisecond), usedFallback)
			lastStack = ""
		}
		retries++
		if retries > e.Options.Retry {
			break
		}
	}
	res.Retries = retries

	if lastErr != nil {
		tagged := tagEntryError(lastErr, isHook, e.Description)
		res.Error = &ExecError{Message: tagged.Error(), Stack: lastStack, Kind: tagged.Kind()}
		if e.Options.Softfail {
			res.Status = StatusSoftfailed
		} else {
			res.Status = StatusFailed
		}
		res.Duration = clk.Now().Sub(start)
		return res
	}

	if e.Options.Bench {
		metrics := runBench(ctx, clk, e)
		res.Bench = metrics
		res.Status = StatusBenched
		res.Duration = clk.Now().Sub(start)
		return res
	}

	res.Status = StatusPassed
	res.Duration = clk.Now().Sub(start)
	return res
}

// tagEntryError classifies a body's failure per spec §7's error taxonomy.
// An already-tagged cause (e.g. the TimeoutError runBody constructs above)
// passes through untouched; everything else becomes a HookError or
// ExecutionError depending on which kind of entry failed, so reporters can
// recover the right kind via errors.KindOf before the result reaches the
// report.
func tagEntryError(cause error, isHook bool, desc string) *errors.E {
	if e, ok := cause.(*errors.E); ok && e.Kind() != errors.KindNone {
		return e
	}
	if isHook {
		return errors.NewHookError(cause, desc)
	}
	return errors.NewExecutionError(cause, "")
}

// isSkipped implements spec §4.4 step 2.
func isSkipped(ctx context.Context, o Options) bool {
	if o.Skip {
		return true
	}
	if o.If == nil {
		return false
	}
	v := o.If(ctx)
	if v == nil {
		return true
	}
	return !*v
}
