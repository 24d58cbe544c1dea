package runtime

import (
	"context"
	"sync"

	"code.cloudfoundry.org/clock"
	"golang.org/x/sync/errgroup"

	"vela/errors"
)

// Case is the plain-data view of a testcase.TestCase that Run consumes. The
// testcase package builds one of these from its registry and hands it here,
// keeping the dependency one-directional (testcase -> runtime) so the
// builder API and the orchestration engine don't import each other.
type Case struct {
	Description string

	Tests             []Entry
	SequenceTests     []Entry
	OnlyTests         []Entry
	SequenceOnlyTests []Entry

	BeforeAll  *Entry
	BeforeEach *Entry
	AfterAll   *Entry
	AfterEach  *Entry
}

// Run executes c per spec §4.4 and aggregates a TestReport. clk drives all
// timeout races, letting callers (tests included) substitute a fake clock.
func Run(ctx context.Context, c *Case, clk clock.Clock) *TestReport {
	total := len(c.Tests) + len(c.SequenceTests) + len(c.OnlyTests) + len(c.SequenceOnlyTests)

	onlySelected := len(c.OnlyTests) > 0 || len(c.SequenceOnlyTests) > 0

	execParallel := c.Tests
	execSequential := c.SequenceTests
	var preSkipped []Entry
	if onlySelected {
		execParallel = c.OnlyTests
		execSequential = c.SequenceOnlyTests
		preSkipped = append(append([]Entry(nil), c.Tests...), c.SequenceTests...)
	}

	report := &TestReport{Description: c.Description}

	for _, e := range preSkipped {
		report.Tests = append(report.Tests, Result{Description: e.Description, Status: StatusSkipped})
	}

	beforeAllFailed := false
	if c.BeforeAll != nil {
		res := runEntry(ctx, clk, *c.BeforeAll, true)
		res.HookDescription = "beforeAll"
		report.Hooks = append(report.Hooks, res)
		if res.Status == StatusFailed || res.Status == StatusSoftfailed {
			beforeAllFailed = res.Status == StatusFailed
		}
	}

	if beforeAllFailed {
		// Per spec §9's resolved Open Question: a failed beforeAll skips
		// all remaining tests but afterAll still runs.
		for _, e := range execParallel {
			report.Tests = append(report.Tests, Result{Description: e.Description, Status: StatusSkipped})
		}
		for _, e := range execSequential {
			report.Tests = append(report.Tests, Result{Description: e.Description, Status: StatusSkipped})
		}
	} else {
		parallelResults, parallelHooks := runParallelBatches(ctx, clk, execParallel, c.BeforeEach, c.AfterEach)
		report.Tests = append(report.Tests, parallelResults...)
		report.Hooks = append(report.Hooks, parallelHooks...)

		for _, e := range execSequential {
			res, hooks := runBracketed(ctx, clk, e, c.BeforeEach, c.AfterEach)
			report.Tests = append(report.Tests, res)
			report.Hooks = append(report.Hooks, hooks...)
		}
	}

	if c.AfterAll != nil {
		res := runEntry(ctx, clk, *c.AfterAll, true)
		res.HookDescription = "afterAll"
		report.Hooks = append(report.Hooks, res)
	}

	report.Stats = Stats{Total: total}
	for _, r := range report.Tests {
		tally(&report.Stats, r.Status)
	}

	switch {
	case report.Stats.Failed > 0:
		report.Status = ReportFailed
	case report.Stats.Total == 0:
		report.Status = ReportEmpty
	default:
		report.Status = ReportPassed
	}

	return report
}

func tally(s *Stats, status Status) {
	switch status {
	case StatusPassed, StatusBenched:
		s.Passed++
	case StatusFailed:
		s.Failed++
	case StatusSoftfailed:
		s.Softfailed++
	case StatusSkipped:
		s.Skipped++
	case StatusTodo:
		s.Todo++
	}
}

// runBracketed runs a single test with its beforeEach/afterEach hooks, per
// spec §4.4 ordering guarantee 2: "its own beforeEach precedes and its own
// afterEach follows the test body". It returns the test's own Result plus
// every Hook Result produced around it (spec §7: a HookError "is reported
// against the hook"), so a failing afterEach surfaces in report.Hooks
// instead of being silently dropped.
func runBracketed(ctx context.Context, clk clock.Clock, test Entry, before, after *Entry) (Result, []Result) {
	var hooks []Result

	if before != nil {
		res := runEntry(ctx, clk, *before, true)
		res.HookDescription = "beforeEach"
		hooks = append(hooks, res)
		if res.Status == StatusFailed {
			return Result{
				Description: test.Description,
				Status:      StatusFailed,
				Error:       &ExecError{Message: "beforeEach failed: " + errMessage(res), Kind: errors.KindHook},
			}, hooks
		}
	}

	res := runEntry(ctx, clk, test, false)

	if after != nil {
		afterRes := runEntry(ctx, clk, *after, true)
		afterRes.HookDescription = "afterEach"
		hooks = append(hooks, afterRes)
	}

	return res, hooks
}

func errMessage(r Result) string {
	if r.Error != nil {
		return r.Error.Message
	}
	return "unknown error"
}

// runParallelBatches runs tests concurrently bounded to ParallelismWidth(),
// per spec §4.4 ordering guarantee 2. errgroup.SetLimit enforces the same
// "at most P in flight" bound as explicit batches of size P without
// imposing an artificial barrier between batches, while ordering among
// concurrently running tests remains (by design) unspecified. Hook results
// from every test's bracketing beforeEach/afterEach are collected under a
// mutex, since runBracketed's goroutines append to a shared slice.
func runParallelBatches(ctx context.Context, clk clock.Clock, tests []Entry, before, after *Entry) ([]Result, []Result) {
	results := make([]Result, len(tests))
	if len(tests) == 0 {
		return results, nil
	}

	var mu sync.Mutex
	var hookResults []Result

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ParallelismWidth())
	for i, e := range tests {
		i, e := i, e
		g.Go(func() error {
			res, hooks := runBracketed(gctx, clk, e, before, after)
			results[i] = res
			if len(hooks) > 0 {
				mu.Lock()
				hookResults = append(hookResults, hooks...)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait() // runBracketed never returns an error to the group
	return results, hookResults
}
