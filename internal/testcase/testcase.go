// Package testcase is the builder surface user code calls to register tests
// and hooks (spec §4.3). It accumulates Entries into a TestCase and converts
// them into a runtime.Case for runtime.Run to execute; the dependency runs
// one way (testcase -> runtime, which never imports testcase), so the
// Isolator can bind a closure over a concrete *TestCase without a package
// cycle.
package testcase

import (
	"context"
	"fmt"
	"time"

	"code.cloudfoundry.org/clock"

	"vela/internal/runtime"
)

// Options mirrors runtime.Options; it is the public shape user-facing
// convenience wrappers (retry, timeout, fail, itIf, ...) mutate before an
// entry is registered.
type Options = runtime.Options

// DefaultOptions returns the spec §4.3 option defaults.
func DefaultOptions() Options {
	return runtime.DefaultOptions()
}

// Body is the function signature user code registers for a test or hook.
type Body = runtime.Body

// TestCase is the per-file container of tests and hooks (spec §3). It is
// built incrementally by the DSL methods below; none of them execute
// anything — only Run() does.
type TestCase struct {
	description string

	tests             []runtime.Entry
	sequenceTests     []runtime.Entry
	onlyTests         []runtime.Entry
	sequenceOnlyTests []runtime.Entry

	beforeAll  *runtime.Entry
	beforeEach *runtime.Entry
	afterAll   *runtime.Entry
	afterEach  *runtime.Entry
}

// New creates an empty TestCase named desc.
func New(desc string) *TestCase {
	return &TestCase{description: desc}
}

// Should renames the case.
func (tc *TestCase) Should(desc string) *TestCase {
	tc.description = desc
	return tc
}

func mergeOptions(opts []Options) Options {
	o := DefaultOptions()
	for _, override := range opts {
		o = override
	}
	return o
}

// It registers a parallel test, or a sequential one if opts marks it
// Sequential.
func (tc *TestCase) It(desc string, body Body, opts ...Options) *TestCase {
	o := mergeOptions(opts)
	e := runtime.Entry{Description: desc, Body: body, Options: o}
	if o.Sequential {
		tc.sequenceTests = append(tc.sequenceTests, e)
	} else {
		tc.tests = append(tc.tests, e)
	}
	return tc
}

// Sequence registers a test that always runs sequentially, regardless of
// the Sequential option.
func (tc *TestCase) Sequence(desc string, body Body, opts ...Options) *TestCase {
	o := mergeOptions(opts)
	o.Sequential = true
	tc.sequenceTests = append(tc.sequenceTests, runtime.Entry{Description: desc, Body: body, Options: o})
	return tc
}

// Only registers a test into the "only" selection (spec §4.4 "Only
// selection").
func (tc *TestCase) Only(desc string, body Body, opts ...Options) *TestCase {
	o := mergeOptions(opts)
	e := runtime.Entry{Description: desc, Body: body, Options: o}
	if o.Sequential {
		tc.sequenceOnlyTests = append(tc.sequenceOnlyTests, e)
	} else {
		tc.onlyTests = append(tc.onlyTests, e)
	}
	return tc
}

// Skip registers a test that is always skipped.
func (tc *TestCase) Skip(desc string, body Body, opts ...Options) *TestCase {
	o := mergeOptions(opts)
	o.Skip = true
	return tc.It(desc, body, o)
}

// Todo registers a not-yet-implemented test with an empty body.
func (tc *TestCase) Todo(desc string, opts ...Options) *TestCase {
	o := mergeOptions(opts)
	o.Todo = true
	return tc.It(desc, func(context.Context) error { return nil }, o)
}

// Retry is a convenience wrapper folding n into opts.Retry.
func (tc *TestCase) Retry(n int, desc string, body Body, opts ...Options) *TestCase {
	o := mergeOptions(opts)
	o.Retry = n
	return tc.It(desc, body, o)
}

// Timeout is a convenience wrapper folding ms into opts.Timeout.
func (tc *TestCase) Timeout(ms int, desc string, body Body, opts ...Options) *TestCase {
	o := mergeOptions(opts)
	o.Timeout = time.Duration(ms) * time.Millisecond
	return tc.It(desc, body, o)
}

// Fail is a convenience wrapper marking the test softfail.
func (tc *TestCase) Fail(desc string, body Body, opts ...Options) *TestCase {
	o := mergeOptions(opts)
	o.Softfail = true
	return tc.It(desc, body, o)
}

// ItIf is a convenience wrapper folding cond into opts.If.
func (tc *TestCase) ItIf(cond runtime.Predicate, desc string, body Body, opts ...Options) *TestCase {
	o := mergeOptions(opts)
	o.If = cond
	return tc.It(desc, body, o)
}

// Each registers len(table) entries sharing opts, with each description
// formatted via fmt.Sprintf(descFmt, table[i]).
func (tc *TestCase) Each(table []interface{}, descFmt string, body func(context.Context, interface{}) error, opts ...Options) *TestCase {
	o := mergeOptions(opts)
	for _, row := range table {
		row := row
		desc := fmt.Sprintf(descFmt, row)
		tc.It(desc, func(ctx context.Context) error { return body(ctx, row) }, o)
	}
	return tc
}

// BeforeAll sets the single beforeAll hook, overwriting any previous one.
func (tc *TestCase) BeforeAll(body Body, opts ...Options) *TestCase {
	o := mergeOptions(opts)
	e := runtime.Entry{Description: "beforeAll", Body: body, Options: o}
	tc.beforeAll = &e
	return tc
}

// BeforeEach sets the single beforeEach hook, overwriting any previous one.
func (tc *TestCase) BeforeEach(body Body, opts ...Options) *TestCase {
	o := mergeOptions(opts)
	e := runtime.Entry{Description: "beforeEach", Body: body, Options: o}
	tc.beforeEach = &e
	return tc
}

// AfterAll sets the single afterAll hook, overwriting any previous one.
func (tc *TestCase) AfterAll(body Body, opts ...Options) *TestCase {
	o := mergeOptions(opts)
	e := runtime.Entry{Description: "afterAll", Body: body, Options: o}
	tc.afterAll = &e
	return tc
}

// AfterEach sets the single afterEach hook, overwriting any previous one.
func (tc *TestCase) AfterEach(body Body, opts ...Options) *TestCase {
	o := mergeOptions(opts)
	e := runtime.Entry{Description: "afterEach", Body: body, Options: o}
	tc.afterEach = &e
	return tc
}

// Run executes the accumulated tests and hooks via runtime.Run and returns
// the resulting TestReport. It is the operation the spec calls run(); it is
// not exposed to scripts: the Isolator calls it itself once the script's
// Describe function has registered its tests and hooks.
func (tc *TestCase) Run(ctx context.Context, clk clock.Clock) *runtime.TestReport {
	c := &runtime.Case{
		Description:       tc.description,
		Tests:             tc.tests,
		SequenceTests:     tc.sequenceTests,
		OnlyTests:         tc.onlyTests,
		SequenceOnlyTests: tc.sequenceOnlyTests,
		BeforeAll:         tc.beforeAll,
		BeforeEach:        tc.beforeEach,
		AfterAll:          tc.afterAll,
		AfterEach:         tc.afterEach,
	}
	return runtime.Run(ctx, c, clk)
}
