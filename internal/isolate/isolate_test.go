package isolate

import (
	"context"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vela/internal/capture"
	"vela/internal/runtime"
	"vela/internal/sourcemap"
	"vela/internal/transform"
)

func newCtx() Context {
	return Context{
		Timeout: time.Second,
		Clock:   fakeclock.NewFakeClock(time.Unix(0, 0)),
		Capture: capture.New(false),
	}
}

func TestExecute_SimplePassingScript(t *testing.T) {
	script := &transform.Script{
		Path: "passing.go",
		Code: `package main

import (
	"context"

	tc "vela/testcase"
)

func Describe(t *tc.TestCase) {
	t.It("passes", func(ctx context.Context) error { return nil })
}
`,
	}

	iso := New()
	res := iso.Execute(script, newCtx())

	require.NoError(t, res.Error)
	require.NotNil(t, res.Report)
	assert.True(t, res.OK)
	assert.Equal(t, runtime.ReportPassed, res.Report.Status)
}

func TestExecute_FailingTestFlipsOK(t *testing.T) {
	script := &transform.Script{
		Path: "failing.go",
		Code: `package main

import (
	"context"
	"errors"

	tc "vela/testcase"
)

func Describe(t *tc.TestCase) {
	t.It("fails", func(ctx context.Context) error { return errors.New("nope") })
}
`,
	}

	iso := New()
	res := iso.Execute(script, newCtx())

	require.NoError(t, res.Error)
	require.NotNil(t, res.Report)
	assert.False(t, res.OK)
	assert.Equal(t, runtime.ReportFailed, res.Report.Status)
}

func TestExecute_MissingDescribeIsBuildError(t *testing.T) {
	script := &transform.Script{
		Path: "nodescribe.go",
		Code: `package main

var unused = 1
`,
	}

	iso := New()
	res := iso.Execute(script, newCtx())
	require.Error(t, res.Error)
	assert.Nil(t, res.Report)
}

func TestExecute_SyntaxErrorIsBuildError(t *testing.T) {
	script := &transform.Script{
		Path: "broken.go",
		Code: `package main

func Describe(t *tc.TestCase {
`,
	}

	iso := New()
	res := iso.Execute(script, newCtx())
	require.Error(t, res.Error)
}

func TestExecute_ConsoleCallsAreCaptured(t *testing.T) {
	cap := capture.New(false)
	script := &transform.Script{
		Path: "logs.go",
		Code: `package main

import (
	"context"

	"vela/console"
	tc "vela/testcase"
)

func Describe(t *tc.TestCase) {
	t.It("logs", func(ctx context.Context) error {
		console.Info("hello from script")
		return nil
	})
}
`,
	}

	cctx := newCtx()
	cctx.Capture = cap
	iso := New()
	res := iso.Execute(script, cctx)

	require.NoError(t, res.Error)
	entries := cap.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, capture.KindInfo, entries[0].Kind)
	require.Len(t, entries[0].Args, 1)
	assert.Equal(t, "hello from script", entries[0].Args[0])
}

func TestExecute_PerFileInterpreterIsolation(t *testing.T) {
	scriptA := &transform.Script{
		Path: "a.go",
		Code: `package main

import (
	"context"

	tc "vela/testcase"
)

var leaked = "from a"

func Describe(t *tc.TestCase) {
	t.It("sets state", func(ctx context.Context) error { return nil })
}
`,
	}
	scriptB := &transform.Script{
		Path: "b.go",
		Code: `package main

import (
	"context"

	tc "vela/testcase"
)

func Describe(t *tc.TestCase) {
	t.It("cannot see a's globals", func(ctx context.Context) error { return nil })
}
`,
	}

	iso := New()
	resA := iso.Execute(scriptA, newCtx())
	resB := iso.Execute(scriptB, newCtx())

	require.NoError(t, resA.Error)
	require.NoError(t, resB.Error)
	assert.True(t, resA.OK)
	assert.True(t, resB.OK)
}

func TestExecute_RequireModuleIsEvaluatedFirst(t *testing.T) {
	script := &transform.Script{
		Path: "uses_helper.go",
		Code: `package main

import (
	"context"

	tc "vela/testcase"
)

func Describe(t *tc.TestCase) {
	t.It("sees the preloaded helper", func(ctx context.Context) error {
		if helperConstant != 42 {
			panic("helper not loaded")
		}
		return nil
	})
}
`,
	}

	cctx := newCtx()
	cctx.Requires = []string{"var helperConstant = 42\n"}

	iso := New()
	res := iso.Execute(script, cctx)

	require.NoError(t, res.Error)
	require.NotNil(t, res.Report)
	assert.Equal(t, runtime.ReportPassed, res.Report.Status)
}

func TestExecute_BadRequireModuleIsLoadError(t *testing.T) {
	script := &transform.Script{
		Path: "passing.go",
		Code: `package main

import (
	"context"

	tc "vela/testcase"
)

func Describe(t *tc.TestCase) {
	t.It("passes", func(ctx context.Context) error { return nil })
}
`,
	}

	cctx := newCtx()
	cctx.Requires = []string{"this is not valid go ::::"}

	iso := New()
	res := iso.Execute(script, cctx)

	require.Error(t, res.Error)
	assert.Nil(t, res.Report)
}

func TestExecute_EntrypointTimeoutIsTimeoutError(t *testing.T) {
	script := &transform.Script{
		Path: "infinite.go",
		Code: `package main

import (
	"context"

	tc "vela/testcase"
)

func Describe(t *tc.TestCase) {
	for {
	}
}
`,
	}

	clk := fakeclock.NewFakeClock(time.Unix(0, 0))
	cctx := Context{Timeout: 5 * time.Second, Clock: clk, Capture: capture.New(false)}

	iso := New()
	done := make(chan ExecResult, 1)
	go func() { done <- iso.Execute(script, cctx) }()

	clk.WaitForNWatchersAndIncrement(5*time.Second, 1)
	res := <-done

	require.Error(t, res.Error)
	assert.Nil(t, res.Report)
	_ = context.Background()
}

// TestExecute_FailureIsMappedThroughSourceMap exercises spec testable
// property #8: a synthetic throw at a generated position (L,C) produces a
// report whose displayed position matches the original (L',C') the source
// map records for that position.
func TestExecute_FailureIsMappedThroughSourceMap(t *testing.T) {
	script := &transform.Script{
		Path: "mapped.go",
		Code: `package main

import (
	"context"
	"errors"

	tc "vela/testcase"
)

func Describe(t *tc.TestCase) {
	t.It("fails at a known position", func(ctx context.Context) error {
		return errors.New("9:3: assertion failed")
	})
}
`,
	}

	smap := sourcemap.New("mapped.go.gen")
	smap.Add(sourcemap.Mapping{
		Generated: sourcemap.Position{Line: 9, Column: 3},
		Source:    "mapped.go",
		Original:  sourcemap.Position{Line: 2, Column: 10},
		Name:      "fails at a known position",
	})

	cctx := newCtx()
	cctx.SourceMap = smap

	iso := New()
	res := iso.Execute(script, cctx)

	require.NoError(t, res.Error)
	require.NotNil(t, res.Report)
	require.Len(t, res.Report.Tests, 1)

	execErr := res.Report.Tests[0].Error
	require.NotNil(t, execErr)
	assert.Equal(t, "mapped.go", execErr.Source)
	assert.Equal(t, 2, execErr.Line)
	assert.Equal(t, 10, execErr.Column)
}

// TestExecute_FailureWithoutPositionPrefixIsLeftUnmapped confirms
// annotateSourcePositions is a no-op when an error carries no recoverable
// position, instead of fabricating one.
func TestExecute_FailureWithoutPositionPrefixIsLeftUnmapped(t *testing.T) {
	script := &transform.Script{
		Path: "unmapped.go",
		Code: `package main

import (
	"context"
	"errors"

	tc "vela/testcase"
)

func Describe(t *tc.TestCase) {
	t.It("fails without a position", func(ctx context.Context) error {
		return errors.New("plain failure")
	})
}
`,
	}

	smap := sourcemap.New("unmapped.go.gen")
	smap.Add(sourcemap.Mapping{
		Generated: sourcemap.Position{Line: 1, Column: 1},
		Source:    "unmapped.go",
		Original:  sourcemap.Position{Line: 1, Column: 1},
	})

	cctx := newCtx()
	cctx.SourceMap = smap

	iso := New()
	res := iso.Execute(script, cctx)

	require.NoError(t, res.Error)
	require.NotNil(t, res.Report)
	execErr := res.Report.Tests[0].Error
	require.NotNil(t, execErr)
	assert.Empty(t, execErr.Source)
	assert.Zero(t, execErr.Line)
	assert.Zero(t, execErr.Column)
}
