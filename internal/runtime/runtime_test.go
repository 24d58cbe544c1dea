package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	velaerrors "vela/errors"
)

func fc() *fakeclock.FakeClock {
	return fakeclock.NewFakeClock(time.Unix(0, 0))
}

func TestRun_AllPassed(t *testing.T) {
	c := &Case{
		Description: "suite",
		Tests: []Entry{
			{Description: "a", Body: func(context.Context) error { return nil }, Options: DefaultOptions()},
			{Description: "b", Body: func(context.Context) error { return nil }, Options: DefaultOptions()},
		},
	}
	report := Run(context.Background(), c, fc())

	assert.Equal(t, ReportPassed, report.Status)
	assert.Equal(t, 2, report.Stats.Total)
	assert.Equal(t, 2, report.Stats.Passed)
	assert.Len(t, report.Tests, 2)
}

func TestRun_OnlySelectionSkipsRest(t *testing.T) {
	c := &Case{
		Tests: []Entry{
			{Description: "skipped", Body: func(context.Context) error { return nil }, Options: DefaultOptions()},
		},
		OnlyTests: []Entry{
			{Description: "only-one", Body: func(context.Context) error { return nil }, Options: DefaultOptions()},
		},
	}
	report := Run(context.Background(), c, fc())

	require.Len(t, report.Tests, 2)
	byDesc := map[string]Status{}
	for _, r := range report.Tests {
		byDesc[r.Description] = r.Status
	}
	assert.Equal(t, StatusSkipped, byDesc["skipped"])
	assert.Equal(t, StatusPassed, byDesc["only-one"])
}

func TestRun_BeforeAllFailureSkipsTests(t *testing.T) {
	beforeAll := Entry{Description: "setup", Body: func(context.Context) error { return errors.New("boom") }, Options: DefaultOptions()}
	afterAllRan := false
	afterAll := Entry{Description: "teardown", Body: func(context.Context) error { afterAllRan = true; return nil }, Options: DefaultOptions()}

	c := &Case{
		BeforeAll: &beforeAll,
		AfterAll:  &afterAll,
		Tests: []Entry{
			{Description: "never runs", Body: func(context.Context) error { t.Fatal("test body ran despite failed beforeAll"); return nil }, Options: DefaultOptions()},
		},
	}
	report := Run(context.Background(), c, fc())

	require.Len(t, report.Tests, 1)
	assert.Equal(t, StatusSkipped, report.Tests[0].Status)
	assert.True(t, afterAllRan, "afterAll must still run after a failed beforeAll")
}

func TestRun_BracketedHooksOrdering(t *testing.T) {
	var order []string
	before := Entry{Description: "beforeEach", Body: func(context.Context) error { order = append(order, "before"); return nil }, Options: DefaultOptions()}
	after := Entry{Description: "afterEach", Body: func(context.Context) error { order = append(order, "after"); return nil }, Options: DefaultOptions()}

	c := &Case{
		BeforeEach: &before,
		AfterEach:  &after,
		SequenceTests: []Entry{
			{Description: "body", Body: func(context.Context) error { order = append(order, "body"); return nil }, Options: DefaultOptions()},
		},
	}
	Run(context.Background(), c, fc())

	assert.Equal(t, []string{"before", "body", "after"}, order)
}

// TestRun_FailingAfterEachIsReportedAsAHook covers spec §7's HookError
// rule ("reported against the hook"): a failing afterEach must not be
// dropped on the floor. It should surface in report.Hooks tagged with the
// right HookDescription and KindHook, and it must not flip the otherwise-
// passing test's own status, since a HookError "does not terminate
// sibling tests unless it was beforeAll".
func TestRun_FailingAfterEachIsReportedAsAHook(t *testing.T) {
	after := Entry{Description: "afterEach", Body: func(context.Context) error { return errors.New("cleanup broke") }, Options: DefaultOptions()}

	c := &Case{
		AfterEach: &after,
		Tests: []Entry{
			{Description: "passes", Body: func(context.Context) error { return nil }, Options: DefaultOptions()},
		},
	}
	report := Run(context.Background(), c, fc())

	require.Len(t, report.Tests, 1)
	assert.Equal(t, StatusPassed, report.Tests[0].Status)

	require.Len(t, report.Hooks, 1)
	hookRes := report.Hooks[0]
	assert.Equal(t, "afterEach", hookRes.HookDescription)
	assert.Equal(t, StatusFailed, hookRes.Status)
	require.NotNil(t, hookRes.Error)
	assert.Equal(t, velaerrors.KindHook, hookRes.Error.Kind)
}

func TestRun_FailedTestFlipsReportStatus(t *testing.T) {
	c := &Case{
		Tests: []Entry{
			{Description: "fails", Body: func(context.Context) error { return errors.New("nope") }, Options: DefaultOptions()},
		},
	}
	report := Run(context.Background(), c, fc())
	assert.Equal(t, ReportFailed, report.Status)
	assert.Equal(t, 1, report.Stats.Failed)
}

func TestRun_EmptyCaseIsEmptyStatus(t *testing.T) {
	report := Run(context.Background(), &Case{Description: "nothing"}, fc())
	assert.Equal(t, ReportEmpty, report.Status)
	assert.Equal(t, 0, report.Stats.Total)
}

// TestRun_OnlySelectionStatsMatchScenarioC reproduces spec §8 scenario C
// exactly (it("x"), only("y"), it("z")) and diffs the resulting Stats with
// go-cmp so a future regression prints a structural diff instead of just a
// pass/fail boolean.
func TestRun_OnlySelectionStatsMatchScenarioC(t *testing.T) {
	c := &Case{
		Tests: []Entry{
			{Description: "x", Body: func(context.Context) error { return nil }, Options: DefaultOptions()},
			{Description: "z", Body: func(context.Context) error { return nil }, Options: DefaultOptions()},
		},
		OnlyTests: []Entry{
			{Description: "y", Body: func(context.Context) error { return nil }, Options: DefaultOptions()},
		},
	}
	report := Run(context.Background(), c, fc())

	want := Stats{Total: 3, Passed: 1, Skipped: 2}
	if diff := cmp.Diff(want, report.Stats); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
}
