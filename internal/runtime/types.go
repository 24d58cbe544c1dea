// Package runtime is the per-case orchestrator: given a set of tests and
// hooks pulled from a testcase.TestCase, it runs them under concurrency,
// retry, timeout, skip, conditional, sequential, softfail and todo
// semantics (spec §4.4) and aggregates a TestReport (spec §3).
package runtime

import (
	"context"
	"time"

	"vela/errors"
)

// MaxTimeout is the runner's fallback effective timeout, used whenever an
// entry's Options.Timeout is zero.
const MaxTimeout = 300 * time.Second

// Status is the terminal state of a Test Result or Hook Result.
type Status string

// Terminal states, per spec §4.4's state machine.
const (
	StatusPassed     Status = "passed"
	StatusFailed     Status = "failed"
	StatusSoftfailed Status = "softfailed"
	StatusSkipped    Status = "skipped"
	StatusTodo       Status = "todo"
	StatusBenched    Status = "benched"
)

// ReportStatus is the terminal state of a whole TestReport.
type ReportStatus string

const (
	ReportPassed ReportStatus = "passed"
	ReportFailed ReportStatus = "failed"
	ReportEmpty  ReportStatus = "empty"
)

// Predicate is the "if" option: a (possibly lazy) function evaluated at
// execution time, returning a tri-state result. A nil *Options.If* field
// means the option was never set, i.e. the spec §4.3 default "if:true"
// (never skip). A non-nil Predicate that itself returns a nil *bool models
// "if" evaluating to a missing/null/undefined value, which per spec §4.4
// step 2 is treated as skip; returning a non-nil *bool skips iff it points
// to false.
type Predicate func(ctx context.Context) *bool

// ConstPredicate returns a Predicate that always evaluates to v.
func ConstPredicate(v bool) Predicate {
	return func(ctx context.Context) *bool { return &v }
}

// Options holds the immutable execution options for a Test Entry or Hook
// Entry (spec §3's Test Entry row; defaults in spec §4.3).
type Options struct {
	// Timeout is the per-executable timeout. Zero means
	// "use the runner fallback" (MaxTimeout).
	Timeout time.Duration
	Skip    bool
	// If is nil (never skip), or a Predicate evaluated (possibly lazily)
	// to decide whether to skip. A Predicate returning false means skip,
	// mirroring "a missing/null/undefined predicate ≡ skip" for the case
	// where If itself reports "no value".
	If        Predicate
	Retry     int
	Softfail  bool
	Todo      bool
	Sequential bool
	Bench     bool

	// Bench-only knobs (spec §4.4 "Bench"), ignored unless Bench is true.
	Warmup      int
	Iterations  int
	Confidence  float64
}

// DefaultOptions returns the option defaults enumerated in spec §4.3.
func DefaultOptions() Options {
	return Options{
		Timeout:    0,
		Skip:       false,
		If:         nil,
		Retry:      0,
		Softfail:   false,
		Todo:       false,
		Sequential: false,
		Bench:      false,
		Warmup:     3,
		Iterations: 50,
		Confidence: 0.95,
	}
}

// EffectiveTimeout resolves spec §4.4 step 3.
func (o Options) EffectiveTimeout() time.Duration {
	if o.Timeout <= 0 {
		return MaxTimeout
	}
	return o.Timeout
}

// Body is the callback body of a test or hook. It reports failure by
// returning a non-nil error; it may check ctx.Done() to cooperate with
// cancellation but is never forcibly killed (spec §5 "Cancellation").
type Body func(ctx context.Context) error

// Entry is one registered test or hook: a description, a body, and options.
// It is immutable once constructed (spec §3's Test Entry / Hook Entry row).
type Entry struct {
	Description string
	Body        Body
	Options     Options
}

// ExecError captures a failure's message and formatted stack, per spec §3
// ("error is present" for failed/softfailed results). Kind classifies it
// per spec §7's taxonomy (KindExecution for a test body, KindHook for a
// hook, or whatever kind the underlying cause already carried, e.g.
// KindTimeout). Source/Line/Column are filled in by internal/isolate when
// the file's source map resolves a generated position out of the error
// (spec §7: "ExecutionError ... mapped through the file's source map");
// zero values mean no mapping was available.
type ExecError struct {
	Message string
	Stack   string
	Kind    errors.Kind
	Source  string
	Line    int
	Column  int
}

// BenchmarkMetrics is the benchmarking procedure's output (spec §4.4
// "Bench (sketch)").
type BenchmarkMetrics struct {
	Iterations      int
	ThroughputOpsPerSec float64
	LatencyMeanMS   float64
	LatencyMedianMS float64
	LatencyP95MS    float64
	LatencyStddevMS float64
	ConfidenceLevel float64
	ConfidenceLowMS float64
	ConfidenceHighMS float64
	TimedOut        bool
}

// Result is a Test Result or Hook Result (spec §3). HookDescription is set
// only for hook results, naming which of the four hook kinds it is.
type Result struct {
	Description     string
	HookDescription string
	Status          Status
	Retries         int
	Duration        time.Duration
	Error           *ExecError
	Bench           *BenchmarkMetrics
}

// Stats aggregates result counts (spec §3).
type Stats struct {
	Total      int
	Passed     int
	Failed     int
	Softfailed int
	Skipped    int
	Todo       int
}

// TestReport is the structured outcome of running a TestCase (spec §3).
type TestReport struct {
	Description string
	Status      ReportStatus
	Stats       Stats
	Tests       []Result
	Hooks       []Result
}
