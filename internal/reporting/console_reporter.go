package reporting

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"vela/internal/pool"
	"vela/internal/runtime"
)

// ConsoleReporter prints a summary table of every file's outcome to
// stdout, in the style of giantswarm-muster's go-pretty table output.
type ConsoleReporter struct{}

// NewConsoleReporter creates the default console reporter.
func NewConsoleReporter() *ConsoleReporter { return &ConsoleReporter{} }

func (r *ConsoleReporter) Name() string { return "console" }
func (r *ConsoleReporter) Type() Type   { return TypeConsole }

// Report renders one row per file: its status, test counts, and duration.
func (r *ConsoleReporter) Report(_ context.Context, run *pool.Run, _ string) error {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"file", "status", "passed", "failed", "skipped", "duration (s)"})

	for _, f := range run.Files {
		res := run.Results[f]
		status := "ok"
		if res.Failed() {
			status = text.FgRed.Sprint("failed")
		} else {
			status = text.FgGreen.Sprint("ok")
		}
		var stats runtime.Stats
		if res.Report != nil {
			stats = res.Report.Stats
		}
		if res.Error != nil {
			status = text.FgRed.Sprintf("error: %s", res.Error.Error())
		}
		t.AppendRow(table.Row{f, status, stats.Passed, stats.Failed, stats.Skipped, fmt.Sprintf("%.3f", res.DurationS)})
	}

	t.Render()
	fmt.Printf("\nexit code: %d\n", run.ExitCode)
	return nil
}
