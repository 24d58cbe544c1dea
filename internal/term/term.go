// Package term renders the Pool's status terminal (spec §4.5: "surfaces a
// terminal progress model", chunk-boundary re-rendering). It follows the
// same spinner-plus-table idiom giantswarm-muster's CLI executor and table
// builder use: a spinner while work is in flight, a go-pretty table summary
// once results are in.
package term

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Status is one file's current terminal state.
type Status string

const (
	StatusPending Status = "pending"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
)

// View is the Pool's terminal progress model. It is mutated only from the
// Pool task (spec §4.5 "Shared-resource policy"); callers are responsible
// for serializing Init/SetStatus/Render calls, exactly as Pool.Run does
// with its own mutex.
type View struct {
	order    []string
	statuses map[string]Status
	spin     *spinner.Spinner
	quiet    bool
}

// NewView creates a View. When quiet is true, no spinner or table output is
// produced, only the final Summary remains queryable.
func NewView(quiet bool) *View {
	return &View{statuses: make(map[string]Status), quiet: quiet}
}

// Init registers files in submission order and starts the spinner.
func (v *View) Init(files []string) {
	v.order = append(v.order[:0], files...)
	for _, f := range files {
		v.statuses[f] = StatusPending
	}
	if v.quiet {
		return
	}
	v.spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	v.spin.Suffix = fmt.Sprintf(" running %d files...", len(files))
	v.spin.Start()
}

// SetStatus updates one file's status.
func (v *View) SetStatus(file string, s Status) {
	v.statuses[file] = s
}

// Render re-draws the progress table, per spec §4.5's chunk-boundary
// re-render requirement. It stops and restarts the spinner around the
// table so the two don't interleave on the same terminal lines.
func (v *View) Render() {
	if v.quiet {
		return
	}
	if v.spin != nil {
		v.spin.Stop()
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"file", "status"})
	for _, f := range v.order {
		t.AppendRow(table.Row{f, colorizeStatus(v.statuses[f])})
	}
	t.Render()

	if v.spin != nil {
		v.spin.Start()
	}
}

// Stop halts the spinner, called once the whole run completes.
func (v *View) Stop() {
	if v.spin != nil {
		v.spin.Stop()
	}
}

func colorizeStatus(s Status) string {
	switch s {
	case StatusPassed:
		return text.FgGreen.Sprint(string(s))
	case StatusFailed:
		return text.FgRed.Sprint(string(s))
	default:
		return text.FgYellow.Sprint(string(s))
	}
}

// Summary reports how many files are in each status, visiting files in
// sorted path order.
func (v *View) Summary() map[Status]int {
	out := make(map[Status]int)
	keys := make([]string, 0, len(v.statuses))
	for k := range v.statuses {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out[v.statuses[k]]++
	}
	return out
}
