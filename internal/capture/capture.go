// Package capture implements the console-capture logger injected into every
// file's Context as "console" (spec §3's Log Entry / §4.5 step 3). It is
// goroutine-safe and colorizes its echo with fatih/color the way
// shibukawa-snapsql colorizes its own CLI diagnostics.
package capture

import (
	"fmt"
	"sync"

	"github.com/fatih/color"
)

// Kind names a console channel, plus two timer pseudo-channels the spec's
// Log Entry row calls out explicitly.
type Kind string

const (
	KindLog        Kind = "log"
	KindInfo       Kind = "info"
	KindWarn       Kind = "warn"
	KindError      Kind = "error"
	KindDebug      Kind = "debug"
	KindTimerStart Kind = "time"
	KindTimerEnd   Kind = "timeEnd"
)

// Entry is one captured console write (spec §3's Log Entry).
type Entry struct {
	Kind Kind
	Args []interface{}
}

// Capture is a per-file console logger. Invariant 6 (spec §8) requires it
// to contain only writes from the file it belongs to; satisfied here by
// construction, since the Pool allocates a fresh Capture per file and never
// shares it.
type Capture struct {
	mu      sync.Mutex
	entries []Entry
	echo    bool
}

// New creates a Capture. When echo is true, entries are also printed to
// stdout, colorized by Kind, as they arrive (useful for local runs; file
// reporters should rely on Entries() instead).
func New(echo bool) *Capture {
	return &Capture{echo: echo}
}

func (c *Capture) record(kind Kind, args ...interface{}) {
	c.mu.Lock()
	c.entries = append(c.entries, Entry{Kind: kind, Args: args})
	c.mu.Unlock()

	if !c.echo {
		return
	}
	line := fmt.Sprintln(args...)
	switch kind {
	case KindError:
		color.New(color.FgRed).Print(line)
	case KindWarn:
		color.New(color.FgYellow).Print(line)
	case KindInfo, KindDebug:
		color.New(color.FgCyan).Print(line)
	default:
		fmt.Print(line)
	}
}

// Log records an informational message on the "log" channel.
func (c *Capture) Log(args ...interface{}) { c.record(KindLog, args...) }

// Info records a message on the "info" channel.
func (c *Capture) Info(args ...interface{}) { c.record(KindInfo, args...) }

// Warn records a message on the "warn" channel.
func (c *Capture) Warn(args ...interface{}) { c.record(KindWarn, args...) }

// Error records a message on the "error" channel.
func (c *Capture) Error(args ...interface{}) { c.record(KindError, args...) }

// Debug records a message on the "debug" channel.
func (c *Capture) Debug(args ...interface{}) { c.record(KindDebug, args...) }

// Time records the start of a named timer (pseudo-channel "time").
func (c *Capture) Time(label string) { c.record(KindTimerStart, label) }

// TimeEnd records the end of a named timer (pseudo-channel "timeEnd").
func (c *Capture) TimeEnd(label string) { c.record(KindTimerEnd, label) }

// Entries returns a snapshot of everything captured so far, in the order
// recorded.
func (c *Capture) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}
