// Package errors provides the error type used throughout the engine.
//
// Use New, Errorf, Wrap and Wrapf instead of the standard library's errors
// and fmt packages: they capture a stack trace at the point of construction,
// which reporters use to produce source-mapped diagnostics. Each of the
// engine's error kinds (spec taxonomy: BuildError, LoadError,
// ExecutionError, TimeoutError, InvalidReportError, HookError,
// InternalError) is constructed with one of the NewXxxError helpers below,
// which tag the *E with a Kind so callers can recover it with KindOf without
// losing the wrapped stack and cause.
package errors

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"vela/errors/stack"
)

// Kind classifies an error per the engine's error taxonomy.
type Kind int

const (
	// KindNone marks an error with no specific taxonomy kind.
	KindNone Kind = iota
	// KindBuild is a Transformer failure for a file.
	KindBuild
	// KindLoad is a failure to read or preload a file.
	KindLoad
	// KindExecution is a user-code error captured during Isolator execution.
	KindExecution
	// KindTimeout is a wall-clock budget violation.
	KindTimeout
	// KindInvalidReport marks a run() return value that failed shape validation.
	KindInvalidReport
	// KindHook is an error bubbling up from a hook.
	KindHook
	// KindInternal is a bug in the runner itself.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindBuild:
		return "BuildError"
	case KindLoad:
		return "LoadError"
	case KindExecution:
		return "ExecutionError"
	case KindTimeout:
		return "TimeoutError"
	case KindInvalidReport:
		return "InvalidReportError"
	case KindHook:
		return "HookError"
	case KindInternal:
		return "InternalError"
	default:
		return "Error"
	}
}

// E is the error implementation used by this package.
type E struct {
	msg   string
	kind  Kind
	stk   stack.Stack
	cause error
}

// Error implements the error interface.
func (e *E) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return fmt.Sprintf("%s: %s", e.msg, e.cause.Error())
}

// Unwrap implements the error Unwrap interface.
func (e *E) Unwrap() error {
	return e.cause
}

// Kind returns the taxonomy kind tagged on e, or KindNone if untagged.
func (e *E) Kind() Kind {
	return e.kind
}

type unwrapper interface {
	unwrap() (msg string, stk stack.Stack, cause error)
}

func (e *E) unwrap() (msg string, stk stack.Stack, cause error) {
	return e.msg, e.stk, e.cause
}

func formatChain(err error) string {
	var chain []string
	for err != nil {
		if e, ok := err.(unwrapper); ok {
			msg, stk, cause := e.unwrap()
			chain = append(chain, fmt.Sprintf("%s\n%v", msg, stk))
			err = cause
		} else {
			chain = append(chain, fmt.Sprintf("%s\n\tat ???", err.Error()))
			err = nil
		}
	}
	return strings.Join(chain, "\n")
}

// Format implements fmt.Formatter; "%+v" prints the full error chain with
// stack traces.
func (e *E) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		io.WriteString(s, formatChain(e))
	} else {
		io.WriteString(s, e.Error())
	}
}

// New creates a new untagged error, recording the call site.
func New(msg string) *E {
	return &E{msg: msg, stk: stack.New(1)}
}

// Errorf creates a new untagged error, recording the call site.
func Errorf(format string, args ...interface{}) *E {
	return &E{msg: fmt.Sprintf(format, args...), stk: stack.New(1)}
}

// Wrap creates a new untagged error wrapping cause, recording the call site.
func Wrap(cause error, msg string) *E {
	return &E{msg: msg, stk: stack.New(1), cause: cause}
}

// Wrapf creates a new untagged error wrapping cause, recording the call site.
func Wrapf(cause error, format string, args ...interface{}) *E {
	return &E{msg: fmt.Sprintf(format, args...), stk: stack.New(1), cause: cause}
}

func newKind(k Kind, cause error, msg string) *E {
	return &E{msg: msg, kind: k, stk: stack.New(2), cause: cause}
}

// NewBuildError tags a Transformer failure. path is the file that failed to
// transform; diagnostics are compiler-reported sub-messages.
func NewBuildError(path, message string, diagnostics []string) *E {
	msg := fmt.Sprintf("build %s: %s", path, message)
	if len(diagnostics) > 0 {
		msg = fmt.Sprintf("%s (%s)", msg, strings.Join(diagnostics, "; "))
	}
	return newKind(KindBuild, nil, msg)
}

// NewLoadError tags a file read/preload failure.
func NewLoadError(cause error, path string) *E {
	return newKind(KindLoad, cause, fmt.Sprintf("load %s", path))
}

// NewExecutionError tags a user-code error captured during execution.
func NewExecutionError(cause error, stackText string) *E {
	e := newKind(KindExecution, cause, "execution error")
	if stackText != "" {
		e.msg = fmt.Sprintf("execution error\n%s", stackText)
	}
	return e
}

// NewTimeoutError tags a wall-clock timeout. fallback records whether
// limitMS came from the runner default rather than an explicit option.
func NewTimeoutError(limitMS int, fallback bool) *E {
	msg := fmt.Sprintf("timed out after %d ms", limitMS)
	if fallback {
		msg += " (using runner default timeout; consider setting an explicit timeout)"
	}
	return newKind(KindTimeout, nil, msg)
}

// NewInvalidReportError tags a run() return value that failed TestReport
// shape validation.
func NewInvalidReportError(reason string) *E {
	return newKind(KindInvalidReport, nil, fmt.Sprintf("invalid report: %s", reason))
}

// NewHookError tags an error bubbling up from a hook.
func NewHookError(cause error, hookDescription string) *E {
	return newKind(KindHook, cause, fmt.Sprintf("hook %q failed", hookDescription))
}

// NewInternalError tags a bug in the runner itself.
func NewInternalError(cause error, msg string) *E {
	return newKind(KindInternal, cause, msg)
}

// KindOf walks err's chain looking for an *E and returns its Kind, or
// KindNone if none is found.
func KindOf(err error) Kind {
	var e *E
	if As(err, &e) {
		return e.kind
	}
	return KindNone
}

// Unwrap wraps the standard library's errors.Unwrap.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// As wraps the standard library's errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is wraps the standard library's errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
