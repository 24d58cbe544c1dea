// Package xcontext provides a context.Context implementation whose
// cancellation carries a caller-supplied error and whose deadline is driven
// by an injectable clock.Clock, so timeout races in the Isolator and Runtime
// can be tested without sleeping real wall-clock time.
package xcontext

import (
	"context"
	"sync/atomic"
	"time"

	"code.cloudfoundry.org/clock"
)

// CancelFunc cancels an associated context with a specific error. Calling it
// on an already-canceled context has no effect. It panics if err is nil.
// When it returns, the context is guaranteed to be canceled.
type CancelFunc func(err error)

type contextImpl struct {
	parent context.Context
	clk    clock.Clock

	hasDeadline bool
	deadline    time.Time

	done chan struct{}
	req  chan error

	errValue atomic.Value
}

func newContext(parent context.Context, clk clock.Clock, deadlineErr error, reqDeadline time.Time) (context.Context, CancelFunc) {
	newDeadline := false
	deadline, hasDeadline := parent.Deadline()
	if deadlineErr != nil && (!hasDeadline || reqDeadline.Before(deadline)) {
		deadline = reqDeadline
		hasDeadline = true
		newDeadline = true
	}

	ctx := &contextImpl{
		parent:      parent,
		clk:         clk,
		hasDeadline: hasDeadline,
		deadline:    deadline,
		done:        make(chan struct{}),
		req:         make(chan error, 1),
	}

	if err := func() error {
		if err := parent.Err(); err != nil {
			return err
		}
		if newDeadline && !deadline.After(clk.Now()) {
			return deadlineErr
		}
		return nil
	}(); err != nil {
		ctx.errValue.Store(err)
		close(ctx.done)
		return ctx, ctx.cancel
	}

	go func() {
		err := func() error {
			var dl <-chan time.Time
			if newDeadline {
				tm := clk.NewTimer(deadline.Sub(clk.Now()))
				defer tm.Stop()
				dl = tm.C()
			}

			select {
			case <-parent.Done():
				return parent.Err()
			case <-dl:
				return deadlineErr
			case err := <-ctx.req:
				return err
			}
		}()
		ctx.errValue.Store(err)
		close(ctx.done)
	}()

	return ctx, ctx.cancel
}

func (c *contextImpl) Deadline() (deadline time.Time, ok bool) {
	return c.deadline, c.hasDeadline
}

func (c *contextImpl) Done() <-chan struct{} {
	return c.done
}

func (c *contextImpl) Err() error {
	if val := c.errValue.Load(); val != nil {
		return val.(error)
	}
	return nil
}

func (c *contextImpl) Value(key interface{}) interface{} {
	return c.parent.Value(key)
}

func (c *contextImpl) cancel(err error) {
	if err == nil {
		panic("xcontext: Cancel called with nil")
	}
	select {
	case c.req <- err:
	default:
	}
	<-c.done
}

// WithCancel returns a context cancelable with an arbitrary error, using the
// real wall clock.
func WithCancel(parent context.Context) (context.Context, CancelFunc) {
	return newContext(parent, clock.NewClock(), nil, time.Time{})
}

// WithTimeout returns a context canceled with err after d elapses on clk, or
// when parent is done, whichever comes first. It panics if err is nil.
func WithTimeout(parent context.Context, clk clock.Clock, d time.Duration, err error) (context.Context, CancelFunc) {
	if err == nil {
		panic("xcontext: WithTimeout called with nil err")
	}
	return newContext(parent, clk, err, clk.Now().Add(d))
}
