package action

import (
	"context"
	"sync"
	"time"
)

// Func runs a function on its own goroutine when started. A nil return
// completes the action, anything else fails it with that error.
type Func struct {
	*Base
	fn   func(ctx context.Context) error
	once sync.Once
}

// NewFunc creates an action around fn. fn receives a context that is
// canceled when the action settles, for example on timeout.
func NewFunc(fn func(ctx context.Context) error, opts ...Option) *Func {
	f := &Func{fn: fn}
	f.Base = NewBase(f, opts...)
	return f
}

// Start runs fn once, holding a pool slot if the action has a pool.
func (f *Func) Start() Action {
	f.once.Do(func() { go f.run() })
	return f
}

func (f *Func) run() {
	if f.fn == nil {
		_ = f.Complete()
		return
	}
	err := f.Pool().Do(f.Context(), f.fn)
	if f.Settled() {
		return
	}
	if err != nil {
		_ = f.Fail(err)
		return
	}
	_ = f.Complete()
}

// Delay completes after a fixed duration.
type Delay struct {
	*Base
	d    time.Duration
	once sync.Once
}

func NewDelay(d time.Duration, opts ...Option) *Delay {
	a := &Delay{d: d}
	a.Base = NewBase(a, opts...)
	return a
}

func (a *Delay) Start() Action {
	a.once.Do(func() {
		go func() {
			if err := sleepOrDone(a.Context(), a.d); err != nil {
				return
			}
			_ = a.Complete()
		}()
	})
	return a
}

// Manual settles only when its owner calls Complete or Fail. Use it to
// bridge callbacks from code that does not know about actions.
type Manual struct {
	*Base
}

func NewManual(opts ...Option) *Manual {
	m := &Manual{}
	m.Base = NewBase(m, opts...)
	return m
}

// Start does nothing; the owner drives the outcome.
func (m *Manual) Start() Action { return m }
