// Package tracker aggregates the terminal signals of many actions into
// progress counters and one done signal.
package tracker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/iliamunaev/async-tracker/internal/action"
)

// ActionCompleteFunc is called after a tracked action completes.
type ActionCompleteFunc[T action.Action] func(item T, tr *Tracker[T])

// ActionErrorFunc is called after a tracked action fails.
type ActionErrorFunc[T action.Action] func(item T, err error, tr *Tracker[T])

// DoneFunc is called once, when every tracked action has settled.
type DoneFunc[T action.Action] func(tr *Tracker[T], hasErrors bool)

// Progress is a consistent copy of a tracker's counters.
type Progress struct {
	Total     int
	Completed int
	Errors    int
	Done      bool
}

// Percent returns the settled fraction, between 0 and 1.
// It is 0 when nothing is tracked.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed+p.Errors) / float64(p.Total)
}

// Tracker starts actions and counts how they settle.
//
// The ActionComplete, ActionError and Done registrations each hold a single
// callback: registering again replaces the previous one. This differs from
// an action's own listeners, which accumulate.
//
// Callbacks run on the goroutine that settled the action. The done
// callback runs exactly once per tracker, after every per-action callback
// of the actions tracked at that point has returned.
type Tracker[T action.Action] struct {
	log zerolog.Logger

	mu        sync.Mutex
	total     int
	completed int
	errors    int
	done      bool
	doneCh    chan struct{}

	// handledCount counts per-action callbacks that returned; the done
	// callback waits for doneTotal of them.
	handledCount int
	doneTotal    int
	fired        bool

	onActionComplete ActionCompleteFunc[T]
	onActionError    ActionErrorFunc[T]
	onDone           DoneFunc[T]
}

// Option configures a Tracker.
type Option func(*config)

type config struct {
	logger zerolog.Logger
}

// WithLogger sets the logger used for progress events.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// New creates an empty tracker.
func New[T action.Action](opts ...Option) *Tracker[T] {
	c := config{logger: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	return &Tracker[T]{
		log:    c.logger,
		doneCh: make(chan struct{}),
	}
}

// AddActions adds and starts items in order. All items are counted before
// the first one starts, so an item that settles during Start cannot make
// the tracker done ahead of the rest of the batch.
func (t *Tracker[T]) AddActions(items ...T) *Tracker[T] {
	if len(items) == 0 {
		return t
	}
	t.mu.Lock()
	t.total += len(items)
	total, late := t.total, t.done
	t.mu.Unlock()

	for _, item := range items {
		t.watch(item, total, late)
	}
	return t
}

// AddAction subscribes to item's terminal signals and starts it.
func (t *Tracker[T]) AddAction(item T) *Tracker[T] {
	t.mu.Lock()
	t.total++
	total, late := t.total, t.done
	t.mu.Unlock()

	t.watch(item, total, late)
	return t
}

func (t *Tracker[T]) watch(item T, total int, late bool) {
	log := t.itemLogger(item)
	if late {
		log.Warn().Int("total", total).Msg("action added to a tracker that is already done")
	} else {
		log.Debug().Int("total", total).Msg("action added")
	}

	// Actions that do not embed action.Base may signal more than once;
	// only the first terminal signal counts.
	var settled atomic.Bool
	first := func(kind string) bool {
		if settled.CompareAndSwap(false, true) {
			return true
		}
		log.Warn().Str("signal", kind).Msg("repeated terminal signal ignored")
		return false
	}

	item.OnCompleted(func(action.Action) {
		if !first("complete") {
			return
		}
		p := t.record(true)
		log.Debug().Int("completed", p.Completed).Int("total", p.Total).Msg("action completed")

		t.mu.Lock()
		fn := t.onActionComplete
		t.mu.Unlock()
		if fn != nil {
			fn(item, t)
		}
		t.handled()
	}).OnError(func(_ action.Action, err error) {
		if !first("error") {
			return
		}
		p := t.record(false)
		log.Warn().Err(err).Int("errors", p.Errors).Int("total", p.Total).Msg("action failed")

		t.mu.Lock()
		fn := t.onActionError
		t.mu.Unlock()
		if fn != nil {
			fn(item, err, t)
		}
		t.handled()
	}).Start()
}

// record counts one terminal signal. IsDone turns true as soon as the
// settled count reaches the total.
func (t *Tracker[T]) record(ok bool) Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ok {
		t.completed++
	} else {
		t.errors++
	}
	if !t.done && t.completed+t.errors == t.total {
		t.done = true
		t.doneTotal = t.total
	}
	return t.progressLocked()
}

// handled runs after a per-action callback returned. The call that brings
// the handled count up to the total at the time the tracker became done
// fires the done callback; the fired flag makes that happen once.
func (t *Tracker[T]) handled() {
	t.mu.Lock()
	t.handledCount++
	if t.fired || !t.done || t.handledCount < t.doneTotal {
		t.mu.Unlock()
		return
	}
	t.fired = true
	fn := t.onDone
	p := t.progressLocked()
	t.mu.Unlock()

	t.log.Debug().
		Int("total", p.Total).
		Int("completed", p.Completed).
		Int("errors", p.Errors).
		Msg("all actions settled")
	if fn != nil {
		fn(t, p.Errors > 0)
	}
	close(t.doneCh)
}

// ActionComplete sets the callback run after each successful action.
func (t *Tracker[T]) ActionComplete(fn ActionCompleteFunc[T]) *Tracker[T] {
	t.mu.Lock()
	t.onActionComplete = fn
	t.mu.Unlock()
	return t
}

// ActionError sets the callback run after each failed action.
func (t *Tracker[T]) ActionError(fn ActionErrorFunc[T]) *Tracker[T] {
	t.mu.Lock()
	t.onActionError = fn
	t.mu.Unlock()
	return t
}

// Done sets the callback run once every action has settled.
func (t *Tracker[T]) Done(fn DoneFunc[T]) *Tracker[T] {
	t.mu.Lock()
	t.onDone = fn
	t.mu.Unlock()
	return t
}

// PercentComplete returns the fraction of actions that settled, between 0
// and 1. An empty tracker reports 0.
func (t *Tracker[T]) PercentComplete() float64 { return t.Snapshot().Percent() }

func (t *Tracker[T]) TotalCount() int     { return t.Snapshot().Total }
func (t *Tracker[T]) CompletedCount() int { return t.Snapshot().Completed }
func (t *Tracker[T]) ErrorCount() int     { return t.Snapshot().Errors }
func (t *Tracker[T]) HasErrors() bool     { return t.Snapshot().Errors > 0 }

// IsDone reports whether every tracked action has settled. It never turns
// false again once true, and an empty tracker is not done.
func (t *Tracker[T]) IsDone() bool { return t.Snapshot().Done }

// Snapshot returns all counters read under one lock.
func (t *Tracker[T]) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progressLocked()
}

func (t *Tracker[T]) progressLocked() Progress {
	return Progress{
		Total:     t.total,
		Completed: t.completed,
		Errors:    t.errors,
		Done:      t.done,
	}
}

// DoneChan is closed once the tracker is done and the done callback has
// returned.
func (t *Tracker[T]) DoneChan() <-chan struct{} { return t.doneCh }

// Wait blocks until the tracker is done and its done callback has returned,
// or until ctx is done.
func (t *Tracker[T]) Wait(ctx context.Context) error {
	select {
	case <-t.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker[T]) itemLogger(item T) zerolog.Logger {
	if id, ok := any(item).(action.Identified); ok {
		return t.log.With().Str("action_id", id.ID()).Str("action", id.Name()).Logger()
	}
	return t.log
}
