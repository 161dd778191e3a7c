package action

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iliamunaev/async-tracker/internal/apperr"
	"github.com/iliamunaev/async-tracker/internal/pool"
)

// Base carries the state every action shares: listeners, timeout and the
// terminal-state guard. Embed it as *Base and build it with NewBase.
//
// Listeners run synchronously on the goroutine that settles the action, in
// registration order. A second Complete or Fail fires nothing and returns
// apperr.ErrAlreadySettled.
type Base struct {
	self    Action
	id      string
	name    string
	timeout time.Duration
	log     zerolog.Logger
	pool    *pool.Pool

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	err        error
	timer      *time.Timer
	onComplete []CompleteFunc
	onError    []ErrorFunc
	createdAt  time.Time
	settledAt  time.Time
}

// NewBase builds the shared state for self, the concrete action that
// listeners receive. A positive timeout starts counting immediately.
func NewBase(self Action, opts ...Option) *Base {
	if self == nil {
		panic("action: NewBase called with nil owner")
	}
	o := buildOptions(opts)

	b := &Base{
		self:      self,
		id:        uuid.NewString(),
		name:      o.name,
		timeout:   o.timeout,
		pool:      o.pool,
		createdAt: time.Now(),
	}
	if b.name == "" {
		b.name = b.id
	}
	b.log = o.logger.With().Str("action_id", b.id).Str("action", b.name).Logger()
	b.ctx, b.cancel = context.WithCancel(context.Background())

	if o.timeout > 0 {
		b.mu.Lock()
		b.timer = time.AfterFunc(o.timeout, b.expire)
		b.mu.Unlock()
	}
	return b
}

func (b *Base) expire() {
	if err := b.Fail(apperr.ErrTimedOut); err == nil {
		b.log.Debug().Dur("timeout", b.timeout).Msg("action timed out")
	}
}

// OnCompleted appends fn to the completion listeners.
func (b *Base) OnCompleted(fn CompleteFunc) Action {
	if fn != nil {
		b.mu.Lock()
		b.onComplete = append(b.onComplete, fn)
		b.mu.Unlock()
	}
	return b.self
}

// OnError appends fn to the error listeners.
func (b *Base) OnError(fn ErrorFunc) Action {
	if fn != nil {
		b.mu.Lock()
		b.onError = append(b.onError, fn)
		b.mu.Unlock()
	}
	return b.self
}

// Complete settles the action successfully and notifies the completion
// listeners. Only the action's own work should call it.
func (b *Base) Complete() error {
	listeners, _, err := b.settle(Completed, nil)
	if err != nil {
		return err
	}
	for _, fn := range listeners {
		fn(b.self)
	}
	return nil
}

// Fail settles the action with err and notifies the error listeners.
// A nil err is reported as apperr.ErrUnknownFailure.
func (b *Base) Fail(err error) error {
	if err == nil {
		err = apperr.ErrUnknownFailure
	}
	_, listeners, serr := b.settle(Errored, err)
	if serr != nil {
		return serr
	}
	for _, fn := range listeners {
		fn(b.self, err)
	}
	return nil
}

// Failf is Fail with a formatted message.
func (b *Base) Failf(format string, args ...any) error {
	return b.Fail(fmt.Errorf(format, args...))
}

func (b *Base) settle(s State, err error) ([]CompleteFunc, []ErrorFunc, error) {
	b.mu.Lock()
	if b.state != Pending {
		prev := b.state
		b.mu.Unlock()
		b.log.Warn().
			Stringer("state", prev).
			Stringer("attempted", s).
			AnErr("attempted_err", err).
			Msg("terminal signal on settled action ignored")
		return nil, nil, apperr.ErrAlreadySettled
	}

	b.state = s
	b.err = err
	b.settledAt = time.Now()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	completes := slices.Clone(b.onComplete)
	errs := slices.Clone(b.onError)
	b.mu.Unlock()

	b.cancel()

	ev := b.log.Debug().Stringer("state", s).Dur("elapsed", b.settledAt.Sub(b.createdAt))
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("action settled")

	return completes, errs, nil
}

// State returns the current state.
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Settled reports whether the action reached a terminal state.
func (b *Base) Settled() bool { return b.State() != Pending }

// Err returns the failure, or nil unless the action errored.
func (b *Base) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Elapsed returns the time from construction to settling, or to now
// while the action is pending.
func (b *Base) Elapsed() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Pending {
		return time.Since(b.createdAt)
	}
	return b.settledAt.Sub(b.createdAt)
}

func (b *Base) ID() string              { return b.id }
func (b *Base) Name() string            { return b.name }
func (b *Base) Timeout() time.Duration  { return b.timeout }
func (b *Base) Logger() *zerolog.Logger { return &b.log }
func (b *Base) Pool() *pool.Pool        { return b.pool }

// Wait blocks until the action settles or ctx is done. It returns the
// action's failure, nil on completion, or ctx.Err().
func (b *Base) Wait(ctx context.Context) error {
	select {
	case <-b.ctx.Done():
		return b.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Context is canceled once the action settles. Work started by the
// action should stop when it is done.
func (b *Base) Context() context.Context { return b.ctx }
