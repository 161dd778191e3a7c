// Package pool provides a bounded concurrency semaphore for loader actions.
package pool

import (
	"context"
	"sync/atomic"
)

// MaxSize caps the number of slots a pool can hold.
const MaxSize = 128

// Pool limits how many actions run their work at the same time.
type Pool struct {
	sem     chan struct{}
	running atomic.Int64
}

// New creates a pool with at least one slot
// and at most MaxSize slots.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	if size > MaxSize {
		size = MaxSize
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Size returns the number of slots.
func (p *Pool) Size() int { return cap(p.sem) }

// Running returns how many slots are currently held.
func (p *Pool) Running() int64 { return p.running.Load() }

// Acquire reserves one slot in the pool.
// If the pool is full, it blocks until a slot becomes available
// or the context is canceled.
// It returns ctx.Err() if acquisition is aborted due to cancellation.
func (p *Pool) Acquire(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		p.running.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a previously acquired slot.
func (p *Pool) Release() {
	p.running.Add(-1)
	<-p.sem
}

// Do runs fn while holding a slot. A nil pool runs fn directly.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	if p == nil {
		return fn(ctx)
	}
	if err := p.Acquire(ctx); err != nil {
		return err
	}
	defer p.Release()
	return fn(ctx)
}
