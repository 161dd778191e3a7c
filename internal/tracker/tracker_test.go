package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliamunaev/async-tracker/internal/action"
	"github.com/iliamunaev/async-tracker/internal/apperr"
)

func newActions(n int) []*action.Manual {
	out := make([]*action.Manual, n)
	for i := range out {
		out[i] = action.NewManual(action.WithName(fmt.Sprintf("a%d", i+1)))
	}
	return out
}

func TestTrackerAllComplete(t *testing.T) {
	t.Parallel()

	tr := New[*action.Manual]()
	actions := newActions(3)
	tr.AddActions(actions...)

	count := 0
	tr.ActionComplete(func(*action.Manual, *Tracker[*action.Manual]) { count++ })
	doneCalls := 0
	doneErrors := true
	tr.Done(func(_ *Tracker[*action.Manual], hasErrors bool) {
		doneCalls++
		doneErrors = hasErrors
	})

	assert.Equal(t, 3, tr.TotalCount())
	assert.Equal(t, 0, tr.CompletedCount())
	assert.Equal(t, 0, tr.ErrorCount())
	assert.False(t, tr.IsDone())
	assert.Equal(t, 0.0, tr.PercentComplete())

	require.NoError(t, actions[0].Complete())
	assert.InDelta(t, 0.33, tr.PercentComplete(), 0.005)
	assert.Equal(t, 1, tr.CompletedCount())
	assert.False(t, tr.IsDone())

	require.NoError(t, actions[1].Complete())
	assert.InDelta(t, 0.67, tr.PercentComplete(), 0.005)
	assert.Equal(t, 2, tr.CompletedCount())
	assert.False(t, tr.IsDone())

	require.NoError(t, actions[2].Complete())
	assert.Equal(t, 1.0, tr.PercentComplete())
	assert.Equal(t, 3, tr.CompletedCount())
	assert.Equal(t, 0, tr.ErrorCount())
	assert.True(t, tr.IsDone())
	assert.False(t, tr.HasErrors())

	assert.Equal(t, 3, count)
	assert.Equal(t, 1, doneCalls)
	assert.False(t, doneErrors)
}

func TestTrackerWithError(t *testing.T) {
	t.Parallel()

	tr := New[*action.Manual]()
	actions := newActions(3)
	tr.AddActions(actions...)

	count := 0
	tr.ActionComplete(func(*action.Manual, *Tracker[*action.Manual]) { count++ })
	doneCalls := 0
	doneErrors := false
	tr.Done(func(_ *Tracker[*action.Manual], hasErrors bool) {
		doneCalls++
		doneErrors = hasErrors
	})
	errorCnt := 0
	errmsg := ""
	var errItem *action.Manual
	tr.ActionError(func(item *action.Manual, err error, _ *Tracker[*action.Manual]) {
		errorCnt++
		errmsg = err.Error()
		errItem = item
	})

	require.NoError(t, actions[0].Fail(errors.New("Error1")))
	assert.Equal(t, 1, errorCnt)
	assert.Equal(t, "Error1", errmsg)
	assert.Same(t, actions[0], errItem)
	assert.Equal(t, 1, tr.ErrorCount())
	assert.Equal(t, 0, tr.CompletedCount())

	require.NoError(t, actions[1].Complete())
	assert.Equal(t, 1, tr.CompletedCount())
	assert.False(t, tr.IsDone())

	require.NoError(t, actions[2].Complete())
	assert.Equal(t, 1, errorCnt)
	assert.Equal(t, 2, tr.CompletedCount())
	assert.Equal(t, 1, tr.ErrorCount())
	assert.True(t, tr.IsDone())
	assert.True(t, tr.HasErrors())

	assert.Equal(t, 2, count)
	assert.Equal(t, 1, doneCalls)
	assert.True(t, doneErrors)
}

func TestTrackerProgress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n, complete, fail int
	}{
		{n: 1, complete: 0, fail: 0},
		{n: 1, complete: 1, fail: 0},
		{n: 1, complete: 0, fail: 1},
		{n: 4, complete: 2, fail: 0},
		{n: 4, complete: 2, fail: 2},
		{n: 5, complete: 1, fail: 3},
		{n: 10, complete: 10, fail: 0},
		{n: 10, complete: 0, fail: 10},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(fmt.Sprintf("n=%d/ok=%d/err=%d", tt.n, tt.complete, tt.fail), func(t *testing.T) {
			t.Parallel()

			tr := New[*action.Manual]()
			actions := newActions(tt.n)
			tr.AddActions(actions...)

			var doneCalls int
			var hasErrors bool
			tr.Done(func(_ *Tracker[*action.Manual], he bool) {
				doneCalls++
				hasErrors = he
			})

			for i := 0; i < tt.complete; i++ {
				require.NoError(t, actions[i].Complete())
			}
			for i := tt.complete; i < tt.complete+tt.fail; i++ {
				require.NoError(t, actions[i].Failf("fail %d", i))
			}

			p := tr.Snapshot()
			assert.Equal(t, tt.n, p.Total)
			assert.Equal(t, tt.complete, p.Completed)
			assert.Equal(t, tt.fail, p.Errors)
			assert.InDelta(t, float64(tt.complete+tt.fail)/float64(tt.n), tr.PercentComplete(), 1e-9)

			wantDone := tt.complete+tt.fail == tt.n
			assert.Equal(t, wantDone, tr.IsDone())
			if wantDone {
				assert.Equal(t, 1, doneCalls)
				assert.Equal(t, tt.fail > 0, hasErrors)
			} else {
				assert.Zero(t, doneCalls)
			}
		})
	}
}

type recordingAction struct {
	*action.Base
	name    string
	started *[]string
}

func newRecordingAction(name string, started *[]string) *recordingAction {
	r := &recordingAction{name: name, started: started}
	r.Base = action.NewBase(r, action.WithName(name))
	return r
}

func (r *recordingAction) Start() action.Action {
	*r.started = append(*r.started, r.name)
	return r
}

func TestTrackerStartsInOrder(t *testing.T) {
	t.Parallel()

	var started []string
	items := []*recordingAction{
		newRecordingAction("r1", &started),
		newRecordingAction("r2", &started),
		newRecordingAction("r3", &started),
	}

	tr := New[*recordingAction]().AddActions(items...)
	assert.Equal(t, []string{"r1", "r2", "r3"}, started)

	// Completion order is independent of start order.
	require.NoError(t, items[2].Complete())
	require.NoError(t, items[0].Complete())
	assert.False(t, tr.IsDone())
	require.NoError(t, items[1].Complete())
	assert.True(t, tr.IsDone())
}

func TestTrackerCallbacksReplace(t *testing.T) {
	t.Parallel()

	tr := New[*action.Manual]()
	actions := newActions(2)
	tr.AddActions(actions...)

	var first, second, doneFirst, doneSecond int
	tr.ActionComplete(func(*action.Manual, *Tracker[*action.Manual]) { first++ }).
		ActionComplete(func(*action.Manual, *Tracker[*action.Manual]) { second++ }).
		Done(func(*Tracker[*action.Manual], bool) { doneFirst++ }).
		Done(func(*Tracker[*action.Manual], bool) { doneSecond++ })

	require.NoError(t, actions[0].Complete())
	require.NoError(t, actions[1].Complete())

	assert.Zero(t, first)
	assert.Equal(t, 2, second)
	assert.Zero(t, doneFirst)
	assert.Equal(t, 1, doneSecond)
}

func TestTrackerCallbackReceivesItemAndTracker(t *testing.T) {
	t.Parallel()

	tr := New[*action.Manual]()
	actions := newActions(2)

	var gotItems []*action.Manual
	var gotTracker *Tracker[*action.Manual]
	tr.ActionComplete(func(item *action.Manual, tt *Tracker[*action.Manual]) {
		gotItems = append(gotItems, item)
		gotTracker = tt
	})
	tr.AddActions(actions...)

	require.NoError(t, actions[1].Complete())
	require.NoError(t, actions[0].Complete())

	require.Len(t, gotItems, 2)
	assert.Same(t, actions[1], gotItems[0])
	assert.Same(t, actions[0], gotItems[1])
	assert.Same(t, tr, gotTracker)
}

func TestTrackerEmpty(t *testing.T) {
	t.Parallel()

	tr := New[*action.Manual]()
	assert.Equal(t, 0, tr.TotalCount())
	assert.Equal(t, 0.0, tr.PercentComplete())
	assert.False(t, tr.IsDone())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tr.Wait(ctx), context.DeadlineExceeded)

	tr.AddActions()
	assert.Equal(t, 0, tr.TotalCount())
}

func TestTrackerDoneIsMonotonic(t *testing.T) {
	t.Parallel()

	tr := New[*action.Manual]()
	var doneCalls int
	tr.Done(func(*Tracker[*action.Manual], bool) { doneCalls++ })

	first := action.NewManual()
	tr.AddAction(first)
	require.NoError(t, first.Complete())
	require.True(t, tr.IsDone())

	late := action.NewManual()
	tr.AddAction(late)
	assert.True(t, tr.IsDone())
	assert.Equal(t, 2, tr.TotalCount())

	require.NoError(t, late.Fail(errors.New("late")))
	assert.True(t, tr.IsDone())
	assert.Equal(t, 1, tr.ErrorCount())
	assert.Equal(t, 1, doneCalls)
}

func TestTrackerDoneOnceUnderConcurrency(t *testing.T) {
	t.Parallel()

	const n = 200
	tr := New[*action.Manual]()
	actions := newActions(n)
	tr.AddActions(actions...)

	var doneCalls atomic.Int32
	var completes atomic.Int32
	tr.ActionComplete(func(*action.Manual, *Tracker[*action.Manual]) { completes.Add(1) })
	tr.Done(func(*Tracker[*action.Manual], bool) { doneCalls.Add(1) })

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, a := range actions {
		wg.Add(1)
		go func(i int, a *action.Manual) {
			defer wg.Done()
			<-start
			if i%7 == 0 {
				_ = a.Fail(errors.New("boom"))
				return
			}
			_ = a.Complete()
		}(i, a)
	}
	close(start)
	wg.Wait()

	select {
	case <-tr.DoneChan():
	case <-time.After(time.Second):
		t.Fatal("tracker never finished")
	}

	p := tr.Snapshot()
	assert.Equal(t, n, p.Total)
	assert.Equal(t, n, p.Completed+p.Errors)
	assert.Equal(t, int32(p.Completed), completes.Load())
	assert.Equal(t, int32(1), doneCalls.Load())
}

func TestTrackerCountsTimeoutAsError(t *testing.T) {
	t.Parallel()

	tr := New[*action.Manual]()
	slow := action.NewManual(action.WithTimeout(20 * time.Millisecond))
	fast := action.NewManual()

	errc := make(chan error, 1)
	tr.ActionError(func(_ *action.Manual, err error, _ *Tracker[*action.Manual]) { errc <- err })
	var hasErrors atomic.Bool
	tr.Done(func(_ *Tracker[*action.Manual], he bool) { hasErrors.Store(he) })
	tr.AddActions(slow, fast)

	require.NoError(t, fast.Complete())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tr.Wait(ctx))

	err := <-errc
	assert.ErrorIs(t, err, apperr.ErrTimedOut)
	assert.Equal(t, "Action timed out", err.Error())
	assert.Equal(t, 2, tr.TotalCount())
	assert.Equal(t, 1, tr.ErrorCount())
	assert.True(t, hasErrors.Load())

	// The double terminal signal is rejected and does not move the counters.
	assert.ErrorIs(t, slow.Complete(), apperr.ErrAlreadySettled)
	assert.Equal(t, 1, tr.CompletedCount())
}

func TestTrackerSharedAction(t *testing.T) {
	t.Parallel()

	shared := action.NewManual()
	a := New[*action.Manual]().AddAction(shared)
	b := New[*action.Manual]().AddAction(shared)

	require.NoError(t, shared.Complete())
	assert.True(t, a.IsDone())
	assert.True(t, b.IsDone())
}

func TestTrackerBatchCountedBeforeStart(t *testing.T) {
	t.Parallel()

	// Func actions start goroutines that may settle before AddActions
	// returns; the tracker must still wait for all of them.
	items := make([]*action.Func, 5)
	for i := range items {
		items[i] = action.NewFunc(nil)
	}

	var doneTotal atomic.Int32
	tr := New[*action.Func]().Done(func(tt *Tracker[*action.Func], _ bool) {
		doneTotal.Store(int32(tt.CompletedCount()))
	})
	tr.AddActions(items...)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tr.Wait(ctx))
	assert.Equal(t, int32(5), doneTotal.Load())
}

func TestProgressPercent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, Progress{}.Percent())
	assert.Equal(t, 0.5, Progress{Total: 4, Completed: 1, Errors: 1}.Percent())
}

// bareAction implements action.Action without Base, so nothing stops it
// from signalling more than once.
type bareAction struct {
	completes []action.CompleteFunc
	errs      []action.ErrorFunc
}

func (b *bareAction) OnCompleted(fn action.CompleteFunc) action.Action {
	b.completes = append(b.completes, fn)
	return b
}

func (b *bareAction) OnError(fn action.ErrorFunc) action.Action {
	b.errs = append(b.errs, fn)
	return b
}

func (b *bareAction) Start() action.Action { return b }

func (b *bareAction) complete() {
	for _, fn := range b.completes {
		fn(b)
	}
}

func (b *bareAction) fail(err error) {
	for _, fn := range b.errs {
		fn(b, err)
	}
}

func TestTrackerCountsFirstSignalOnly(t *testing.T) {
	t.Parallel()

	a, b := &bareAction{}, &bareAction{}
	doneCalls := 0
	completes := 0
	tr := New[*bareAction]().
		ActionComplete(func(*bareAction, *Tracker[*bareAction]) { completes++ }).
		Done(func(*Tracker[*bareAction], bool) { doneCalls++ }).
		AddActions(a, b)

	a.complete()
	a.complete()
	a.fail(errors.New("late"))

	assert.Equal(t, 2, tr.TotalCount())
	assert.Equal(t, 1, tr.CompletedCount())
	assert.Zero(t, tr.ErrorCount())
	assert.Equal(t, 1, completes)
	assert.False(t, tr.IsDone())
	assert.Zero(t, doneCalls)

	b.complete()
	assert.Equal(t, 2, tr.CompletedCount())
	assert.Equal(t, 1.0, tr.PercentComplete())
	assert.True(t, tr.IsDone())
	assert.Equal(t, 1, doneCalls)

	b.fail(errors.New("late"))
	assert.Equal(t, 2, tr.CompletedCount())
	assert.Zero(t, tr.ErrorCount())
	assert.Equal(t, 1, doneCalls)
}
