package reactor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/awaketai/crawlrt/loop"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (e *errRecorder) record(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs = append(e.errs, err)
}

func (e *errRecorder) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.errs)
}

func newReactors(opts ...Option) map[string]Reactor {
	return map[string]Reactor{
		NameSelect:  NewSelectReactor(opts...),
		NameAdapter: NewLoopReactor(loop.NewQueueLoop(), opts...),
	}
}

func TestCallFromThreadOrder(t *testing.T) {
	for name, r := range newReactors() {
		t.Run(name, func(t *testing.T) {
			defer r.Stop()

			var (
				mu  sync.Mutex
				got []int
			)
			for i := 0; i < 50; i++ {
				i := i
				require.NoError(t, r.CallFromThread(func() {
					mu.Lock()
					got = append(got, i)
					mu.Unlock()
				}))
			}
			require.Eventually(t, func() bool {
				mu.Lock()
				defer mu.Unlock()
				return len(got) == 50
			}, time.Second, time.Millisecond)

			for i, v := range got {
				assert.Equal(t, i, v)
			}
		})
	}
}

func TestCallLaterWaitsForClock(t *testing.T) {
	mock := clock.NewMock()
	for name, r := range newReactors(WithClock(mock)) {
		t.Run(name, func(t *testing.T) {
			defer r.Stop()

			fired := make(chan time.Time, 1)
			call, err := r.CallLater(5*time.Second, func() { fired <- r.Now() })
			require.NoError(t, err)
			assert.True(t, call.Active())

			mock.Add(4 * time.Second)
			select {
			case <-fired:
				t.Fatal("fired early")
			case <-time.After(20 * time.Millisecond):
			}

			mock.Add(time.Second)
			select {
			case <-fired:
			case <-time.After(time.Second):
				t.Fatal("never fired")
			}
			assert.False(t, call.Active())
			assert.False(t, call.Cancel())
		})
	}
}

func TestCallLaterOrderByDueTime(t *testing.T) {
	mock := clock.NewMock()
	r := NewSelectReactor(WithClock(mock))
	defer r.Stop()

	var (
		mu  sync.Mutex
		got []string
	)
	add := func(d time.Duration, tag string) {
		_, err := r.CallLater(d, func() {
			mu.Lock()
			got = append(got, tag)
			mu.Unlock()
		})
		require.NoError(t, err)
	}
	add(3*time.Second, "c")
	add(1*time.Second, "a")
	add(2*time.Second, "b")

	mock.Add(3 * time.Second)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, time.Second, time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestCancelPreventsDispatch(t *testing.T) {
	mock := clock.NewMock()
	for name, r := range newReactors(WithClock(mock)) {
		t.Run(name, func(t *testing.T) {
			defer r.Stop()

			called := make(chan struct{}, 1)
			call, err := r.CallLater(time.Second, func() { called <- struct{}{} })
			require.NoError(t, err)

			assert.True(t, call.Cancel())
			assert.False(t, call.Cancel())
			assert.False(t, call.Active())

			mock.Add(2 * time.Second)
			select {
			case <-called:
				t.Fatal("cancelled call ran")
			case <-time.After(20 * time.Millisecond):
			}
		})
	}
}

func TestPanicIsReported(t *testing.T) {
	rec := &errRecorder{}
	for name, r := range newReactors(WithErrorHandler(rec.record)) {
		t.Run(name, func(t *testing.T) {
			defer r.Stop()
			before := rec.count()

			require.NoError(t, r.CallFromThread(func() { panic("boom") }))
			done := make(chan struct{})
			require.NoError(t, r.CallFromThread(func() { close(done) }))
			<-done

			assert.Equal(t, before+1, rec.count())
		})
	}
}

func TestReportError(t *testing.T) {
	rec := &errRecorder{}
	r := NewSelectReactor(WithErrorHandler(rec.record))
	defer r.Stop()

	r.ReportError(nil)
	r.ReportError(errors.New("tick failed"))
	assert.Equal(t, 1, rec.count())
}

func TestStop(t *testing.T) {
	for name, r := range newReactors() {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, r.Stop())
			require.NoError(t, r.Stop())

			select {
			case <-r.Done():
			case <-time.After(time.Second):
				t.Fatal("dispatch goroutine still running")
			}
			_, err := r.CallLater(0, func() {})
			assert.ErrorIs(t, err, ErrReactorStopped)
			assert.ErrorIs(t, r.CallFromThread(func() {}), ErrReactorStopped)
		})
	}
}

func TestKinds(t *testing.T) {
	l := loop.NewChanLoop()
	adapter := NewLoopReactor(l)
	defer adapter.Stop()
	legacy := NewSelectReactor()
	defer legacy.Stop()

	assert.Equal(t, KindAdapter, adapter.Kind())
	assert.Same(t, l, adapter.Loop())
	assert.Equal(t, KindLegacy, legacy.Kind())
	assert.Nil(t, legacy.Loop())
	assert.Equal(t, "adapter", KindAdapter.String())
	assert.Equal(t, "legacy", KindLegacy.String())
}

func TestStopReleasesPendingCalls(t *testing.T) {
	mock := clock.NewMock()
	r := NewSelectReactor(WithClock(mock))

	_, err := r.CallLater(time.Hour, func() {})
	require.NoError(t, err)
	later, err := r.CallLater(2*time.Hour, func() {})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Pending())

	// cancelled calls stay queued until they reach the top
	assert.True(t, later.Cancel())
	assert.Equal(t, 2, r.Pending())

	require.NoError(t, r.Stop())
	assert.Equal(t, 0, r.Pending())
}
