package debounce_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopdesk/backoffice/internal/debounce"
	"github.com/coopdesk/backoffice/internal/debounce/debouncetest"
)

type recorder[T any] struct {
	mu     sync.Mutex
	values []T
}

func (r *recorder[T]) record(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *recorder[T]) got() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.values...)
}

func TestValue_CoalescesBurstIntoOneEmission(t *testing.T) {
	clock := debouncetest.NewClock()
	rec := &recorder[string]{}
	v := debounce.New(500*time.Millisecond, "", rec.record, debounce.WithClock(clock))

	v.Set("J")
	clock.Advance(100 * time.Millisecond)
	v.Set("Ju")
	clock.Advance(100 * time.Millisecond)
	v.Set("Juan")
	clock.Advance(499 * time.Millisecond)

	assert.Empty(t, rec.got(), "no emission before the window closes")
	assert.Equal(t, "", v.Latest())
	assert.True(t, v.Pending())

	clock.Advance(1 * time.Millisecond)

	assert.Equal(t, []string{"Juan"}, rec.got())
	assert.Equal(t, "Juan", v.Latest())
	assert.False(t, v.Pending())
}

func TestValue_EveryIntervalShorterThanDelay(t *testing.T) {
	delays := []time.Duration{50 * time.Millisecond, 500 * time.Millisecond, 2 * time.Second}

	for _, d := range delays {
		t.Run(d.String(), func(t *testing.T) {
			clock := debouncetest.NewClock()
			rec := &recorder[int]{}
			v := debounce.New(d, 0, rec.record, debounce.WithClock(clock))

			for i := 1; i <= 20; i++ {
				v.Set(i)
				clock.Advance(d - time.Millisecond)
			}
			require.Empty(t, rec.got())

			clock.Advance(time.Millisecond)
			assert.Equal(t, []int{20}, rec.got())
		})
	}
}

func TestValue_SeparateWindowsEmitSeparately(t *testing.T) {
	clock := debouncetest.NewClock()
	rec := &recorder[int]{}
	v := debounce.New(100*time.Millisecond, 0, rec.record, debounce.WithClock(clock))

	v.Set(1)
	clock.Advance(100 * time.Millisecond)
	v.Set(2)
	clock.Advance(100 * time.Millisecond)

	assert.Equal(t, []int{1, 2}, rec.got())
}

func TestValue_CloseCancelsPendingEmission(t *testing.T) {
	clock := debouncetest.NewClock()
	rec := &recorder[string]{}
	v := debounce.New(500*time.Millisecond, "", rec.record, debounce.WithClock(clock))

	v.Set("Juan")
	v.Close()
	clock.Advance(time.Second)

	assert.Empty(t, rec.got())
	assert.Zero(t, clock.Pending(), "timer is released on close")

	v.Set("ignored")
	clock.Advance(time.Second)
	assert.Empty(t, rec.got(), "sets after close are ignored")
}

func TestValue_StaleFireIsNoop(t *testing.T) {
	// A timer callback that was already running when Set re-armed must not emit.
	var fired []func()
	clock := fakeClock(func(f func()) { fired = append(fired, f) })
	rec := &recorder[string]{}
	v := debounce.New(time.Second, "", rec.record, debounce.WithClock(clock))

	v.Set("old")
	v.Set("new")
	require.Len(t, fired, 2)

	fired[0]()
	assert.Empty(t, rec.got(), "first generation is stale")

	fired[1]()
	assert.Equal(t, []string{"new"}, rec.got())
}

func TestValue_DefaultDelay(t *testing.T) {
	v := debounce.New(0, 0, nil)
	assert.Equal(t, debounce.DefaultDelay, v.Delay())
	v.Close()
}

func TestValue_RealClock(t *testing.T) {
	done := make(chan string, 1)
	v := debounce.New(10*time.Millisecond, "", func(s string) { done <- s })
	defer v.Close()

	v.Set("a")
	v.Set("b")

	select {
	case got := <-done:
		assert.Equal(t, "b", got)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced value never settled")
	}
}

// fakeClock captures scheduled callbacks without running them.
type fakeClock func(f func())

func (c fakeClock) AfterFunc(_ time.Duration, f func()) debounce.Timer {
	c(f)
	return noopTimer{}
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return false }
