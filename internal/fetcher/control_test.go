package fetcher_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/curator/internal/fetcher"
)

// slot is a one-token semaphore standing in for the manager's runner slots.
type slot struct {
	ch       chan struct{}
	released atomic.Int32
	acquired atomic.Int32
}

func newHeldSlot() *slot {
	s := &slot{ch: make(chan struct{}, 1)}
	s.ch <- struct{}{}
	return s
}

func (s *slot) hooks(ctl *fetcher.Control) {
	ctl.SetSlotHooks(
		func() {
			s.released.Add(1)
			<-s.ch
		},
		func(ctx context.Context) bool {
			select {
			case s.ch <- struct{}{}:
				s.acquired.Add(1)
				return true
			case <-ctl.Done():
				return false
			case <-ctx.Done():
				return false
			}
		},
	)
}

func TestControl_ParkedRunnerReleasesSlotOnce(t *testing.T) {
	t.Parallel()

	ctl := fetcher.NewControl()
	s := newHeldSlot()
	s.hooks(ctl)
	ctl.Pause()

	var wg sync.WaitGroup
	results := make([]bool, 3)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = ctl.Proceed(context.Background())
		}()
	}

	require.Eventually(t, func() bool { return s.released.Load() == 1 }, time.Second, time.Millisecond)
	assert.True(t, ctl.SlotReleased())

	// Another runner can take the freed slot while this one is parked.
	s.ch <- struct{}{}
	ctl.Resume()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), s.acquired.Load(), "slot is busy, resume must wait")

	<-s.ch
	wg.Wait()

	assert.Equal(t, []bool{true, true, true}, results)
	assert.Equal(t, int32(1), s.released.Load())
	assert.Equal(t, int32(1), s.acquired.Load())
	assert.False(t, ctl.SlotReleased())
}

func TestControl_StopWhileWaitingForSlot(t *testing.T) {
	t.Parallel()

	ctl := fetcher.NewControl()
	s := newHeldSlot()
	s.hooks(ctl)
	ctl.Pause()

	done := make(chan bool, 1)
	go func() { done <- ctl.Proceed(context.Background()) }()
	require.Eventually(t, func() bool { return s.released.Load() == 1 }, time.Second, time.Millisecond)

	s.ch <- struct{}{}
	ctl.Resume()
	ctl.Stop()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Proceed did not return after Stop")
	}
	assert.True(t, ctl.SlotReleased())
}

func TestControl_WithoutHooks(t *testing.T) {
	t.Parallel()

	ctl := fetcher.NewControl()
	ctl.Pause()

	done := make(chan bool, 1)
	go func() { done <- ctl.Proceed(context.Background()) }()
	ctl.Resume()

	assert.True(t, <-done)
	assert.False(t, ctl.SlotReleased())
}
