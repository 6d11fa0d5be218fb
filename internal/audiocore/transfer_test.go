package audiocore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitQueued blocks until s has n queued waiters.
func waitQueued(t *testing.T, queued func() int, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return queued() == n }, 2*time.Second, time.Millisecond)
}

func TestChannelStateServesWaitersInArrivalOrder(t *testing.T) {
	t.Parallel()

	s := newChannelState()
	require.NoError(t, s.acquire(t.Context()))

	const waiters = 5
	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := range waiters {
		wg.Go(func() {
			if err := s.acquire(context.Background()); err != nil {
				t.Errorf("waiter %d: %v", i, err)
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			s.release()
		})
		waitQueued(t, s.queued, i+1)
	}

	s.release()
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Zero(t, s.queued())
}

func TestChannelStateReleaseWakesOnlyHead(t *testing.T) {
	t.Parallel()

	s := newChannelState()
	require.NoError(t, s.acquire(t.Context()))

	granted := make(chan int, 2)
	var wg sync.WaitGroup
	for i := range 2 {
		wg.Go(func() {
			if s.acquire(context.Background()) == nil {
				granted <- i
			}
		})
		waitQueued(t, s.queued, i+1)
	}

	s.release()
	assert.Equal(t, 0, <-granted)

	select {
	case i := <-granted:
		t.Fatalf("waiter %d woken while the head still owns the state", i)
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, 1, s.queued())

	s.release()
	assert.Equal(t, 1, <-granted)
	s.release()
	wg.Wait()
}

func TestChannelStateCloseWakesAllWaiters(t *testing.T) {
	t.Parallel()

	s := newChannelState()
	require.NoError(t, s.acquire(t.Context()))

	const waiters = 3
	errs := make(chan error, waiters)
	var wg sync.WaitGroup
	for i := range waiters {
		wg.Go(func() { errs <- s.acquire(context.Background()) })
		waitQueued(t, s.queued, i+1)
	}

	s.close()
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.ErrorIs(t, err, ErrStreamClosed)
	}

	select {
	case <-s.closedCh():
	default:
		t.Fatal("closedCh not closed")
	}
	select {
	case <-s.drained():
		t.Fatal("drained before the owner released")
	default:
	}

	s.release()
	<-s.drained()

	assert.ErrorIs(t, s.acquire(t.Context()), ErrStreamClosed)
	s.close()
}

func TestChannelStateCloseWhenIdleIsDrained(t *testing.T) {
	t.Parallel()

	s := newChannelState()
	s.close()

	select {
	case <-s.drained():
	default:
		t.Fatal("idle state should drain immediately")
	}
}

func TestChannelStateCancelledWaiterLeavesQueue(t *testing.T) {
	t.Parallel()

	s := newChannelState()
	require.NoError(t, s.acquire(t.Context()))

	ctx, cancel := context.WithCancel(t.Context())
	errc := make(chan error, 1)
	go func() { errc <- s.acquire(ctx) }()
	waitQueued(t, s.queued, 1)

	secondGranted := make(chan struct{})
	go func() {
		if s.acquire(context.Background()) == nil {
			close(secondGranted)
		}
	}()
	waitQueued(t, s.queued, 2)

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	waitQueued(t, s.queued, 1)

	s.release()
	<-secondGranted
	s.release()
}

func TestChannelStateCancelRacingGrantPassesOwnership(t *testing.T) {
	t.Parallel()

	for range 50 {
		s := newChannelState()
		require.NoError(t, s.acquire(t.Context()))

		ctx, cancel := context.WithCancel(t.Context())
		errc := make(chan error, 1)
		go func() { errc <- s.acquire(ctx) }()
		waitQueued(t, s.queued, 1)

		go cancel()
		s.release()

		if err := <-errc; err == nil {
			s.release()
		}

		// Whatever won the race, the state must be free again
		require.NoError(t, s.acquire(t.Context()))
		s.release()
		cancel()
	}
}
