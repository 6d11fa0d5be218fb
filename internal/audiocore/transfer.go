package audiocore

import (
	"container/list"
	"context"
	"sync"
)

// channelState serializes application transfers on one stream direction.
// At most one goroutine owns the direction at a time, and waiters are served
// in arrival order: release hands ownership straight to the head waiter so a
// late arrival can never overtake a queued one.
type channelState struct {
	mu      sync.Mutex
	busy    bool
	closed  bool
	waiters list.List // of chan error, buffered 1
	done    chan struct{}
	idle    chan struct{} // closed once closed and no owner remains
}

func newChannelState() *channelState {
	return &channelState{
		done: make(chan struct{}),
		idle: make(chan struct{}),
	}
}

// acquire blocks until the caller owns the direction. It fails with
// ErrStreamClosed once the state is closed, or with the context error if ctx
// ends while queued.
func (s *channelState) acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStreamClosed
	}
	if !s.busy {
		s.busy = true
		s.mu.Unlock()
		return nil
	}

	grant := make(chan error, 1)
	elem := s.waiters.PushBack(grant)
	s.mu.Unlock()

	select {
	case err := <-grant:
		return err
	case <-ctx.Done():
	}

	s.mu.Lock()
	select {
	case err := <-grant:
		// Granted or closed while we were giving up
		s.mu.Unlock()
		if err == nil {
			s.release()
			return ctx.Err()
		}
		return err
	default:
		s.waiters.Remove(elem)
		s.mu.Unlock()
		return ctx.Err()
	}
}

// release gives up ownership. If anyone is queued exactly one waiter, the
// head, is woken and becomes the owner.
func (s *channelState) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if front := s.waiters.Front(); front != nil {
		s.waiters.Remove(front)
		front.Value.(chan error) <- nil
		return
	}
	s.busy = false
	if s.closed {
		close(s.idle)
	}
}

// close wakes every queued waiter with ErrStreamClosed and makes later
// acquires fail. The current owner keeps ownership until it releases, but
// sees closed() fire.
func (s *channelState) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.done)

	for e := s.waiters.Front(); e != nil; {
		next := e.Next()
		s.waiters.Remove(e)
		e.Value.(chan error) <- ErrStreamClosed
		e = next
	}

	if !s.busy {
		close(s.idle)
	}
}

// drained is closed after close once the last owner has released.
func (s *channelState) drained() <-chan struct{} {
	return s.idle
}

// closedCh is closed when the state is closed.
func (s *channelState) closedCh() <-chan struct{} {
	return s.done
}

// queued returns the number of waiting goroutines.
func (s *channelState) queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiters.Len()
}
