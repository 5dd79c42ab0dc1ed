package session

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-client/internal/errors"
)

// Subscription delivers committed states in commit order. The queue is unbounded so a
// slow reader never blocks a commit.
type Subscription struct {
	manager *Manager

	mu     sync.Mutex
	queue  []State
	notify chan struct{}
	closed bool
}

func newSubscription(m *Manager, current State) *Subscription {
	return &Subscription{
		manager: m,
		queue:   []State{current},
		notify:  make(chan struct{}, 1),
	}
}

func (s *Subscription) push(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, st)
	s.wake()
}

// wake must be called with s.mu held.
func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until a state is available, ctx is done or the subscription is closed.
func (s *Subscription) Next(ctx context.Context) (State, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return State{}, errors.ErrClosed
		}
		if len(s.queue) > 0 {
			st := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return st, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return State{}, ctx.Err()
		case <-s.notify:
		}
	}
}

// Close stops delivery. Pending states are dropped. Closing twice is a no-op.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	s.wake()
	s.mu.Unlock()

	s.manager.unsubscribe(s)
}
