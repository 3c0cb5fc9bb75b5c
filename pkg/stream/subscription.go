package stream

import (
	"context"
	"sync"

	"github.com/rpoliselit/poloniex/pkg/poloniex"
)

type subscription struct {
	conn *Conn
	key  string

	messages chan []byte
	errors   chan error
	done     chan struct{}

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	doneOnce  sync.Once
}

var _ poloniex.Subscription = (*subscription)(nil)

func newSubscription(conn *Conn, key string, buffer int) *subscription {
	return &subscription{
		conn:     conn,
		key:      key,
		messages: make(chan []byte, buffer),
		errors:   make(chan error, 8),
		done:     make(chan struct{}),
	}
}

func (s *subscription) Messages() <-chan []byte { return s.messages }

func (s *subscription) Errors() <-chan error { return s.errors }

// Close detaches the subscription; the channel is unsubscribed when no other
// subscription shares it. Messages and Errors are closed afterwards.
func (s *subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if last, channel := s.conn.remove(s); last {
			err = s.conn.send(context.Background(), poloniex.SubscribeCommand{Command: "unsubscribe", Channel: channel})
		}
		s.shutdown()
	})
	return err
}

func (s *subscription) shutdown() {
	s.doneOnce.Do(func() { close(s.done) })
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.messages)
	close(s.errors)
}

// deliver blocks until the frame is queued, the subscription closes, or ctx ends.
func (s *subscription) deliver(ctx context.Context, data []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.messages <- data:
	case <-s.done:
	case <-ctx.Done():
	}
}

func (s *subscription) reportError(err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.errors <- err:
	default:
	}
}
