package relay

import (
	"context"
	"sync"
)

// mailbox is an unbounded FIFO with a single consumer. push never blocks, so
// a slow client cannot stall the actor.
type mailbox struct {
	mu     sync.Mutex
	queue  []Response
	closed bool
	ready  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

func (m *mailbox) push(r Response) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, r)
	m.mu.Unlock()
	m.signal()
	return true
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.signal()
}

func (m *mailbox) signal() {
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// recv drains queued responses before reporting ErrClosed.
func (m *mailbox) recv(ctx context.Context) (Response, error) {
	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			r := m.queue[0]
			m.queue[0] = nil
			m.queue = m.queue[1:]
			m.mu.Unlock()
			return r, nil
		}
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}
		m.mu.Unlock()

		select {
		case <-m.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
