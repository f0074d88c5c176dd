package task

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrClosed  = errors.New("mailbox closed")
	ErrTimeout = errors.New("receive timed out")
)

// Mailbox is an unbounded FIFO queue. Send never blocks.
type Mailbox struct {
	mu     sync.Mutex
	queue  []any
	notify chan struct{}
	closed bool
}

func NewMailbox() *Mailbox {
	return &Mailbox{notify: make(chan struct{}, 1)}
}

// Send enqueues msg and reports whether it was accepted. Messages sent to a
// closed mailbox are discarded.
func (m *Mailbox) Send(msg any) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, msg)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return true
}

// TryReceive returns the next message without waiting.
func (m *Mailbox) TryReceive() (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, false
	}
	msg := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	return msg, true
}

// Receive waits for the next message. Queued messages are still delivered
// after Close; ErrClosed is returned once the queue is drained.
func (m *Mailbox) Receive(ctx context.Context) (any, error) {
	for {
		if msg, ok := m.TryReceive(); ok {
			return msg, nil
		}
		m.mu.Lock()
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return nil, ErrClosed
		}
		select {
		case <-m.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (m *Mailbox) ReceiveTimeout(ctx context.Context, d time.Duration) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	msg, err := m.Receive(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, ErrTimeout
	}
	return msg, err
}

func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
