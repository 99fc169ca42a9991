package kafkaconnector

import (
	"sync"

	"github.com/eapache/queue"
)

// mailbox is the unbounded inbox of the connector goroutine. put never blocks,
// so callers on any goroutine (including transport and timer callbacks) can
// hand work over without waiting for the actor.
type mailbox struct {
	lock   sync.Mutex
	items  *queue.Queue
	signal chan struct{}
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{
		items:  queue.New(),
		signal: make(chan struct{}, 1),
	}
}

// put enqueues fn. It reports false once the mailbox has been closed.
func (m *mailbox) put(fn func()) bool {
	m.lock.Lock()
	if m.closed {
		m.lock.Unlock()
		return false
	}
	m.items.Add(fn)
	m.lock.Unlock()

	m.notify()
	return true
}

// take blocks until work is available. After close it keeps returning the
// remaining work and then reports false.
func (m *mailbox) take() (func(), bool) {
	for {
		m.lock.Lock()
		if m.items.Length() > 0 {
			fn := m.items.Remove().(func())
			m.lock.Unlock()
			return fn, true
		}
		closed := m.closed
		m.lock.Unlock()

		if closed {
			return nil, false
		}
		<-m.signal
	}
}

func (m *mailbox) close() {
	m.lock.Lock()
	m.closed = true
	m.lock.Unlock()

	m.notify()
}

func (m *mailbox) notify() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}
