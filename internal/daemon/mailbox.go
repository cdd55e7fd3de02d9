package daemon

import (
	"pushsync/internal/task"
	"sync"
)

// mailbox collects finished tasks for the scheduler loop. post never blocks,
// so a task run inline by the loop itself can report completion.
type mailbox struct {
	mu     sync.Mutex
	items  []*task.Task
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (m *mailbox) post(t *task.Task) {
	m.mu.Lock()
	m.items = append(m.items, t)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []*task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.items
	m.items = nil
	return items
}

func (m *mailbox) ready() <-chan struct{} {
	return m.notify
}
