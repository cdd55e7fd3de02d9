package watcher

import (
	"pushsync/internal/model"
	"sync"
)

// Queue is a FIFO of change events written by watcher callbacks and read by
// the scheduler loop.
type Queue struct {
	mu     sync.Mutex
	events []model.ChangeEvent
}

func NewQueue() *Queue {
	return &Queue{}
}

// Push appends e unless it is a create/modify for a path that already has a
// create/modify queued after its last queued deletion. In that case the
// queued event takes e's kind, keeps its position, and Push returns false.
func (q *Queue) Push(e model.ChangeEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if e.Kind.IsUpload() {
		for i := len(q.events) - 1; i >= 0; i-- {
			queued := &q.events[i]
			if queued.Path != e.Path {
				continue
			}

			if queued.Kind == model.EventDeleted {
				break
			}

			queued.Kind = e.Kind
			queued.Timestamp = e.Timestamp
			return false
		}
	}

	q.events = append(q.events, e)
	return true
}

func (q *Queue) Pop() (model.ChangeEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return model.ChangeEvent{}, false
	}

	e := q.events[0]
	q.events[0] = model.ChangeEvent{}
	q.events = q.events[1:]
	return e, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

func (q *Queue) Snapshot() []model.ChangeEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.ChangeEvent(nil), q.events...)
}
