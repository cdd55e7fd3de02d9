package task

import (
	"context"
	"pushsync/internal/model"
	"pushsync/internal/transport"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Task is a single attempt to push one file to one target. It moves
// PENDING -> RUNNING -> SUCCESS|FAILED and is never reused; Retry clones it.
type Task struct {
	ID        string
	Attempt   int
	Src       string
	Dst       string
	CreatedAt time.Time

	transport transport.Transport
	onDone    func(*Task)
	status    atomic.Value

	mu       sync.Mutex
	messages model.Messages
}

func New(src, dst string, t transport.Transport, onDone func(*Task)) *Task {
	return newTask(src, dst, t, onDone, 1)
}

func newTask(src, dst string, t transport.Transport, onDone func(*Task), attempt int) *Task {
	task := &Task{
		ID:        uuid.NewString(),
		Attempt:   attempt,
		Src:       src,
		Dst:       dst,
		CreatedAt: time.Now(),
		transport: t,
		onDone:    onDone,
	}
	task.status.Store(model.StatusPending)
	return task
}

func (t *Task) Target() string {
	return t.transport.Name()
}

func (t *Task) Transport() transport.Transport {
	return t.transport
}

func (t *Task) Status() model.TaskStatus {
	return t.status.Load().(model.TaskStatus)
}

func (t *Task) Messages() model.Messages {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append(model.Messages(nil), t.messages...)
}

// Claim moves a pending task to RUNNING. Only the first caller succeeds.
func (t *Task) Claim() bool {
	return t.status.CompareAndSwap(model.StatusPending, model.StatusRunning)
}

// Run uploads a claimed task and invokes the completion callback. The
// callback runs whatever the outcome.
func (t *Task) Run(ctx context.Context) {
	t.mu.Lock()
	t.messages = nil
	t.mu.Unlock()

	ml := t.transport.Upload(ctx, t.Src, t.Dst)

	t.mu.Lock()
	t.messages = append(t.messages, ml...)
	t.mu.Unlock()

	if ml.IsSuccess() {
		t.status.Store(model.StatusSuccess)
	} else {
		t.status.Store(model.StatusFailed)
	}

	if t.onDone != nil {
		t.onDone(t)
	}
}

// Start claims and runs the task, returning false if it was already started.
func (t *Task) Start(ctx context.Context) bool {
	if !t.Claim() {
		return false
	}

	t.Run(ctx)
	return true
}

// Retry returns a fresh pending task for the same transfer.
func (t *Task) Retry() *Task {
	return newTask(t.Src, t.Dst, t.transport, t.onDone, t.Attempt+1)
}

func (t *Task) Snapshot() model.TaskSnapshot {
	return model.TaskSnapshot{
		ID:        t.ID,
		Attempt:   t.Attempt,
		Target:    t.Target(),
		Src:       t.Src,
		Dst:       t.Dst,
		Status:    t.Status(),
		CreatedAt: t.CreatedAt,
		Messages:  t.Messages(),
	}
}
