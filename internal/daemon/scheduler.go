package daemon

import (
	"context"
	"fmt"
	"pushsync/internal/csync"
	"pushsync/internal/logger"
	"pushsync/internal/model"
	"pushsync/internal/task"
	"pushsync/internal/transport"
	"pushsync/internal/watcher"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultPollInterval = time.Second

// EventSource is the producing side of the change queue.
type EventSource interface {
	Root() string
	Queue() *watcher.Queue
	Start() error
	Stop()
	ExitRequested() <-chan struct{}
	RequestExit()
}

type HistoryStore interface {
	Save(h model.History) error
}

type ChangeLedger interface {
	Add(paths ...string) error
}

type Options struct {
	// Concurrent runs uploads on their own goroutines. Uploads to the same
	// target are still serialized by its transport.
	Concurrent   bool
	PollInterval time.Duration
	// RetryDelay holds a failed transfer back before it is attempted again.
	RetryDelay time.Duration
	Clock      clockwork.Clock
	History    HistoryStore
	Ledger     ChangeLedger
}

type entry struct {
	seq     uint64
	task    *task.Task
	readyAt time.Time
}

// Scheduler drains the change queue and pushes every upload event to each
// endpoint. Failed transfers are retried until they succeed.
type Scheduler struct {
	source    EventSource
	endpoints []Endpoint
	states    map[transport.Transport]*TargetState
	opts      Options
	clock     clockwork.Clock
	startedAt time.Time

	active  *csync.Map[string, *entry]
	seq     atomic.Uint64
	mailbox *mailbox
	wg      sync.WaitGroup
}

func NewScheduler(source EventSource, endpoints []Endpoint, opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	states := make(map[transport.Transport]*TargetState, len(endpoints))
	for _, ep := range endpoints {
		states[ep.Transport] = NewTargetState(ep)
	}

	return &Scheduler{
		source:    source,
		endpoints: endpoints,
		states:    states,
		opts:      opts,
		clock:     opts.Clock,
		startedAt: opts.Clock.Now(),
		active:    csync.NewMap[string, *entry](),
		mailbox:   newMailbox(),
	}
}

// StartAll connects every endpoint and starts watching. Connection failures
// are logged and left to the reconnect done before each upload.
func (s *Scheduler) StartAll(ctx context.Context) error {
	if s.opts.Concurrent {
		var g errgroup.Group
		for _, ep := range s.endpoints {
			g.Go(func() error {
				logMessages(ep.Transport.Connect(ctx), zap.String("target", ep.Transport.Name()))
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, ep := range s.endpoints {
			logMessages(ep.Transport.Connect(ctx), zap.String("target", ep.Transport.Name()))
		}
	}

	if err := s.source.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	logger.Log.Info("watching",
		zap.String("root", s.source.Root()),
		zap.Int("targets", len(s.endpoints)))

	return nil
}

func (s *Scheduler) StopAll() {
	s.source.Stop()

	for _, ep := range s.endpoints {
		logMessages(ep.Transport.Disconnect(), zap.String("target", ep.Transport.Name()))
	}
}

func (s *Scheduler) RequestExit() {
	s.source.RequestExit()
}

// Run processes events until an exit is requested or ctx is done. Uploads
// already running are allowed to finish before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	uploadCtx := context.WithoutCancel(ctx)

	defer func() {
		s.wg.Wait()
		s.collect()
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("shutting down", zap.Error(ctx.Err()))
			return nil
		case <-s.source.ExitRequested():
			logger.Log.Info("stopping on exit request")
			return nil
		default:
		}

		s.collect()

		if ev, ok := s.source.Queue().Pop(); ok {
			s.handleEvent(uploadCtx, ev)
			continue
		}

		if e := s.nextPending(); e != nil {
			s.dispatch(uploadCtx, e.task)
			continue
		}

		s.idle(ctx)
	}
}

func (s *Scheduler) handleEvent(ctx context.Context, ev model.ChangeEvent) {
	if !ev.Kind.IsUpload() {
		s.recordDeletion(ev)
		return
	}

	for _, ep := range s.endpoints {
		dst, err := Resolve(ev.Path, s.source.Root(), ep.Target, s.clock)
		if err != nil {
			logger.Log.Error("failed to resolve destination",
				zap.String("path", ev.Path),
				zap.String("target", ep.Transport.Name()),
				zap.Error(err))
			continue
		}

		t := task.New(ev.Path, dst, ep.Transport, s.mailbox.post)
		s.track(t, time.Time{})
		s.dispatch(ctx, t)
	}
}

func (s *Scheduler) recordDeletion(ev model.ChangeEvent) {
	logger.Log.Info("local delete",
		zap.String("path", ev.Path))

	s.saveHistory(model.History{
		TaskID:     uuid.NewString(),
		Attempt:    1,
		Status:     model.StatusDeleted,
		SrcPath:    ev.Path,
		FinishedAt: s.clock.Now(),
	})
}

func (s *Scheduler) track(t *task.Task, readyAt time.Time) {
	s.active.Set(t.ID, &entry{
		seq:     s.seq.Add(1),
		task:    t,
		readyAt: readyAt,
	})
}

func (s *Scheduler) dispatch(ctx context.Context, t *task.Task) {
	if !s.opts.Concurrent {
		t.Start(ctx)
		return
	}

	if !t.Claim() {
		return
	}

	s.wg.Go(func() {
		t.Run(ctx)
	})
}

// nextPending returns the oldest pending task that is due.
func (s *Scheduler) nextPending() *entry {
	now := s.clock.Now()

	var next *entry
	for _, e := range s.active.Values() {
		if e.task.Status() != model.StatusPending || now.Before(e.readyAt) {
			continue
		}
		if next == nil || e.seq < next.seq {
			next = e
		}
	}

	return next
}

func (s *Scheduler) idle(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-s.source.ExitRequested():
	case <-s.mailbox.ready():
	case <-s.clock.After(s.opts.PollInterval):
	}
}

func (s *Scheduler) collect() {
	for _, t := range s.mailbox.drain() {
		s.finish(t)
	}
}

// finish is the only place a task leaves the active set.
func (s *Scheduler) finish(t *task.Task) {
	s.active.Take(t.ID)

	status := t.Status()
	now := s.clock.Now()
	ml := t.Messages()

	logMessages(ml,
		zap.String("task", t.ID),
		zap.Int("attempt", t.Attempt),
		zap.String("target", t.Target()))

	if st, ok := s.states[t.Transport()]; ok {
		st.Record(status, now)
	}

	s.saveHistory(model.History{
		TaskID:     t.ID,
		Attempt:    t.Attempt,
		Target:     t.Target(),
		Status:     status,
		SrcPath:    t.Src,
		DstPath:    t.Dst,
		Messages:   ml.String(),
		FinishedAt: now,
	})

	if status == model.StatusSuccess {
		if s.opts.Ledger != nil {
			if err := s.opts.Ledger.Add(t.Src); err != nil {
				logger.Log.Warn("failed to update change ledger",
					zap.String("path", t.Src),
					zap.Error(err))
			}
		}
		return
	}

	retry := t.Retry()
	s.track(retry, now.Add(s.opts.RetryDelay))

	logger.Log.Warn("transfer requeued",
		zap.String("src", t.Src),
		zap.String("target", t.Target()),
		zap.Int("attempt", retry.Attempt))
}

func (s *Scheduler) saveHistory(h model.History) {
	if s.opts.History == nil {
		return
	}

	if err := s.opts.History.Save(h); err != nil {
		logger.Log.Warn("failed to save history",
			zap.Error(err))
	}
}

func (s *Scheduler) Snapshot() model.DaemonSnapshot {
	entries := s.active.Values()
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})

	tasks := make([]model.TaskSnapshot, 0, len(entries))
	for _, e := range entries {
		tasks = append(tasks, e.task.Snapshot())
	}

	targets := make([]model.TargetSnapshot, 0, len(s.endpoints))
	for _, ep := range s.endpoints {
		targets = append(targets, s.states[ep.Transport].Snapshot())
	}

	return model.DaemonSnapshot{
		Root:      s.source.Root(),
		StartedAt: s.startedAt,
		Queued:    s.source.Queue().Len(),
		Targets:   targets,
		Tasks:     tasks,
	}
}

func logMessages(ml model.Messages, fields ...zap.Field) {
	for _, m := range ml {
		switch m.Severity {
		case model.SeverityError:
			logger.Log.Error(m.Text, fields...)
		case model.SeverityWarning:
			logger.Log.Warn(m.Text, fields...)
		default:
			logger.Log.Info(m.Text, fields...)
		}
	}
}
