package daemon

import (
	"pushsync/internal/model"
	"pushsync/internal/transport"
	"sync"
	"time"
)

// Endpoint pairs a target with the transport that serves it.
type Endpoint struct {
	Target    model.Target
	Transport transport.Transport
}

type TargetState struct {
	mu        sync.RWMutex
	target    model.Target
	transport transport.Transport
	Uploaded  int
	Failed    int
	LastSync  *time.Time
}

func NewTargetState(ep Endpoint) *TargetState {
	return &TargetState{
		target:    ep.Target,
		transport: ep.Transport,
	}
}

func (s *TargetState) Record(status model.TaskStatus, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastSync = &at
	if status == model.StatusSuccess {
		s.Uploaded++
	} else {
		s.Failed++
	}
}

func (s *TargetState) Snapshot() model.TargetSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return model.TargetSnapshot{
		ID:        s.target.ID,
		Name:      s.transport.Name(),
		Method:    s.target.Method,
		Connected: s.transport.IsConnected(),
		Uploaded:  s.Uploaded,
		Failed:    s.Failed,
		LastSync:  s.LastSync,
	}
}
