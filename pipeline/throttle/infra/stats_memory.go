package infra

import (
	"context"
	"sync"
	"time"

	"upload-throttle/pipeline/throttle/domain"
)

type Counters struct {
	Acquired int64
	Released int64
	TimedOut int64
	Canceled int64
	Rejected int64

	PeakInUse int64
	TotalWait time.Duration
}

func (c *Counters) add(ev domain.GateEvent) {
	switch ev.Kind {
	case domain.EventAcquired:
		c.Acquired++
		c.TotalWait += ev.Waited
	case domain.EventReleased:
		c.Released++
	case domain.EventTimedOut:
		c.TimedOut++
		c.TotalWait += ev.Waited
	case domain.EventCanceled:
		c.Canceled++
		c.TotalWait += ev.Waited
	case domain.EventRejected:
		c.Rejected++
	}
	if ev.InUse > c.PeakInUse {
		c.PeakInUse = ev.InUse
	}
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e para o resumo do uploadsim.
//
// Não faz expiração; as sessões só são guardadas com WithTrackSessions.
type MemoryStatsStore struct {
	mu        sync.Mutex
	total     Counters
	byStage   map[domain.Stage]Counters
	bySession map[string]Counters

	trackSessions bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackSessions(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackSessions = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byStage:   make(map[domain.Stage]Counters),
		bySession: make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.GateEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev)

	c := s.byStage[ev.Stage]
	c.add(ev)
	s.byStage[ev.Stage] = c

	if s.trackSessions && ev.Session != "" {
		sc := s.bySession[ev.Session]
		sc.add(ev)
		s.bySession[ev.Session] = sc
	}
	return nil
}

// Total soma todos os estágios. PeakInUse aqui é o maior pico de um único estágio.
func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) Stage(stage domain.Stage) Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byStage[stage]
}

func (s *MemoryStatsStore) ByStage() map[domain.Stage]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Stage]Counters, len(s.byStage))
	for k, v := range s.byStage {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) BySession() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.bySession))
	for k, v := range s.bySession {
		out[k] = v
	}
	return out
}
