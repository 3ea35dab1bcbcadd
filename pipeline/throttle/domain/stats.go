package domain

import (
	"context"
	"time"
)

type EventKind string

const (
	EventAcquired EventKind = "acquired"
	EventReleased EventKind = "released"
	EventTimedOut EventKind = "timed_out"
	EventCanceled EventKind = "canceled"
	EventRejected EventKind = "rejected"
)

// GateEvent representa uma transição observada num gate.
//
// InUse é o peso em uso logo após o evento. Waited só faz sentido para
// eventos de aquisição (inclusive timeout/cancelamento).
type GateEvent struct {
	Session string
	Stage   Stage
	Kind    EventKind
	Weight  int64
	InUse   int64
	Waited  time.Duration

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas dos gates.
//
// Implementações podem armazenar em Redis, memória, etc.
// Quem registra deve tratar erro como best-effort (não derrubar o upload).
type StatsStore interface {
	Record(ctx context.Context, ev GateEvent) error
}
