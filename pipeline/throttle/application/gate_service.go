package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"upload-throttle/pipeline/throttle/domain"
)

// GateService concentra a regra de aquisição/liberação de peso num estágio:
// timeout opcional do chamador e registro de estatísticas.
type GateService struct {
	Session        string
	Stage          domain.Stage
	Gate           domain.Gate
	AcquireTimeout time.Duration
	Stats          domain.StatsStore
}

// tryAcquirer é implementado por gates que aceitam aquisição sem espera.
type tryAcquirer interface {
	TryAcquire(weight int64) (*domain.Lease, bool)
}

// Acquire tenta adquirir `weight` unidades do gate.
//   - Se `AcquireTimeout <= 0`, espera indefinidamente (até ctx cancelar).
//   - Se `AcquireTimeout > 0`, espera até o timeout e retorna domain.ErrAcquireTimeout.
//
// Em qualquer erro nenhum peso foi adquirido.
// Os eventos acquired/released só são gravados depois que o peso volta ao gate.
func (s GateService) Acquire(ctx context.Context, weight int64) (*domain.Lease, error) {
	if s.Gate == nil {
		return domain.NewLease(weight, nil), nil
	}
	// o ctx do chamador pode já ter acabado; a gravação é best-effort mas não deve ser descartada por isso.
	recordCtx := context.WithoutCancel(ctx)

	start := time.Now()
	lease, err := s.acquire(ctx, weight)
	waited := time.Since(start)
	if err != nil {
		return nil, s.fail(recordCtx, ctx, err, weight, waited)
	}

	grantedAt := time.Now()
	inUse := s.Gate.InUse()
	return domain.NewLease(weight, func() {
		lease.Release()
		s.record(recordCtx, domain.GateEvent{Kind: domain.EventAcquired, Weight: weight, InUse: inUse, Waited: waited, At: grantedAt})
		s.record(recordCtx, domain.GateEvent{Kind: domain.EventReleased, Weight: weight, InUse: s.Gate.InUse()})
	}), nil
}

func (s GateService) acquire(ctx context.Context, weight int64) (*domain.Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t, ok := s.Gate.(tryAcquirer); ok {
		if lease, ok := t.TryAcquire(weight); ok {
			return lease, nil
		}
	}

	if s.AcquireTimeout > 0 {
		acqCtx, cancel := context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
		return s.Gate.Acquire(acqCtx, weight)
	}
	return s.Gate.Acquire(ctx, weight)
}

func (s GateService) fail(recordCtx, ctx context.Context, err error, weight int64, waited time.Duration) error {
	switch {
	case errors.Is(err, domain.ErrWeightExceedsCapacity), errors.Is(err, domain.ErrInvalidWeight):
		s.record(recordCtx, domain.GateEvent{Kind: domain.EventRejected, Weight: weight, InUse: s.Gate.InUse()})
		return fmt.Errorf("stage %s: %w", s.Stage, err)
	case ctx.Err() != nil:
		s.record(recordCtx, domain.GateEvent{Kind: domain.EventCanceled, Weight: weight, InUse: s.Gate.InUse(), Waited: waited})
		return ctx.Err()
	case s.AcquireTimeout > 0 && errors.Is(err, context.DeadlineExceeded):
		s.record(recordCtx, domain.GateEvent{Kind: domain.EventTimedOut, Weight: weight, InUse: s.Gate.InUse(), Waited: waited})
		return fmt.Errorf("stage %s after %s: %w", s.Stage, s.AcquireTimeout, domain.ErrAcquireTimeout)
	default:
		return err
	}
}

// Do executa fn segurando `weight` unidades; o peso é devolvido em qualquer saída de fn,
// inclusive erro ou panic.
func (s GateService) Do(ctx context.Context, weight int64, fn func(ctx context.Context) error) error {
	lease, err := s.Acquire(ctx, weight)
	if err != nil {
		return err
	}
	defer lease.Release()
	return fn(ctx)
}

func (s GateService) record(ctx context.Context, ev domain.GateEvent) {
	if s.Stats == nil {
		return
	}
	ev.Session = s.Session
	ev.Stage = s.Stage
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	_ = s.Stats.Record(ctx, ev)
}
