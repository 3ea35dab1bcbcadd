package infra

import (
	"context"
	"fmt"
	"sync/atomic"

	"upload-throttle/pipeline/throttle/domain"

	"golang.org/x/sync/semaphore"
)

// WeightedGate é um gate de admissão com capacidade fixa.
//
// Os pedidos são atendidos em ordem de chegada: um pedido grande na frente da fila
// não é ultrapassado por pedidos menores que chegaram depois.
type WeightedGate struct {
	sem      *semaphore.Weighted
	capacity int64

	// inUse sobe depois do Acquire e desce antes do Release,
	// então nunca passa do peso realmente retido no semáforo.
	inUse atomic.Int64
	peak  atomic.Int64
}

// NewWeightedGate cria um gate com capacidade `capacity` (> 0).
func NewWeightedGate(capacity int64) (*WeightedGate, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidCapacity, capacity)
	}
	return &WeightedGate{
		sem:      semaphore.NewWeighted(capacity),
		capacity: capacity,
	}, nil
}

func (g *WeightedGate) Capacity() int64 { return g.capacity }
func (g *WeightedGate) InUse() int64    { return g.inUse.Load() }

// Peak retorna o maior peso simultâneo já observado.
func (g *WeightedGate) Peak() int64 { return g.peak.Load() }

// Acquire implementa domain.Gate.
func (g *WeightedGate) Acquire(ctx context.Context, weight int64) (*domain.Lease, error) {
	if err := g.check(weight); err != nil {
		return nil, err
	}
	if err := g.sem.Acquire(ctx, weight); err != nil {
		return nil, err
	}
	return g.grant(weight), nil
}

// TryAcquire adquire sem esperar. Retorna ok=false se não houver capacidade livre
// ou se houver alguém esperando na fila.
func (g *WeightedGate) TryAcquire(weight int64) (*domain.Lease, bool) {
	if g.check(weight) != nil {
		return nil, false
	}
	if !g.sem.TryAcquire(weight) {
		return nil, false
	}
	return g.grant(weight), true
}

func (g *WeightedGate) check(weight int64) error {
	if weight < 1 {
		return fmt.Errorf("%w: got %d", domain.ErrInvalidWeight, weight)
	}
	if weight > g.capacity {
		return fmt.Errorf("%w: weight %d, capacity %d", domain.ErrWeightExceedsCapacity, weight, g.capacity)
	}
	return nil
}

func (g *WeightedGate) grant(weight int64) *domain.Lease {
	now := g.inUse.Add(weight)
	for {
		p := g.peak.Load()
		if now <= p || g.peak.CompareAndSwap(p, now) {
			break
		}
	}
	return domain.NewLease(weight, func() {
		g.inUse.Add(-weight)
		g.sem.Release(weight)
	})
}
