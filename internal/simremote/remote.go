// Package simremote é um serviço remoto de criação de chunks em memória,
// com latência e falhas transitórias configuráveis. Usado pelo uploadsim e nos testes.
package simremote

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"upload-throttle/pipeline/throttle/domain"
)

type Options struct {
	CallLatency time.Duration
	WaitLatency time.Duration
	// FailureRate é a probabilidade (0..1) de uma tentativa falhar com ErrTransient.
	FailureRate float64
}

type Remote struct {
	opts Options

	nextID atomic.Uint64
	calls  atomic.Int64
	fails  atomic.Int64

	mu     sync.Mutex
	chunks map[domain.ChunkID][]byte
}

func New(opts Options) *Remote {
	return &Remote{opts: opts, chunks: make(map[domain.ChunkID][]byte)}
}

// Call implementa domain.ChunkCreator.
func (r *Remote) Call(ctx context.Context, c domain.Chunk) (domain.PendingChunk, error) {
	if err := pause(ctx, r.opts.CallLatency); err != nil {
		return nil, err
	}
	r.calls.Add(1)
	return &pending{r: r, c: c, fail: r.opts.FailureRate > 0 && rand.Float64() < r.opts.FailureRate}, nil
}

// Chunk retorna o conteúdo armazenado para id.
func (r *Remote) Chunk(id domain.ChunkID) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.chunks[id]
	return b, ok
}

func (r *Remote) Calls() int64    { return r.calls.Load() }
func (r *Remote) Failures() int64 { return r.fails.Load() }

func (r *Remote) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks)
}

type pending struct {
	r    *Remote
	c    domain.Chunk
	fail bool
}

func (p *pending) Wait(ctx context.Context) (domain.ChunkID, error) {
	if err := pause(ctx, p.r.opts.WaitLatency); err != nil {
		return 0, err
	}
	if p.fail {
		p.r.fails.Add(1)
		return 0, fmt.Errorf("create_chunk %s#%d: %w", p.c.Path, p.c.Index, domain.ErrTransient)
	}

	id := domain.ChunkID(p.r.nextID.Add(1))
	data := append([]byte(nil), p.c.Data...)
	p.r.mu.Lock()
	p.r.chunks[id] = data
	p.r.mu.Unlock()
	return id, nil
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
