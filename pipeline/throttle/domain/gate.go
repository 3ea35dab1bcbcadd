package domain

import (
	"context"
	"sync"
)

// Stage identifica um estágio do pipeline de upload. Cada estágio tem o seu próprio gate.
type Stage string

const (
	StageFileLoad        Stage = "file_load"
	StageCreateChunk     Stage = "create_chunk"
	StageCreateChunkCall Stage = "create_chunk_call"
	StageCreateChunkWait Stage = "create_chunk_wait"
)

// Stages lista os estágios na ordem fixa de aquisição.
var Stages = []Stage{StageFileLoad, StageCreateChunk, StageCreateChunkCall, StageCreateChunkWait}

// Gate representa um recurso com capacidade finita medida em unidades de peso.
//
// A semântica é: Acquire bloqueia até `weight` unidades estarem livres (em ordem FIFO)
// ou até o ctx encerrar. Se o ctx encerrar, nada é adquirido.
// Um peso maior que Capacity nunca poderia ser atendido e retorna ErrWeightExceedsCapacity.
type Gate interface {
	Acquire(ctx context.Context, weight int64) (*Lease, error)
	Capacity() int64
	InUse() int64
}

// Lease representa um peso concedido e ainda não devolvido.
// Release devolve o peso exatamente uma vez; chamadas extras não fazem nada.
type Lease struct {
	weight  int64
	once    sync.Once
	release func()
}

func NewLease(weight int64, release func()) *Lease {
	return &Lease{weight: weight, release: release}
}

func (l *Lease) Weight() int64 {
	if l == nil {
		return 0
	}
	return l.weight
}

func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		if l.release != nil {
			l.release()
		}
	})
}
