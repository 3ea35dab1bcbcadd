package throttle

import (
	"context"
	"fmt"

	"upload-throttle/pipeline/throttle/application"
	"upload-throttle/pipeline/throttle/domain"
	"upload-throttle/pipeline/throttle/infra"

	"github.com/google/uuid"
)

// Set é o conjunto de gates de uma sessão de upload.
// É compartilhado por referência por todas as goroutines da sessão e descartado no fim dela.
type Set struct {
	session string
	gates   map[domain.Stage]*infra.WeightedGate

	File            application.GateService
	CreateChunk     application.GateService
	CreateChunkCall application.GateService
	CreateChunkWait application.GateService
}

type options struct {
	stats   domain.StatsStore
	session string
}

type Option func(*options)

// WithStats registra eventos de todos os gates (best-effort).
func WithStats(s domain.StatsStore) Option {
	return func(o *options) { o.stats = s }
}

// WithSession fixa o id da sessão; por padrão é um UUID novo.
func WithSession(id string) Option {
	return func(o *options) { o.session = id }
}

func New(cfg Config, opts ...Option) (*Set, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("throttle config: %w", err)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.session == "" {
		o.session = uuid.NewString()
	}

	s := &Set{
		session: o.session,
		gates:   make(map[domain.Stage]*infra.WeightedGate, len(domain.Stages)),
	}

	capacities := map[domain.Stage]int64{
		domain.StageFileLoad:        cfg.FileLoadMB,
		domain.StageCreateChunk:     cfg.CreateChunk,
		domain.StageCreateChunkCall: cfg.CreateChunkCalls,
		domain.StageCreateChunkWait: cfg.CreateChunkWaits,
	}
	services := map[domain.Stage]*application.GateService{
		domain.StageFileLoad:        &s.File,
		domain.StageCreateChunk:     &s.CreateChunk,
		domain.StageCreateChunkCall: &s.CreateChunkCall,
		domain.StageCreateChunkWait: &s.CreateChunkWait,
	}
	for _, stage := range domain.Stages {
		g, err := infra.NewWeightedGate(capacities[stage])
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", stage, err)
		}
		s.gates[stage] = g
		*services[stage] = application.GateService{
			Session:        o.session,
			Stage:          stage,
			Gate:           g,
			AcquireTimeout: cfg.AcquireTimeout,
			Stats:          o.stats,
		}
	}
	return s, nil
}

func (s *Set) Session() string { return s.session }

// Gate expõe o gate de um estágio para inspeção (Capacity/InUse/Peak).
func (s *Set) Gate(stage domain.Stage) *infra.WeightedGate { return s.gates[stage] }

// AcquireFile reserva o peso de um arquivo de `size` bytes no gate file_load.
// Arquivos maiores que o orçamento inteiro ocupam o gate todo e rodam sozinhos.
func (s *Set) AcquireFile(ctx context.Context, size int64) (*domain.Lease, error) {
	w := MegabytesFor(size)
	if c := s.gates[domain.StageFileLoad].Capacity(); w > c {
		w = c
	}
	return s.File.Acquire(ctx, w)
}

// ChunkWorkflow retorna um workflow de criação de chunk ligado aos gates desta sessão.
// Pacer, Backoff e Logger podem ser ajustados pelo chamador.
func (s *Set) ChunkWorkflow(creator domain.ChunkCreator) *application.ChunkWorkflow {
	return &application.ChunkWorkflow{
		CreateChunk: s.CreateChunk,
		Call:        s.CreateChunkCall,
		Wait:        s.CreateChunkWait,
		Creator:     creator,
		Backoff:     application.DefaultBackoff(),
	}
}
