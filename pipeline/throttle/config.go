package throttle

import (
	"errors"
	"fmt"
	"time"
)

const (
	// Máximo de MB de dados de arquivo carregados ao mesmo tempo.
	// A memória real pode ser maior por causa das codificações (gzip etc).
	MaxSimultaneousLoadedMB = 50

	MaxSimultaneousCreateChunk      = 50
	MaxSimultaneousCreateChunkCalls = 25
	MaxSimultaneousCreateChunkWaits = 25
)

// BytesPerMB é a unidade de peso do gate file_load (MB decimal).
const BytesPerMB = 1_000_000

type Config struct {
	FileLoadMB       int64
	CreateChunk      int64
	CreateChunkCalls int64
	CreateChunkWaits int64

	// AcquireTimeout vale para todos os gates; 0 espera indefinidamente.
	AcquireTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		FileLoadMB:       MaxSimultaneousLoadedMB,
		CreateChunk:      MaxSimultaneousCreateChunk,
		CreateChunkCalls: MaxSimultaneousCreateChunkCalls,
		CreateChunkWaits: MaxSimultaneousCreateChunkWaits,
	}
}

func (c Config) Validate() error {
	var errs []error
	check := func(name string, v int64) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0, got %d", name, v))
		}
	}
	check("FileLoadMB", c.FileLoadMB)
	check("CreateChunk", c.CreateChunk)
	check("CreateChunkCalls", c.CreateChunkCalls)
	check("CreateChunkWaits", c.CreateChunkWaits)
	if c.AcquireTimeout < 0 {
		errs = append(errs, fmt.Errorf("AcquireTimeout must be >= 0, got %s", c.AcquireTimeout))
	}
	return errors.Join(errs...)
}

// MegabytesFor converte bytes para o peso do gate file_load:
// MB decimais arredondados para cima, mínimo 1 (arquivo vazio também ocupa uma vaga).
func MegabytesFor(size int64) int64 {
	if size <= 0 {
		return 1
	}
	mb := size / BytesPerMB
	if size%BytesPerMB != 0 {
		mb++
	}
	return mb
}
