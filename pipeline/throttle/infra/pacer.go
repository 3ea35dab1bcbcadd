package infra

import (
	"context"

	"golang.org/x/time/rate"
)

// RatePacer é uma implementação de domain.Pacer baseada em token-bucket (x/time/rate).
// Um RatePacer nil não limita nada.
type RatePacer struct {
	lim *rate.Limiter
}

// NewRatePacer cria um pacer com `rps` disparos por segundo e rajada `burst`.
// Com rps <= 0 retorna nil (sem limite).
func NewRatePacer(rps float64, burst int) *RatePacer {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &RatePacer{lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (p *RatePacer) RPS() float64 {
	if p == nil {
		return 0
	}
	return float64(p.lim.Limit())
}

func (p *RatePacer) Burst() int {
	if p == nil {
		return 0
	}
	return p.lim.Burst()
}

// Wait implementa domain.Pacer.
func (p *RatePacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.lim.Wait(ctx)
}
