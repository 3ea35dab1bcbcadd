package application

import (
	"math/rand/v2"
	"time"
)

// Backoff descreve a política de retentativa da criação de chunk:
// atraso exponencial BaseDelay * 2^(attempt-1), com jitter de ±Jitter e teto MaxDelay.
type Backoff struct {
	MaxAttempts int // inclui a primeira tentativa
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64 // fração, ex: 0.25
}

func DefaultBackoff() Backoff {
	return Backoff{
		MaxAttempts: 10,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Jitter:      0.25,
	}
}

// Delay retorna o atraso antes da tentativa attempt+1.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.BaseDelay
	for i := 1; i < attempt; i++ {
		if (b.MaxDelay > 0 && d >= b.MaxDelay) || d > time.Hour {
			break
		}
		d *= 2
	}

	if r := int64(float64(d) * b.Jitter); r > 0 {
		d += time.Duration(rand.Int64N(2*r) - r)
	}

	if b.MaxDelay > 0 && d > b.MaxDelay {
		d = b.MaxDelay
	}
	if d < 0 {
		d = 0
	}
	return d
}
