package domain

import "context"

// Pacer limita a taxa de disparo de chamadas remotas.
//
// Observação: a implementação pode ser token-bucket, leaky-bucket, etc.
// A camada de infra usa golang.org/x/time/rate.
type Pacer interface {
	Wait(ctx context.Context) error
}
