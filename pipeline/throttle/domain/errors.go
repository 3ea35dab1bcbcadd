package domain

import "errors"

var (
	// ErrInvalidCapacity indica um gate construído com capacidade <= 0.
	ErrInvalidCapacity = errors.New("gate capacity must be > 0")

	// ErrInvalidWeight indica um pedido com peso < 1.
	ErrInvalidWeight = errors.New("acquire weight must be >= 1")

	// ErrWeightExceedsCapacity é violação de contrato: o pedido nunca caberia no gate.
	ErrWeightExceedsCapacity = errors.New("acquire weight exceeds gate capacity")

	// ErrAcquireTimeout indica que o timeout do chamador expirou antes da aquisição.
	ErrAcquireTimeout = errors.New("gate acquire timed out")

	// ErrTransient marca falhas remotas que podem ser tentadas de novo.
	ErrTransient = errors.New("transient remote failure")
)

// IsTransient informa se err pode ser retentado pelo workflow de criação de chunk.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
