package domain

import "context"

// ChunkID é o identificador devolvido pelo serviço remoto para um chunk criado.
type ChunkID uint64

// Chunk é um pedaço de tamanho limitado de um arquivo maior.
type Chunk struct {
	Path  string
	Index int
	Data  []byte
}

// ChunkCreator dispara a chamada remota de criação de chunk.
// Call só envia o pedido; a resposta é aguardada em PendingChunk.Wait.
// Erros marcados com ErrTransient podem ser retentados.
type ChunkCreator interface {
	Call(ctx context.Context, c Chunk) (PendingChunk, error)
}

type PendingChunk interface {
	Wait(ctx context.Context) (ChunkID, error)
}
