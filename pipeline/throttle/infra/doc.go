// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - WeightedGate: semáforo ponderado FIFO usando golang.org/x/sync/semaphore
//   - RatePacer: token bucket usando golang.org/x/time/rate
//   - MemoryStatsStore / RedisStatsStore: estatísticas por estágio
package infra
