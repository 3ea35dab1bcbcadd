// Package throttle monta o conjunto de gates por estágio (Set) usado por uma sessão de upload.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (Gate, Lease, Stage, eventos)
//   - application: casos de uso (acquire com timeout, workflow de criação de chunk com retry)
//   - infra: implementações concretas (semáforo ponderado, token bucket, stats em memória/Redis)
//   - throttle (este pacote): Config + wiring dos quatro gates de uma sessão
//
// Fluxo no upload:
//
//  1. file_load: peso em MB do arquivo, enquanto lê e codifica os bytes
//  2. create_chunk: 1 por chunk, durante todo o workflow com retentativas
//  3. create_chunk_call: 1 por tentativa, só enquanto dispara a chamada remota
//  4. create_chunk_wait: 1 por tentativa, só enquanto aguarda a resposta
//
// create_chunk é mais largo que call/wait: os gates internos é que limitam a rede,
// e um chunk no meio de retentativas disputa em pé de igualdade com chunks novos.
package throttle
