// Package application contém os casos de uso (regras de aplicação) para a admissão
// por estágio do pipeline de upload.
//
// Ele depende apenas do pacote domain.
// Ex.: GateService.Acquire aplica timeout e estatísticas sobre um domain.Gate, e
// ChunkWorkflow cria um chunk com retentativas respeitando a ordem dos gates.
package application
