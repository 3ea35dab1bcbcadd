// Package upload orquestra o upload em lote de arquivos divididos em chunks,
// passando cada etapa pelos gates de um throttle.Set.
//
// Por arquivo: file_load (peso em MB) enquanto o Loader lê e codifica os bytes;
// o peso é devolvido antes dos chunks começarem. Por chunk: o ChunkWorkflow
// da sessão (create_chunk -> call -> wait, com retentativas).
package upload
