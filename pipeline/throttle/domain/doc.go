// Package domain define contratos e tipos de domínio para o controle de admissão
// por estágio do pipeline de upload.
//
// Este pacote não depende de implementações concretas (semáforo, Redis, token bucket).
// A intenção é permitir testes de unidade puros e desacoplar as regras de admissão
// dos detalhes de infraestrutura.
package domain
