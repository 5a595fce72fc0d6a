// Package domain define contratos e tipos de domínio dos limiters do gateway:
// janela fixa por cliente (formulário de contato), token bucket global e concorrência.
//
// Este pacote não depende de net/http nem de implementações concretas.
package domain
