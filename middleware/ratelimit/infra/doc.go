// Package infra contém implementações concretas para os contratos de domain.
//
//   - WindowStore: janela fixa por chave em memória (formulário de contato)
//   - RedisWindowStore: a mesma janela fixa com estado no Redis (script Lua)
//   - TokenStore: token bucket por chave usando golang.org/x/time/rate
//   - MemoryStatsStore / RedisStatsStore: contadores de decisão
//   - ChanPool: semáforo simples para limite de concorrência
package infra
