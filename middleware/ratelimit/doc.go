// Package ratelimit fornece os adapters HTTP (net/http) dos limiters do gateway.
//
// Camadas:
//
//   - domain: contratos e tipos (sem net/http)
//   - application: casos de uso (decisão allow/deny, acquire/timeout)
//   - infra: janela fixa (memória/Redis), token bucket, semáforo, estatísticas
//   - ratelimit (este pacote): middlewares HTTP, extração de chave e tradução para status/headers
//
// O throttle global do site usa Middleware com application.Service (token bucket).
// O formulário de contato chama application.WindowService direto no handler, antes
// de enviar o e-mail, com a chave de ForwardedForKeyFunc.
package ratelimit
