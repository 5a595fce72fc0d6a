// Package application contém os casos de uso dos limiters: decisão allow/deny
// (token bucket e janela fixa) e aquisição de vagas de concorrência, sem net/http.
package application
