package domain

import "context"

// SlotPool limita quantos requests o gateway atende ao mesmo tempo.
//
// Acquire bloqueia até existir vaga ou o ctx encerrar. O release retornado
// deve ser chamado exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
