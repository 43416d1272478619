package domain

import "context"

// SlotPool é um recurso com capacidade finita (requisições em andamento).
//
// Acquire bloqueia até conseguir vaga ou o ctx encerrar. O release devolvido
// deve ser chamado exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
	InUse() int
	Cap() int
}
