package bank

import "sync/atomic"

// opGuard is the operation-in-flight token. Every mutating entry point
// acquires it before doing anything else and releases it on every exit path,
// so an external collaborator invoked mid-operation can never re-enter and
// observe a checked-but-not-effected or effected-but-not-transferred state.
type opGuard struct {
	busy atomic.Bool
}

// enter acquires the token. On success it returns the release func; the
// caller must defer it immediately.
func (g *opGuard) enter() (func(), error) {
	if !g.busy.CompareAndSwap(false, true) {
		return nil, ErrReentrantCall
	}
	return func() { g.busy.Store(false) }, nil
}
