// Package guard enforces at most one in-flight command per connection.
//
// The SQL and key-value wire protocols used by unidb are strictly
// request/response without multiplexing, so two commands interleaved on one
// socket would corrupt each other's framing. A Guard never queues: Acquire
// either succeeds at once or fails at once with an errs.ErrKindBusy error,
// and retrying is the caller's business.
//
// Usage:
//
//	lease, err := g.Acquire()
//	if err != nil {
//	    return err // busy
//	}
//	defer lease.Release()
package guard

import (
	"sync"
	"sync/atomic"

	"github.com/koustreak/unidb/internal/errs"
)

// Guard is a try-only exclusive lock. The zero value is ready to use.
type Guard struct {
	mu sync.Mutex
}

// Lease is proof of exclusive ownership. Release is safe to call more than
// once; only the first call unlocks.
type Lease struct {
	g        *Guard
	released atomic.Bool
}

// Acquire takes the lock without blocking.
func (g *Guard) Acquire() (*Lease, error) {
	if !g.mu.TryLock() {
		return nil, errs.ErrBusy
	}
	return &Lease{g: g}, nil
}

// Release gives the lock back.
func (l *Lease) Release() {
	if l == nil || !l.released.CompareAndSwap(false, true) {
		return
	}
	l.g.mu.Unlock()
}
