package consultant

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type turnLock struct {
	ch   chan struct{}
	refs int
}

// TurnLocks serialises turns per conversation inside one process. Entries are
// reference counted and dropped once nobody holds or waits on them.
type TurnLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*turnLock
}

func NewTurnLocks() *TurnLocks {
	return &TurnLocks{locks: make(map[uuid.UUID]*turnLock)}
}

// Lock blocks until id is free or ctx ends. The returned func releases the
// lock and must be called exactly once.
func (l *TurnLocks) Lock(ctx context.Context, id uuid.UUID) (func(), error) {
	l.mu.Lock()
	tl, ok := l.locks[id]
	if !ok {
		tl = &turnLock{ch: make(chan struct{}, 1)}
		l.locks[id] = tl
	}
	tl.refs++
	l.mu.Unlock()

	select {
	case tl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(id, tl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-tl.ch
			l.release(id, tl)
		})
	}, nil
}

// Len is the number of conversations with a holder or waiter.
func (l *TurnLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *TurnLocks) release(id uuid.UUID, tl *turnLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tl.refs--
	if tl.refs == 0 {
		delete(l.locks, id)
	}
}
