package dummydb

import (
	"context"
	"sync"

	"github.com/trezcool/darasa/core"
)

type locker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

var _ core.Locker = (*locker)(nil) // interface compliance check

// NewLocker returns a core.Locker whose locks are only held within the process.
func NewLocker() core.Locker {
	return &locker{locks: make(map[string]chan struct{})}
}

func (l *locker) Lock(ctx context.Context, name string) (func(), error) {
	l.mu.Lock()
	sem, ok := l.locks[name]
	if !ok {
		sem = make(chan struct{}, 1)
		l.locks[name] = sem
	}
	l.mu.Unlock()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
