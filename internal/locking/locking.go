// Package locking serializes critical sections keyed by a business entity.
package locking

import (
	"context"
	"errors"
	"sync"
)

var ErrNotObtained = errors.New("lock_not_obtained")

// Locker acquires an exclusive lock on key, blocking until the lock is held
// or ctx is done. The returned function releases it.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

type Release func(ctx context.Context) error

// LocalLocker is an in-process keyed mutex. It only serializes callers in
// the same process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: map[string]*entry{}}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (Release, error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, e)
		return nil, errors.Join(ErrNotObtained, ctx.Err())
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-e.ch
			l.unref(key, e)
		})
		return nil
	}, nil
}

func (l *LocalLocker) unref(key string, e *entry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}
