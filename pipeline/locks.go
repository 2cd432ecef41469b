package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// accountLocks serializes runs per account. A second run for the same
// account waits for the first to finish and then reads fresh state.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*accountLock
}

type accountLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*accountLock)}
}

func (l *accountLocks) acquire(ctx context.Context, account string) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[account]
	if !ok {
		lock = &accountLock{sem: semaphore.NewWeighted(1)}
		l.locks[account] = lock
	}
	lock.refs++
	l.mu.Unlock()

	if err := lock.sem.Acquire(ctx, 1); err != nil {
		l.unref(account, lock)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			lock.sem.Release(1)
			l.unref(account, lock)
		})
	}, nil
}

func (l *accountLocks) unref(account string, lock *accountLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, account)
	}
}

func (l *accountLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
