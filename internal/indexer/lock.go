package indexer

import (
	"sync"
	"sync/atomic"
)

// IndexLock provides non-blocking lock semantics using atomic operations.
type IndexLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
// Returns true if the lock was successfully acquired, false otherwise.
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// articleLocks hands out one IndexLock per article ID so concurrent
// reindexes of the same article exclude each other while distinct articles
// proceed in parallel. Locks are created lazily and never reclaimed; the
// registry grows with the number of distinct articles ever reindexed.
type articleLocks struct {
	mu    sync.Mutex
	locks map[int64]*IndexLock
}

func newArticleLocks() *articleLocks {
	return &articleLocks{locks: make(map[int64]*IndexLock)}
}

func (a *articleLocks) forArticle(id int64) *IndexLock {
	a.mu.Lock()
	defer a.mu.Unlock()

	l, ok := a.locks[id]
	if !ok {
		l = &IndexLock{}
		a.locks[id] = l
	}
	return l
}
