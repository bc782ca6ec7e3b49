package sessions

import "sync"

// WriteLocker guards a single session's on-disk file against concurrent
// writers. Each session id maps to its own mutex; sessions that are never
// locked never allocate one.
type WriteLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewWriteLocker returns an empty locker.
func NewWriteLocker() *WriteLocker {
	return &WriteLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *WriteLocker) mutexFor(sessionID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[sessionID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[sessionID] = m
	}
	return m
}

// Lock acquires the per-session write lock, blocking until available.
func (l *WriteLocker) Lock(sessionID string) {
	l.mutexFor(sessionID).Lock()
}

// Unlock releases the per-session write lock.
func (l *WriteLocker) Unlock(sessionID string) {
	l.mutexFor(sessionID).Unlock()
}
