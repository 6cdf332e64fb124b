package services

import "sync"

// sessionLocks serializes mutating operations per session id. Operations on
// different sessions proceed independently; a single global lock would
// serialize unrelated games.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for the given session id and returns its unlock
// function. Entries are kept for the life of the process; the map is bounded
// by the number of sessions ever touched.
func (l *sessionLocks) Lock(sessionID string) func() {
	l.mu.Lock()
	m, ok := l.locks[sessionID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[sessionID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
