package websocket

import "sync"

// guidLocks hands out one mutex per user guid, dropped once unused.
type guidLocks struct {
	mu    sync.Mutex
	locks map[string]*guidLock
}

type guidLock struct {
	mu   sync.Mutex
	refs int
}

func newGUIDLocks() *guidLocks {
	return &guidLocks{locks: make(map[string]*guidLock)}
}

func (l *guidLocks) lock(guid string) func() {
	l.mu.Lock()
	entry, ok := l.locks[guid]
	if !ok {
		entry = &guidLock{}
		l.locks[guid] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, guid)
		}
		l.mu.Unlock()
	}
}

func (l *guidLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
