package engine

import "sync"

// lockMap serializes work per order. Transitions for one instance apply in
// call order; different orders proceed independently. The service and the
// reconciler share one lockMap so a replay never interleaves with a live
// transition on the same order.
type lockMap struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockMap() *lockMap {
	return &lockMap{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the given key and returns the unlock function.
func (l *lockMap) acquire(key string) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
