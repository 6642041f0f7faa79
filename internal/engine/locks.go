package engine

import "sync"

// keyedMutex serializes work per question token. Entries are created on
// first use and dropped when no goroutine holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*lockEntry)}
}

// Lock acquires the token's lock and returns its unlock function.
func (k *keyedMutex) Lock(token string) func() {
	k.mu.Lock()
	e, ok := k.locks[token]
	if !ok {
		e = &lockEntry{}
		k.locks[token] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, token)
		}
		k.mu.Unlock()
	}
}
