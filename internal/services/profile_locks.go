package services

import "sync"

// profileLocks serializes work per (user, profile). Entries are reference
// counted and dropped when the last holder unlocks.
type profileLocks struct {
	mu    sync.Mutex
	locks map[Identity]*profileLock
}

type profileLock struct {
	mu   sync.Mutex
	refs int
}

func newProfileLocks() *profileLocks {
	return &profileLocks{locks: make(map[Identity]*profileLock)}
}

// lock blocks until the caller holds the profile and returns the release func.
func (p *profileLocks) lock(id Identity) func() {
	p.mu.Lock()
	l, ok := p.locks[id]
	if !ok {
		l = &profileLock{}
		p.locks[id] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, id)
		}
		p.mu.Unlock()
	}
}

func (p *profileLocks) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}
