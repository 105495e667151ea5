package services

import (
	"sync"
	"testing"
)

func TestProfileLocks_SerializesSameProfile(t *testing.T) {
	locks := newProfileLocks()
	id := Identity{UserID: 1, ProfileID: 1}

	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock(id)
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxSeen)
	}
	if locks.size() != 0 {
		t.Errorf("size() = %d after all unlocks, want 0", locks.size())
	}
}

func TestProfileLocks_IndependentProfiles(t *testing.T) {
	locks := newProfileLocks()

	unlockA := locks.lock(Identity{UserID: 1, ProfileID: 1})
	done := make(chan struct{})
	go func() {
		unlockB := locks.lock(Identity{UserID: 1, ProfileID: 2})
		unlockB()
		close(done)
	}()
	<-done
	unlockA()

	if locks.size() != 0 {
		t.Errorf("size() = %d, want 0", locks.size())
	}
}
