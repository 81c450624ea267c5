package sheet

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	key := uuid.New()

	var wg sync.WaitGroup
	inside, maxInside := 0, 0
	var mu sync.Mutex
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(key)
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("expected at most one holder, saw %d", maxInside)
	}
	if n := k.size(); n != 0 {
		t.Errorf("expected lock table to be empty, got %d entries", n)
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock(uuid.New())
	// A different key must not block while A is held.
	unlockB := k.Lock(uuid.New())
	unlockB()
	unlockA()
}
