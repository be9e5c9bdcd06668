package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityLocks_SerializesPerIdentity(t *testing.T) {
	locks := NewIdentityLocks()

	const workers = 50
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("same")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestIdentityLocks_DifferentIdentitiesDoNotBlock(t *testing.T) {
	locks := NewIdentityLocks()

	unlockA := locks.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("b")
		unlockB()
		close(done)
	}()

	// Holding a's lock must not prevent b's from being acquired.
	<-done
}

func TestIdentityLocks_EntriesAreReleased(t *testing.T) {
	locks := NewIdentityLocks()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("id")
			unlock()
		}()
	}
	wg.Wait()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.locks)
}
