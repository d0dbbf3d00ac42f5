package services

import (
	"fmt"
	"sync"
)

// keyedMutex serializes work per key inside this process. Row locks cover
// the cross-process case on databases that support them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

var processLocks = newKeyedMutex()

func cartLockKey(userID uint) string {
	return fmt.Sprintf("cart:%d", userID)
}

func orderLockKey(orderID uint) string {
	return fmt.Sprintf("order:%d", orderID)
}
