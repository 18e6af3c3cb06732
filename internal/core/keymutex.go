package core

import "sync"

// keyedMutex serializes operations per string key. Session lifecycle events
// for the same (child, device) pair must not interleave, or duplicate reports
// from a flaky network could fork parallel open sessions.
//
// Entries are never evicted; the key space is bounded by the household's
// device fleet.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns the unlock function
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// sessionKey builds the serialization key for a (child, device) pair
func sessionKey(childID, deviceID string) string {
	return childID + "|" + deviceID
}
