package app

import "sync"

// keyedLocker serializes work per key (a user's plans or one session)
// without a global lock. An entry lives only while someone holds or waits
// for it.
type keyedLocker struct {
	locks    map[string]*keyedMutex // Map of key → mutex
	mapMutex sync.Mutex             // Protects the map and the reference counts
}

type keyedMutex struct {
	sync.Mutex
	refs int
}

func newKeyedLocker() *keyedLocker {
	return &keyedLocker{locks: make(map[string]*keyedMutex)}
}

// Lock acquires the mutex for key and returns its release function.
func (k *keyedLocker) Lock(key string) func() {
	k.mapMutex.Lock()
	m := k.locks[key]
	if m == nil {
		m = &keyedMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mapMutex.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mapMutex.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mapMutex.Unlock()
	}
}

// size returns the number of live entries.
func (k *keyedLocker) size() int {
	k.mapMutex.Lock()
	defer k.mapMutex.Unlock()
	return len(k.locks)
}

func userKey(userID string) string       { return "user:" + userID }
func sessionKey(sessionID string) string { return "session:" + sessionID }
