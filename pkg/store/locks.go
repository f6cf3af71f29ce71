package store

import (
	"hash/fnv"
	"sync"
)

// Striped per-entity mutexes scoped to channel ids, message ids, direct
// pairs, and raw keys. Striping keeps memory constant no matter how many
// entities exist; each domain gets its own stripe set so holding a pair
// lock while taking a channel lock can never self-deadlock.
const lockStripes = 256

var (
	channelLocks [lockStripes]sync.Mutex
	messageLocks [lockStripes]sync.Mutex
	pairLocks    [lockStripes]sync.Mutex
	keyLocks     [lockStripes]sync.Mutex
)

func stripe(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % lockStripes
}

// LockChannel acquires the per-channel mutex and returns the unlock func.
func LockChannel(channelID string) func() {
	l := &channelLocks[stripe(channelID)]
	l.Lock()
	return l.Unlock
}

// LockMessage acquires the per-message mutex used by reaction swaps.
func LockMessage(messageID string) func() {
	l := &messageLocks[stripe(messageID)]
	l.Lock()
	return l.Unlock
}

// LockPair acquires the mutex for an unordered uid pair; both orderings of
// the pair map to the same mutex.
func LockPair(a, b string) func() {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	l := &pairLocks[stripe(lo+":"+hi)]
	l.Lock()
	return l.Unlock
}

// lockKey acquires the mutex guarding conditional writes on a raw key.
func lockKey(key string) func() {
	l := &keyLocks[stripe(key)]
	l.Lock()
	return l.Unlock
}
