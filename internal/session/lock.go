package session

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 256

// stripedMutex serializes work per key within the process using a fixed set of mutexes.
// Keys that hash to the same stripe share a lock.
type stripedMutex struct {
	stripes [lockStripes]sync.Mutex
}

func (m *stripedMutex) Lock(key string) (unlock func()) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))

	mu := &m.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}
