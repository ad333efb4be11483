package app

import (
	"hash/fnv"
	"sync"
)

// ListingLocks serializes writers per listing. Usage reporting and
// settlement on the same listing must not interleave, and a settlement
// batch must be indivisible from the perspective of other settlements.
//
// Locks are sharded by listing id hash to bound memory; two listings
// sharing a shard serialize against each other, which is harmless.
type ListingLocks struct {
	shards []sync.Mutex
}

// NewListingLocks creates a sharded lock set.
func NewListingLocks(numShards int) *ListingLocks {
	if numShards <= 0 {
		numShards = 32
	}
	return &ListingLocks{shards: make([]sync.Mutex, numShards)}
}

func (l *ListingLocks) shard(listingID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(listingID))
	return &l.shards[h.Sum32()%uint32(len(l.shards))]
}

// Lock acquires the listing's lock and returns its unlock function.
func (l *ListingLocks) Lock(listingID string) func() {
	m := l.shard(listingID)
	m.Lock()
	return m.Unlock
}
