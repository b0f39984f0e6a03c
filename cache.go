// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sha256fifod

import (
	"fmt"
	"time"

	"github.com/jacobsa/syncutil"
)

// DefaultCacheSize is the number of collision-chain heads in a Cache
// created with NewCache(0). The reference implementation uses 1024; any
// power of two no smaller than 256 is acceptable.
const DefaultCacheSize = 1024

type cacheEntry struct {
	pathname  string
	mtimeNano int64
	digest    [32]byte
	next      *cacheEntry // GUARDED_BY(the owning Cache's mu)
}

// Cache is a fixed-capacity, process-lifetime digest cache keyed by
// (pathname, mtime). It never evicts; entries are inserted once and never
// mutated. It is guarded by its own mutex, disjoint from the Coalescer's,
// so that cache reads are never serialized behind list bookkeeping.
type Cache struct {
	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	buckets []*cacheEntry
}

// NewCache creates a cache with the given number of buckets. A size of zero
// or less uses DefaultCacheSize.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}

	c := &Cache{
		buckets: make([]*cacheEntry, size),
	}
	c.mu = syncutil.NewInvariantMutex(c.checkInvariants)
	return c
}

func (c *Cache) checkInvariants() {
	// INVARIANT: every entry is chained into the bucket its own key hashes
	// to, and digests are fixed 32-byte arrays (guaranteed by the type
	// system, so nothing to check there beyond chain placement).
	for i, head := range c.buckets {
		for e := head; e != nil; e = e.next {
			if c.bucketIndex(e.pathname, e.mtimeNano) != i {
				panic(fmt.Sprintf(
					"cache entry %q chained into bucket %d, hashes to a different one",
					e.pathname, i))
			}
		}
	}
}

// bucketIndex computes the djb2-derived bucket for (pathname, mtimeNano),
// the same algorithm the reference implementation's hash_path uses:
// djb2 over the pathname, continued by one more "hash*33 + c" step mixing
// in the modification time.
func (c *Cache) bucketIndex(pathname string, mtimeNano int64) int {
	var hash uint32 = 5381
	for i := 0; i < len(pathname); i++ {
		hash = hash*33 + uint32(pathname[i])
	}
	hash = hash*33 + uint32(mtimeNano)
	return int(hash % uint32(len(c.buckets)))
}

// Lookup returns the cached digest for (pathname, mtime), if any. The
// chain's first match wins; a worker that loses a race to insert the same
// entry twice is tolerated because every reader sees a complete entry and
// returns the first one it finds.
func (c *Cache) Lookup(pathname string, mtime time.Time) (digest [32]byte, ok bool) {
	mtimeNano := mtime.UnixNano()

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.bucketIndex(pathname, mtimeNano)
	for e := c.buckets[idx]; e != nil; e = e.next {
		if e.pathname == pathname && e.mtimeNano == mtimeNano {
			return e.digest, true
		}
	}

	return digest, false
}

// Insert adds a new entry to the head of its bucket's collision chain.
// Duplicate insertion for the same (pathname, mtime) is permitted and
// harmless: Lookup always returns the first match.
func (c *Cache) Insert(pathname string, mtime time.Time, digest [32]byte) {
	mtimeNano := mtime.UnixNano()

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.bucketIndex(pathname, mtimeNano)
	c.buckets[idx] = &cacheEntry{
		pathname:  pathname,
		mtimeNano: mtimeNano,
		digest:    digest,
		next:      c.buckets[idx],
	}
}
