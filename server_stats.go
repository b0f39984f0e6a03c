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

import "sync"

// Stats accumulates the lifetime counters the reference implementation
// prints on shutdown: how many clients were served and how the digest
// cache performed. A cache miss and a digest computation are the same
// event in this design — every miss triggers exactly one computation — so
// no separate counter is kept for the latter.
type Stats struct {
	mu sync.Mutex

	clientsServed uint64
	cacheHits     uint64
	cacheMisses   uint64
}

// NewStats returns a zeroed Stats.
func NewStats() *Stats {
	return &Stats{}
}

// RecordClientsServed adds n to the lifetime count of clients that
// received a response.
func (s *Stats) RecordClientsServed(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientsServed += uint64(n)
}

// RecordCacheHit increments the cache-hit counter.
func (s *Stats) RecordCacheHit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheHits++
}

// RecordCacheMiss increments the cache-miss counter.
func (s *Stats) RecordCacheMiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheMisses++
}

// ClientsServed returns the lifetime count of clients served.
func (s *Stats) ClientsServed() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientsServed
}

// CacheHits returns the lifetime count of cache hits.
func (s *Stats) CacheHits() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cacheHits
}

// CacheMisses returns the lifetime count of cache misses, equivalently the
// number of digests this server process has computed from scratch.
func (s *Stats) CacheMisses() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cacheMisses
}

// HitRate returns the fraction of cache lookups that hit, or 0 if none
// have been performed yet.
func (s *Stats) HitRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.cacheHits + s.cacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.cacheHits) / float64(total)
}
