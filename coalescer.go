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
	"container/list"
	"sync"
	"time"

	"github.com/bitsarebits/sha256fifod/wire"
	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
)

// Coalescer is the admission and scheduling structure at the heart of the
// server: it merges concurrent requests for the same (pathname, mtime) onto
// a single WorkItem, hands pending items to idle workers in ascending size
// order, and tracks the set of items a worker currently has checked out so
// that a later, identical request can still be coalesced onto in-flight
// work instead of being admitted twice.
//
// Locking: a single mutex guards both lists and the in-flight index. This
// mirrors the reference implementation, which shares one mutex between its
// pending and in-progress lists; splitting them would buy nothing; since
// admission must already check both lists atomically to decide whether to
// coalesce, insert, or reject, two locks would just have to be taken
// together every time.
type Coalescer struct {
	clock timeutil.Clock

	mu syncutil.InvariantMutex

	// cond is signaled whenever a new item becomes available in pending, or
	// when shuttingDown transitions to true, so that idle workers blocked in
	// Take wake up.
	//
	// GUARDED_BY(mu) in the sense that callers must hold mu while calling
	// Wait, per sync.Cond's contract.
	cond *sync.Cond

	// pending holds *WorkItem values not yet claimed by any worker, kept
	// sorted by ascending Size exactly as the reference implementation's
	// insertion routine does. Linear insertion and scan are fine at the
	// list lengths this server expects.
	//
	// GUARDED_BY(mu)
	pending *list.List

	// inFlight indexes every WorkItem currently pending or checked out by a
	// worker, keyed by (pathname, mtime), so Admit can find a coalescing
	// target in O(1) instead of the reference implementation's O(n) scan.
	//
	// GUARDED_BY(mu)
	inFlight map[workKey]*WorkItem

	// shuttingDown, once set, causes Take to stop handing out pending work
	// regardless of how much remains, and causes Admit to refuse new work
	// by returning ok == false.
	//
	// GUARDED_BY(mu)
	shuttingDown bool
}

// NewCoalescer returns an empty, ready-to-use Coalescer backed by the real
// clock.
func NewCoalescer() *Coalescer {
	return NewCoalescerWithClock(timeutil.RealClock())
}

// NewCoalescerWithClock is as NewCoalescer, but lets a test inject a fake
// clock to make WorkItem.AdmittedAt deterministic.
func NewCoalescerWithClock(clock timeutil.Clock) *Coalescer {
	c := &Coalescer{
		clock:    clock,
		pending:  list.New(),
		inFlight: make(map[workKey]*WorkItem),
	}
	c.mu = syncutil.NewInvariantMutex(c.checkInvariants)
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *Coalescer) checkInvariants() {
	// INVARIANT: every element of pending is also present in inFlight, and
	// pending is sorted by ascending Size.
	var prevSize int64 = -1
	for e := c.pending.Front(); e != nil; e = e.Next() {
		item := e.Value.(*WorkItem)
		if item.Size < prevSize {
			panic("pending is not sorted by ascending size")
		}
		prevSize = item.Size

		if c.inFlight[item.key()] != item {
			panic("pending item missing from inFlight index")
		}
	}

	// INVARIANT: every WorkItem has at least one registered client for as
	// long as it is reachable from either structure.
	for _, item := range c.inFlight {
		if len(item.clients) == 0 {
			panic("in-flight item has no registered clients")
		}
	}
}

// Admit registers clientPID as awaiting the digest of (pathname, mtime,
// size). If a matching item is already pending or checked out by a worker,
// clientPID is added to it and coalesced is true. Otherwise a new item is
// created and inserted into pending in sorted-by-size order.
//
// deferredErr, when non-zero, marks the new item (had one been created) as
// already failed at admission time — used when the caller's stat(2) on the
// pathname failed, so the worker skips straight to reporting the failure
// instead of re-stating or opening the file.
//
// Admit returns ok == false, without registering anything, if the
// coalescer has begun shutting down.
func (c *Coalescer) Admit(pathname string, mtime time.Time, size int64, deferredErr wire.Errno, clientPID int32) (coalesced bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shuttingDown {
		return false, false
	}

	key := workKey{pathname: pathname, mtimeNano: mtime.UnixNano()}
	if existing, found := c.inFlight[key]; found {
		existing.addClient(clientPID)
		return true, true
	}

	item := newWorkItem(pathname, mtime, size, deferredErr, clientPID, c.clock.Now())
	c.inFlight[key] = item

	inserted := false
	for e := c.pending.Front(); e != nil; e = e.Next() {
		if e.Value.(*WorkItem).Size > size {
			c.pending.InsertBefore(item, e)
			inserted = true
			break
		}
	}
	if !inserted {
		c.pending.PushBack(item)
	}

	c.cond.Signal()
	return false, true
}

// Take blocks until a pending item is available or the coalescer is shut
// down, whichever comes first. A returned item is removed from pending but
// remains in the in-flight index until the caller invokes Complete on it.
func (c *Coalescer) Take() (item *WorkItem, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.pending.Len() == 0 && !c.shuttingDown {
		c.cond.Wait()
	}

	// Shutdown wins even if work remains: workers must stop picking up new
	// items the moment shutdown begins, leaving whatever is left in
	// pending for LifecycleController to drain and fail explicitly.
	if c.shuttingDown {
		return nil, false
	}

	e := c.pending.Front()
	c.pending.Remove(e)
	return e.Value.(*WorkItem), true
}

// Complete removes item from the in-flight index, releasing the clients it
// held. After Complete returns, a subsequent Admit for the same (pathname,
// mtime) creates a fresh item rather than coalescing onto the stale one.
func (c *Coalescer) Complete(item *WorkItem) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inFlight, item.key())
}

// Shutdown marks the coalescer as shutting down and wakes every worker
// blocked in Take. It returns every WorkItem still in pending or in flight
// at the moment of the call — including ones already checked out by a
// worker — so the caller can publish a failure response to their clients.
// Calling Shutdown more than once is safe; the second call returns nil.
func (c *Coalescer) Shutdown() []*WorkItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shuttingDown {
		return nil
	}
	c.shuttingDown = true

	remaining := make([]*WorkItem, 0, len(c.inFlight))
	for _, item := range c.inFlight {
		remaining = append(remaining, item)
	}
	for k := range c.inFlight {
		delete(c.inFlight, k)
	}
	c.pending.Init()

	c.cond.Broadcast()
	return remaining
}
