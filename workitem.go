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
	"time"

	"github.com/bitsarebits/sha256fifod/wire"
)

// workKey identifies a work item by the (pathname, mtime) pair two requests
// must share to be coalesced onto it. mtime is stored as UnixNano so that
// two time.Time values obtained from independent stat(2) calls compare
// equal whenever the kernel considers the file unchanged, regardless of
// monotonic reading noise.
type workKey struct {
	pathname  string
	mtimeNano int64
}

// WorkItem aggregates every client awaiting the digest of one (pathname,
// mtime) pair. It sits in the Coalescer's pending list until a worker takes
// it, and stays in the Coalescer's in-flight index from admission until
// Complete or Shutdown removes it.
//
// All fields are GUARDED_BY the Coalescer's mutex.
type WorkItem struct {
	Pathname string
	Mtime    time.Time
	Size     int64

	// AdmittedAt is when this item was first created, taken from the
	// Coalescer's injected clock so tests can control it. Used only for
	// logging how long a work item sat on the pending list; it plays no
	// role in coalescing or ordering.
	AdmittedAt time.Time

	// DeferredErr is set when the admission-time stat failed, so the
	// worker can report the failure without attempting to re-stat or
	// open the file.
	DeferredErr wire.Errno

	// clients holds the registered client pids, most-recently-registered
	// first: each new registration is prepended, exactly as in the
	// reference implementation's intrusive client_node_t list, and
	// non-empty from the work item's creation to its destruction.
	clients []int32
}

func newWorkItem(pathname string, mtime time.Time, size int64, deferredErr wire.Errno, clientPID int32, admittedAt time.Time) *WorkItem {
	return &WorkItem{
		Pathname:    pathname,
		Mtime:       mtime,
		Size:        size,
		AdmittedAt:  admittedAt,
		DeferredErr: deferredErr,
		clients:     []int32{clientPID},
	}
}

func (w *WorkItem) key() workKey {
	return workKey{pathname: w.Pathname, mtimeNano: w.Mtime.UnixNano()}
}

// addClient registers another client as awaiting this item's response. It
// must be called with the Coalescer's mutex held.
func (w *WorkItem) addClient(clientPID int32) {
	w.clients = append([]int32{clientPID}, w.clients...)
}

// Clients returns the registered client pids, most-recently-registered
// first. The caller must not retain the slice past the work item's
// destruction.
func (w *WorkItem) Clients() []int32 {
	return w.clients
}
