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
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/bitsarebits/sha256fifod/internal/fifoio"
	"github.com/bitsarebits/sha256fifod/wire"
)

// maxWorkers bounds the worker pool the same way the reference
// implementation's MAX_THREADS does, independent of how many cores the
// host reports.
const maxWorkers = 64

// Config holds the knobs a caller may set before starting a server.
type Config struct {
	// RendezvousPath is where the well-known request FIFO is created. It
	// must not already exist.
	RendezvousPath string

	// WorkerCount is the number of worker goroutines to run. Zero means
	// DefaultWorkerCount().
	WorkerCount int

	// CacheSize is the number of buckets in the digest cache. Zero means
	// DefaultCacheSize.
	CacheSize int
}

// DefaultWorkerCount returns NumCPU()-1 clamped to [1, maxWorkers-1],
// mirroring the reference server's "one thread per core, minus one for
// the dispatcher" sizing, with the reference's off-by-one MAX_THREADS
// clamp corrected to clamp the worker count itself rather than silently
// admitting one fewer worker than requested.
func DefaultWorkerCount() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	if n > maxWorkers-1 {
		n = maxWorkers - 1
	}
	return n
}

// LifecycleController owns every long-lived piece of a running server: the
// rendezvous FIFO, the coalescer, the worker pool, and the dispatcher
// reading requests into it. It guarantees shutdown happens at most once no
// matter how many times Shutdown is called or from how many goroutines.
type LifecycleController struct {
	cfg Config

	endpoint   *RendezvousEndpoint
	coalescer  *Coalescer
	cache      *Cache
	stats      *Stats
	workers    *workerPool
	dispatcher *Dispatcher

	shutdownOnce sync.Once

	// joinStatus is the error Run's dispatcher loop exited with; not valid
	// until joinStatusAvailable is closed.
	joinStatus          error
	joinStatusAvailable chan struct{}
}

// Start creates the rendezvous FIFO, wires up the coalescer, cache, and
// worker pool, and begins serving requests in the background. It returns
// once the server is ready to accept requests.
func Start(cfg Config) (*LifecycleController, error) {
	if cfg.RendezvousPath == "" {
		return nil, fmt.Errorf("RendezvousPath is required")
	}

	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount()
	}

	endpoint, err := OpenRendezvous(cfg.RendezvousPath)
	if err != nil {
		return nil, err
	}

	lc := &LifecycleController{
		cfg:                 cfg,
		endpoint:            endpoint,
		coalescer:           NewCoalescer(),
		cache:               NewCache(cfg.CacheSize),
		stats:               NewStats(),
		joinStatusAvailable: make(chan struct{}),
	}

	lc.workers = newWorkerPool(lc.coalescer, lc.cache, lc.stats, lc.publishResponse)
	lc.workers.Start(workerCount)

	lc.dispatcher = NewDispatcher(lc.endpoint, lc.coalescer, nil)

	getLogger().Printf("listening on %s with %d workers", cfg.RendezvousPath, workerCount)

	go func() {
		err := lc.dispatcher.Run()
		lc.joinStatus = err
		close(lc.joinStatusAvailable)
	}()

	return lc, nil
}

// publishResponse delivers resp to the per-client return FIFO for
// clientPID. It logs and swallows any error, so the remaining clients of
// the same work item are still served. The open has no timeout: it blocks
// until the client opens its return FIFO for reading, so a client that
// creates its FIFO but never reads from it holds the calling goroutine
// indefinitely.
func (lc *LifecycleController) publishResponse(clientPID int32, resp wire.Response) {
	path := ClientFIFOPath(filepath.Dir(lc.cfg.RendezvousPath), clientPID)

	f, err := fifoio.OpenWriteTimeout(path, 0)
	if err != nil {
		getLogger().Printf("delivering response to client %d: %v", clientPID, err)
		return
	}
	defer f.Close()

	if err := wire.WriteResponse(f, resp); err != nil {
		getLogger().Printf("writing response to client %d: %v", clientPID, err)
	}
}

// Wait blocks until the dispatcher's request loop exits, which happens
// after Shutdown tears down the rendezvous FIFO or when a read from it
// fails.
func (lc *LifecycleController) Wait(ctx context.Context) error {
	select {
	case <-lc.joinStatusAvailable:
		return lc.joinStatus
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops admitting new work, drains whatever was pending or
// in-flight by publishing wire.ErrShuttingDown to their clients, closes
// the rendezvous FIFO (unblocking the dispatcher's Run loop with io.EOF),
// and waits for every worker goroutine to exit. It is safe to call more
// than once or from more than one goroutine; only the first call does
// anything.
func (lc *LifecycleController) Shutdown() {
	lc.shutdownOnce.Do(func() {
		remaining := lc.coalescer.Shutdown()
		for _, item := range remaining {
			var resp wire.Response
			resp.ErrCode = wire.ErrShuttingDown
			for _, pid := range item.Clients() {
				lc.publishResponse(pid, resp)
			}
		}

		lc.workers.Wait()

		if err := lc.endpoint.Close(); err != nil {
			getLogger().Printf("closing rendezvous FIFO: %v", err)
		}

		getLogger().Printf(
			"clients served: %d, cache hits: %d, cache misses: %d (%.2f%% hit rate)",
			lc.stats.ClientsServed(), lc.stats.CacheHits(), lc.stats.CacheMisses(), lc.stats.HitRate()*100)
	})
}

// Stats returns the server's lifetime counters.
func (lc *LifecycleController) Stats() *Stats {
	return lc.stats
}
