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
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/bitsarebits/sha256fifod/wire"
	"github.com/jacobsa/reqtrace"
)

// digestChunkSize is the buffer size used when streaming a file through
// sha256.Hash. 32 KiB amortizes the syscall overhead of read(2) without
// holding an unreasonable amount of memory per concurrent worker.
const digestChunkSize = 32 * 1024

// workerPool runs a fixed number of goroutines, each repeatedly taking a
// WorkItem from a Coalescer, computing or looking up its digest, and
// publishing a Response to every client registered on it.
type workerPool struct {
	coalescer *Coalescer
	cache     *Cache
	stats     *Stats
	publish   func(clientPID int32, resp wire.Response)

	wg sync.WaitGroup
}

// newWorkerPool constructs a workerPool. publish is called once per
// registered client with the response to deliver; it is expected to open
// that client's return FIFO and write the record, swallowing per-client
// delivery errors so that the remaining clients of the item are still
// served.
func newWorkerPool(coalescer *Coalescer, cache *Cache, stats *Stats, publish func(int32, wire.Response)) *workerPool {
	return &workerPool{
		coalescer: coalescer,
		cache:     cache,
		stats:     stats,
		publish:   publish,
	}
}

// Start launches n worker goroutines, each running loop until the
// coalescer shuts down.
func (p *workerPool) Start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.loop()
		}()
	}
}

// Wait blocks until every worker goroutine started by Start has returned.
func (p *workerPool) Wait() {
	p.wg.Wait()
}

func (p *workerPool) loop() {
	for {
		item, ok := p.coalescer.Take()
		if !ok {
			return
		}
		p.process(item)
	}
}

func (p *workerPool) process(item *WorkItem) {
	var report reqtrace.ReportFunc
	ctx := context.Background()
	if tracingEnabled() && reqtrace.Enabled() {
		ctx, report = reqtrace.StartSpan(ctx, fmt.Sprintf("digest %s", item.Pathname))
	}

	resp := p.computeResponse(ctx, item)

	p.coalescer.Complete(item)

	clients := item.Clients()
	for _, pid := range clients {
		p.publish(pid, resp)
	}
	if p.stats != nil {
		p.stats.RecordClientsServed(len(clients))
	}

	if report != nil {
		report(nil)
	}
}

func (p *workerPool) computeResponse(ctx context.Context, item *WorkItem) wire.Response {
	var resp wire.Response

	if item.DeferredErr != wire.OK {
		resp.ErrCode = item.DeferredErr
		return resp
	}

	getLogger().Printf(
		"computing digest for %s (queued %s)", item.Pathname, time.Since(item.AdmittedAt))

	if digest, ok := p.cache.Lookup(item.Pathname, item.Mtime); ok {
		getLogger().Printf("cache HIT for %s", item.Pathname)
		if p.stats != nil {
			p.stats.RecordCacheHit()
		}
		resp.SetDigest(digest)
		return resp
	}

	getLogger().Printf("cache MISS for %s, computing digest", item.Pathname)

	digest, errCode := digestFile(item.Pathname)
	if errCode != wire.OK && errCode != wire.ErrClose {
		resp.ErrCode = errCode
		return resp
	}

	p.cache.Insert(item.Pathname, item.Mtime, digest)
	if p.stats != nil {
		p.stats.RecordCacheMiss()
	}

	resp.SetDigest(digest)
	if errCode == wire.ErrClose {
		// Advisory: the digest is valid, but flag the close(2) failure so the
		// client can log it.
		resp.ErrCode = wire.ErrClose
	}
	return resp
}

// digestFile streams pathname's contents through SHA-256, returning
// wire.ErrOpen or wire.ErrRead on failure, or wire.ErrClose (advisory) if
// the digest was computed but the subsequent close(2) failed.
func digestFile(pathname string) (digest [32]byte, errCode wire.Errno) {
	f, err := os.Open(pathname)
	if err != nil {
		return digest, wire.ErrOpen
	}

	h := sha256.New()
	buf := make([]byte, digestChunkSize)
	_, copyErr := io.CopyBuffer(h, f, buf)

	closeErr := f.Close()

	if copyErr != nil {
		return digest, wire.ErrRead
	}

	copy(digest[:], h.Sum(nil))

	if closeErr != nil {
		return digest, wire.ErrClose
	}
	return digest, wire.OK
}
