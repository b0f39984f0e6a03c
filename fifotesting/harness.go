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

// Package fifotesting provides a harness for exercising a real
// sha256fifod server over an actual FIFO rendezvous, for use in tests
// that want to observe genuine pipe behavior rather than calling the
// coalescer and cache directly.
package fifotesting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bitsarebits/sha256fifod"
	"github.com/bitsarebits/sha256fifod/internal/fifoio"
	"github.com/bitsarebits/sha256fifod/wire"
)

// Harness runs a server rooted at a temporary directory and provides a
// blocking RPC-style client call for tests.
type Harness struct {
	Dir string

	lc *sha256fifod.LifecycleController
}

// Start brings up a server whose rendezvous and client FIFOs live directly
// in dir (typically the value of (*testing.T).TempDir()).
func Start(dir string, workerCount int) (*Harness, error) {
	rendezvousPath := filepath.Join(dir, "fifo_server_sha256")

	lc, err := sha256fifod.Start(sha256fifod.Config{
		RendezvousPath: rendezvousPath,
		WorkerCount:    workerCount,
	})
	if err != nil {
		return nil, err
	}

	return &Harness{Dir: dir, lc: lc}, nil
}

// Stop shuts the server down and waits for it to finish.
func (h *Harness) Stop() {
	h.lc.Shutdown()
}

// Stats exposes the running server's lifetime counters.
func (h *Harness) Stats() *sha256fifod.Stats {
	return h.lc.Stats()
}

// Digest performs one client round trip: create a per-client return FIFO,
// send a request for pathname under the given synthetic client pid, and
// return the parsed response.
func (h *Harness) Digest(clientPID int32, pathname string, timeout time.Duration) (wire.Response, error) {
	clientPath := sha256fifod.ClientFIFOPath(h.Dir, clientPID)

	if err := fifoio.Create(clientPath); err != nil {
		return wire.Response{}, fmt.Errorf("create client FIFO: %w", err)
	}
	defer fifoio.Remove(clientPath)

	req, err := wire.NewRequest(clientPID, pathname)
	if err != nil {
		return wire.Response{}, err
	}

	rendezvousPath := filepath.Join(h.Dir, "fifo_server_sha256")
	serverFIFO, err := fifoio.OpenWriteTimeout(rendezvousPath, timeout)
	if err != nil {
		return wire.Response{}, fmt.Errorf("open server FIFO: %w", err)
	}
	if err := wire.WriteRequest(serverFIFO, req); err != nil {
		serverFIFO.Close()
		return wire.Response{}, err
	}
	serverFIFO.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	clientFIFO, err := openReadWithContext(ctx, clientPath)
	if err != nil {
		return wire.Response{}, fmt.Errorf("open client FIFO: %w", err)
	}
	defer clientFIFO.Close()

	return wire.ReadResponse(clientFIFO)
}

func openReadWithContext(ctx context.Context, path string) (*os.File, error) {
	type result struct {
		f   *os.File
		err error
	}
	ch := make(chan result, 1)
	go func() {
		f, err := os.OpenFile(path, os.O_RDONLY, 0)
		ch <- result{f, err}
	}()

	select {
	case r := <-ch:
		return r.f, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
