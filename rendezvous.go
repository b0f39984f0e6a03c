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
	"io"
	"os"
	"sync"

	"github.com/bitsarebits/sha256fifod/internal/fifoio"
	"github.com/bitsarebits/sha256fifod/wire"
)

// RendezvousEndpoint owns the well-known FIFO clients write Requests to. It
// is the server-side analog of what the reference implementation calls the
// "request FIFO": one path, opened for reading for the lifetime of the
// server, from which fixed-size Request records are read one at a time.
//
// A FIFO delivers EOF to a reader whenever its last writer closes; unlike a
// socket, it does not hang up the listener itself. RendezvousEndpoint hides
// that by opening the FIFO read-write, so that it holds its own writer
// reference and callers observe a request stream with no end until Close
// is called.
type RendezvousEndpoint struct {
	path string
	dev  *os.File

	mu     sync.Mutex
	closed bool
}

// OpenRendezvous creates the rendezvous FIFO at path (which must not
// already exist) and opens it read-write. The single read-write descriptor
// does the job of the reference server's pair of read-only and write-only
// descriptors: this process keeps its own writer reference, so reads never
// see a premature EOF between clients.
func OpenRendezvous(path string) (*RendezvousEndpoint, error) {
	if err := fifoio.Create(path); err != nil {
		return nil, fmt.Errorf("create rendezvous FIFO: %w", err)
	}

	if err := fifoio.CheckAtomicWriteSize(wire.RequestSize); err != nil {
		fifoio.Remove(path)
		return nil, err
	}

	// Opening O_RDWR (rather than O_RDONLY) gives this process its own
	// standing writer reference, so the read end never observes EOF just
	// because the most recent client closed its write side.
	dev, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		fifoio.Remove(path)
		return nil, fmt.Errorf("open rendezvous FIFO: %w", err)
	}

	return &RendezvousEndpoint{path: path, dev: dev}, nil
}

// Next reads the next Request record from the rendezvous FIFO, blocking
// until one arrives. It returns io.EOF once Close has been called, however
// the underlying read happened to fail as a result (the exact error a
// blocked read(2) surfaces when its file descriptor is closed out from
// under it is not part of any documented contract).
func (e *RendezvousEndpoint) Next() (wire.Request, error) {
	req, err := wire.ReadRequest(e.dev)
	if err != nil {
		e.mu.Lock()
		closed := e.closed
		e.mu.Unlock()
		if closed {
			return req, io.EOF
		}
		return req, fmt.Errorf("read request: %w", err)
	}
	return req, nil
}

// Close closes the FIFO's file descriptor and removes it from the
// filesystem. After Close returns, a subsequent call to Next returns
// io.EOF; any blocked Next call unblocks because the kernel tears down the
// file description when all references are closed within this process.
func (e *RendezvousEndpoint) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	closeErr := e.dev.Close()
	removeErr := fifoio.Remove(e.path)
	if closeErr != nil {
		return closeErr
	}
	if removeErr != nil {
		return removeErr
	}
	return nil
}

var _ io.Closer = (*RendezvousEndpoint)(nil)
