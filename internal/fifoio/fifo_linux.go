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

// Package fifoio wraps the handful of low-level named-pipe operations the
// rendezvous protocol depends on: creating a FIFO with the right mode bits,
// and confirming that wire records fit inside the kernel's atomic
// pipe-write threshold.
package fifoio

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Mode is the permission mode used for both the rendezvous FIFO and every
// per-client return FIFO: owner read+write, group write, no access for
// others.
const Mode = unix.S_IRUSR | unix.S_IWUSR | unix.S_IWGRP

// Create makes a new named pipe at path with Mode permissions. It returns an
// error if path already exists; the caller (the Lifecycle Controller) is
// expected to treat that as a fatal startup condition rather than clean up
// someone else's FIFO.
func Create(path string) error {
	if err := unix.Mkfifo(path, Mode); err != nil {
		return fmt.Errorf("mkfifo %s: %w", path, err)
	}
	return nil
}

// CheckAtomicWriteSize confirms that a write of size bytes to a pipe cannot
// be torn by a concurrent writer, by comparing it against the kernel's
// configured pipe buffer size (F_GETPIPE_SZ). The stdlib syscall package
// has no constant for this fcntl command, so this is one of the few places
// sha256fifod reaches past the standard library.
func CheckAtomicWriteSize(size int) error {
	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("creating scratch pipe: %w", err)
	}
	defer r.Close()
	defer w.Close()

	n, err := unix.FcntlInt(w.Fd(), unix.F_GETPIPE_SZ, 0)
	if err != nil {
		return fmt.Errorf("fcntl F_GETPIPE_SZ: %w", err)
	}

	if size > n {
		return fmt.Errorf(
			"record size %d exceeds the kernel's atomic pipe write size %d",
			size, n)
	}

	return nil
}

// OpenWriteTimeout opens path for writing, as the publish step of the
// protocol does against a client's return FIFO. A timeout of zero blocks
// forever, matching the reference server's behavior; a positive timeout is
// an extension (see design notes) that keeps a single misbehaving client
// from wedging a worker forever. Note that a fired timeout does not cancel
// the underlying open(2): the goroutine below keeps waiting for a reader
// and leaks until one shows up or the process exits.
func OpenWriteTimeout(path string, timeout time.Duration) (*os.File, error) {
	if timeout <= 0 {
		return os.OpenFile(path, os.O_WRONLY, 0)
	}

	type result struct {
		f   *os.File
		err error
	}

	ch := make(chan result, 1)
	go func() {
		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		ch <- result{f, err}
	}()

	select {
	case r := <-ch:
		return r.f, r.err
	case <-time.After(timeout):
		return nil, fmt.Errorf(
			"open %s for write: timed out after %s waiting for a reader",
			path, timeout)
	}
}

// Remove unlinks path, ignoring the case where it is already gone.
func Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
