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

// Command sha256fifoc asks a running sha256fifod for the SHA-256 digest of
// a single file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bitsarebits/sha256fifod"
	"github.com/bitsarebits/sha256fifod/internal/fifoio"
	"github.com/bitsarebits/sha256fifod/wire"
)

var fRendezvousPath = flag.String(
	"rendezvous_path",
	"/tmp/fifo_server_sha256",
	"Path of the server's well-known request FIFO.")

var fTimeout = flag.Duration(
	"timeout",
	30*time.Second,
	"How long to wait for the server to open our return FIFO.")

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <pathname>\n", os.Args[0])
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(1)
	}
	pathname := flag.Arg(0)

	if err := run(pathname); err != nil {
		log.Fatal(err)
	}
}

func run(pathname string) error {
	pid := int32(os.Getpid())
	clientPath := sha256fifod.ClientFIFOPath(filepath.Dir(*fRendezvousPath), pid)

	if err := fifoio.Create(clientPath); err != nil {
		return fmt.Errorf("create client FIFO: %w", err)
	}
	defer fifoio.Remove(clientPath)

	// Make sure a stray SIGINT still removes the client FIFO rather than
	// leaving it behind in the rendezvous directory.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fifoio.Remove(clientPath)
		os.Exit(1)
	}()

	req, err := wire.NewRequest(pid, pathname)
	if err != nil {
		return err
	}

	serverFIFO, err := os.OpenFile(*fRendezvousPath, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open server FIFO: %w", err)
	}
	if err := wire.WriteRequest(serverFIFO, req); err != nil {
		serverFIFO.Close()
		return fmt.Errorf("write request: %w", err)
	}
	serverFIFO.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *fTimeout)
	defer cancel()

	clientFIFO, err := openReadWithContext(ctx, clientPath)
	if err != nil {
		return fmt.Errorf("open client FIFO: %w", err)
	}
	defer clientFIFO.Close()

	resp, err := wire.ReadResponse(clientFIFO)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.ErrCode == wire.ErrShuttingDown {
		return fmt.Errorf("server was shutting down; no digest computed")
	}

	if !resp.ErrCode.Advisory() {
		return fmt.Errorf("server reported: %v", resp.ErrCode)
	}

	fmt.Printf("%s\n", resp.HexDigest())

	if resp.ErrCode == wire.ErrClose {
		fmt.Fprintf(os.Stderr, "warning: server reported %v while closing the file\n", resp.ErrCode)
	}

	return nil
}

// openReadWithContext opens path for reading, failing if ctx expires
// first. Unlike the server's rendezvous FIFO, a client's return FIFO is
// opened for reading exactly once, so there is no point keeping an extra
// writer around to avoid spurious EOF; if ctx expires the goroutine racing
// the open leaks until a writer eventually shows up or the process exits.
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
