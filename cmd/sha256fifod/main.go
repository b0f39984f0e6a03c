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

// Command sha256fifod runs the SHA-256 hashing server.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitsarebits/sha256fifod"
)

var fRendezvousPath = flag.String(
	"rendezvous_path",
	"/tmp/fifo_server_sha256",
	"Path at which to create the well-known request FIFO.")

var fWorkerCount = flag.Int(
	"worker_count",
	0,
	"Number of worker goroutines. Zero picks NumCPU()-1.")

var fCacheSize = flag.Int(
	"cache_size",
	0,
	"Number of buckets in the digest cache. Zero picks the default.")

func main() {
	flag.Parse()

	cfg := sha256fifod.Config{
		RendezvousPath: *fRendezvousPath,
		WorkerCount:    *fWorkerCount,
		CacheSize:      *fCacheSize,
	}

	lc, err := sha256fifod.Start(cfg)
	if err != nil {
		log.Fatalf("Start: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received %v, shutting down", sig)
		lc.Shutdown()
	}()

	if err := lc.Wait(context.Background()); err != nil {
		log.Printf("dispatcher exited: %v", err)
	}

	lc.Shutdown()
}
