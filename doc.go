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

// Package sha256fifod implements a local, multi-client SHA-256 hashing
// service. Clients submit a file pathname to a long-running server over a
// named-pipe rendezvous; the server returns the hex-encoded SHA-256 digest
// of that file's contents.
//
// The primary elements of interest are:
//
//   - Coalescer, which merges concurrent requests naming the same file at
//     the same modification time into a single WorkItem, and schedules
//     pending work by ascending file size.
//
//   - Cache, a process-lifetime digest cache keyed by (pathname, mtime).
//
//   - LifecycleController, which owns the rendezvous FIFO, starts the
//     worker pool, and drives shutdown exactly once regardless of whether
//     it is triggered by a signal or by normal exit.
//
// See cmd/sha256fifod for the server binary and cmd/sha256fifoc for the
// client.
package sha256fifod
