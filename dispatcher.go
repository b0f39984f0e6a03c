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
	"io"

	"github.com/bitsarebits/sha256fifod/internal/statter"
	"github.com/bitsarebits/sha256fifod/wire"
	"github.com/jacobsa/reqtrace"
)

// Dispatcher reads Request records off a RendezvousEndpoint and admits
// each one to a Coalescer, stat-ing the named file first so that admission
// and scheduling both have the (mtime, size) pair immediately rather than
// needing to reopen the file later.
type Dispatcher struct {
	endpoint  *RendezvousEndpoint
	coalescer *Coalescer
	statter   statter.Statter
}

// NewDispatcher returns a Dispatcher reading from endpoint and admitting
// work to coalescer. If st is nil, the real filesystem is used.
func NewDispatcher(endpoint *RendezvousEndpoint, coalescer *Coalescer, st statter.Statter) *Dispatcher {
	if st == nil {
		st = statter.New()
	}
	return &Dispatcher{endpoint: endpoint, coalescer: coalescer, statter: st}
}

// Run reads requests from the rendezvous endpoint until it returns an
// error (io.EOF after Close, or something else worth logging), admitting
// each to the coalescer. It returns nil only when the endpoint reports
// io.EOF, which happens exactly once: when the server is shutting down
// and Close has torn down the rendezvous FIFO.
func (d *Dispatcher) Run() error {
	for {
		req, err := d.endpoint.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		d.admit(req)
	}
}

// admit stats the requested pathname and hands the result to the
// coalescer, logging and dropping the request if admission itself fails
// (e.g. the coalescer has begun shutting down and a client raced the
// shutdown signal).
func (d *Dispatcher) admit(req wire.Request) {
	var report reqtrace.ReportFunc
	if tracingEnabled() && reqtrace.Enabled() {
		_, report = reqtrace.StartSpan(context.Background(), "admit "+req.Path())
	}

	pathname := req.Path()

	var deferredErr wire.Errno
	mtime, size, statErr := d.statter.Stat(pathname)
	if statErr != nil {
		deferredErr = wire.ErrStat
	}

	getLogger().Printf("received request for %s from client %d", pathname, req.ClientPID)

	_, ok := d.coalescer.Admit(pathname, mtime, size, deferredErr, req.ClientPID)
	if !ok {
		getLogger().Printf("dropped request for %s from client %d: shutting down", pathname, req.ClientPID)
	}

	if report != nil {
		report(nil)
	}
}
