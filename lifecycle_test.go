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

package sha256fifod_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bitsarebits/sha256fifod/fifotesting"
	"github.com/bitsarebits/sha256fifod/wire"
)

const fiveSeconds = 5 * time.Second

func TestEndToEndCorrectness(t *testing.T) {
	dir := t.TempDir()
	h, err := fifotesting.Start(dir, 2)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.Stop()

	cases := []struct {
		name    string
		content []byte
		want    string
	}{
		{"empty", nil, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"one_byte", []byte("a"), "ca978112ca1bbdcafac231b39a23dc4da786eff8147c4e72b9807785afee48bb"},
		{"three_byte", []byte("abc"), "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}

	for i, c := range cases {
		pathname := filepath.Join(dir, c.name)
		if err := os.WriteFile(pathname, c.content, 0o644); err != nil {
			t.Fatal(err)
		}

		resp, err := h.Digest(int32(1000+i), pathname, fiveSeconds)
		if err != nil {
			t.Fatalf("Digest(%s): %v", c.name, err)
		}
		if resp.ErrCode != wire.OK {
			t.Fatalf("Digest(%s): got ErrCode %v, want OK", c.name, resp.ErrCode)
		}
		if got := resp.HexDigest(); got != c.want {
			t.Errorf("Digest(%s): got %s, want %s", c.name, got, c.want)
		}
	}
}

func TestNonexistentPathnameReportsErrStat(t *testing.T) {
	dir := t.TempDir()
	h, err := fifotesting.Start(dir, 1)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.Stop()

	resp, err := h.Digest(2000, filepath.Join(dir, "does-not-exist"), fiveSeconds)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if resp.ErrCode != wire.ErrStat {
		t.Errorf("got ErrCode %v, want ErrStat", resp.ErrCode)
	}
}

func TestMtimeSensitivity(t *testing.T) {
	dir := t.TempDir()
	h, err := fifotesting.Start(dir, 1)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.Stop()

	pathname := filepath.Join(dir, "f")
	if err := os.WriteFile(pathname, []byte("version one"), 0o644); err != nil {
		t.Fatal(err)
	}

	resp1, err := h.Digest(3000, pathname, fiveSeconds)
	if err != nil {
		t.Fatalf("Digest (v1): %v", err)
	}

	// Force a distinct mtime, in case the filesystem clock has coarse
	// resolution, then rewrite the file with different content.
	later := time.Now().Add(2 * time.Second)
	if err := os.WriteFile(pathname, []byte("version two, longer"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(pathname, later, later); err != nil {
		t.Fatal(err)
	}

	resp2, err := h.Digest(3001, pathname, fiveSeconds)
	if err != nil {
		t.Fatalf("Digest (v2): %v", err)
	}

	if resp1.HexDigest() == resp2.HexDigest() {
		t.Errorf("digest did not change after rewriting the file with a new mtime")
	}
}

func TestIdempotenceIsACacheHitOnSecondRequest(t *testing.T) {
	dir := t.TempDir()
	h, err := fifotesting.Start(dir, 1)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.Stop()

	pathname := filepath.Join(dir, "f")
	if err := os.WriteFile(pathname, []byte("stable content"), 0o644); err != nil {
		t.Fatal(err)
	}

	resp1, err := h.Digest(4000, pathname, fiveSeconds)
	if err != nil {
		t.Fatalf("Digest #1: %v", err)
	}
	resp2, err := h.Digest(4001, pathname, fiveSeconds)
	if err != nil {
		t.Fatalf("Digest #2: %v", err)
	}

	if resp1.HexDigest() != resp2.HexDigest() {
		t.Fatalf("got divergent digests across identical requests")
	}
	if got := h.Stats().CacheMisses(); got != 1 {
		t.Errorf("got %d cache misses, want 1 (second request should hit)", got)
	}
	if got := h.Stats().CacheHits(); got != 1 {
		t.Errorf("got %d cache hits, want 1", got)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	h, err := fifotesting.Start(dir, 1)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	h.Stop()

	// A second Stop must not panic or block.
	h.Stop()
}
