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
	"testing"
	"time"

	. "github.com/jacobsa/ogletest"
)

func TestCache(t *testing.T) { RunTests(t) }

type CacheTest struct {
	c *Cache
}

func init() { RegisterTestSuite(&CacheTest{}) }

func (t *CacheTest) SetUp(ti *TestInfo) {
	t.c = NewCache(4)
}

func (t *CacheTest) LookupMissesOnEmptyCache() {
	_, ok := t.c.Lookup("/a", time.Unix(1, 0))
	ExpectFalse(ok)
}

func (t *CacheTest) InsertThenLookupHits() {
	mtime := time.Unix(1000, 0)
	var digest [32]byte
	digest[0] = 0xab

	t.c.Insert("/a", mtime, digest)

	got, ok := t.c.Lookup("/a", mtime)
	AssertTrue(ok)
	ExpectEq(digest, got)
}

func (t *CacheTest) DifferentMtimeIsAMiss() {
	var digest [32]byte
	t.c.Insert("/a", time.Unix(1000, 0), digest)

	_, ok := t.c.Lookup("/a", time.Unix(2000, 0))
	ExpectFalse(ok)
}

func (t *CacheTest) DifferentPathIsAMiss() {
	var digest [32]byte
	mtime := time.Unix(1000, 0)
	t.c.Insert("/a", mtime, digest)

	_, ok := t.c.Lookup("/b", mtime)
	ExpectFalse(ok)
}

func (t *CacheTest) ManyEntriesSurviveCollisions() {
	mtime := time.Unix(1000, 0)
	paths := []string{"/a", "/b", "/c", "/d", "/e", "/f", "/g", "/h"}

	for i, p := range paths {
		var digest [32]byte
		digest[0] = byte(i)
		t.c.Insert(p, mtime, digest)
	}

	for i, p := range paths {
		got, ok := t.c.Lookup(p, mtime)
		AssertTrue(ok)
		ExpectEq(byte(i), got[0])
	}
}
