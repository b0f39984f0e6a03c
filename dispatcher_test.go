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
	"errors"
	"testing"
	"time"

	"github.com/bitsarebits/sha256fifod/internal/statter"
	"github.com/bitsarebits/sha256fifod/wire"
	"github.com/jacobsa/oglemock"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
)

func TestDispatcher(t *testing.T) { RunTests(t) }

type DispatcherTest struct {
	coalescer   *Coalescer
	mockCtrl    oglemock.Controller
	mockStatter *statter.MockStatter
	dispatcher  *Dispatcher
}

func init() { RegisterTestSuite(&DispatcherTest{}) }

func (t *DispatcherTest) SetUp(ti *TestInfo) {
	t.coalescer = NewCoalescer()
	t.mockCtrl = ti.MockController
	t.mockStatter = statter.NewMockStatter(t.mockCtrl, "statter")
	t.dispatcher = NewDispatcher(nil, t.coalescer, t.mockStatter)
}

func (t *DispatcherTest) admit(clientPID int32, pathname string) {
	req, err := wire.NewRequest(clientPID, pathname)
	AssertEq(nil, err)
	t.dispatcher.admit(req)
}

func (t *DispatcherTest) AdmitsSuccessfullyStatedFileAsOK() {
	mtime := time.Unix(1234, 0)
	oglemock.ExpectCall(t.mockStatter, "Stat")(Any()).
		WillOnce(oglemock.Return(mtime, int64(42), nil))

	t.admit(111, "/a")

	item, ok := t.coalescer.Take()
	AssertTrue(ok)
	ExpectEq("/a", item.Pathname)
	ExpectEq(wire.OK, item.DeferredErr)
	ExpectTrue(item.Mtime.Equal(mtime))
	ExpectEq(int64(42), item.Size)
	ExpectThat(item.Clients(), ElementsAre(111))
}

func (t *DispatcherTest) AdmitMarksStatFailureAsDeferredErrStat() {
	oglemock.ExpectCall(t.mockStatter, "Stat")(Any()).
		WillOnce(oglemock.Return(time.Time{}, int64(0), errors.New("boom")))

	t.admit(222, "/missing")

	item, ok := t.coalescer.Take()
	AssertTrue(ok)
	ExpectEq(wire.ErrStat, item.DeferredErr)
}

func (t *DispatcherTest) AdmitAfterShutdownIsDroppedSilently() {
	t.coalescer.Shutdown()

	oglemock.ExpectCall(t.mockStatter, "Stat")(Any()).
		WillOnce(oglemock.Return(time.Unix(1, 0), int64(1), nil))

	// admit must not panic even though the coalescer refuses the work.
	t.admit(333, "/a")

	_, ok := t.coalescer.Take()
	ExpectFalse(ok)
}
