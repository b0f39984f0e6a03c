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

package statter

import (
	"runtime"
	"time"
	"unsafe"

	"github.com/jacobsa/oglemock"
)

// MockStatter is a hand-written stand-in for what `createmock` would
// otherwise generate for the Statter interface. It exists so that
// dispatcher tests can force a STAT failure deterministically, without
// depending on the real filesystem returning ENOENT in a racy way.
type MockStatter struct {
	controller  oglemock.Controller
	description string
}

// NewMockStatter creates a mock registered with the given controller.
func NewMockStatter(c oglemock.Controller, desc string) *MockStatter {
	return &MockStatter{controller: c, description: desc}
}

func (m *MockStatter) Oglemock_Id() uintptr {
	return uintptr(unsafe.Pointer(m))
}

func (m *MockStatter) Oglemock_Description() string {
	return m.description
}

func (m *MockStatter) Stat(pathname string) (mtime time.Time, size int64, err error) {
	_, file, line, _ := runtime.Caller(1)

	ret := m.controller.HandleMethodCall(
		m,
		"Stat",
		file,
		line,
		[]interface{}{pathname})

	if len(ret) != 3 {
		panic("MockStatter.Stat: expected 3 return values")
	}

	if ret[0] != nil {
		mtime = ret[0].(time.Time)
	}

	if ret[1] != nil {
		size = ret[1].(int64)
	}

	if ret[2] != nil {
		err = ret[2].(error)
	}

	return
}
