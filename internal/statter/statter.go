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

// Package statter isolates the one syscall admission needs (stat) behind
// a narrow interface, so admission-time failures can be injected in tests
// without touching the real filesystem.
package statter

import (
	"os"
	"time"
)

// Statter knows how to retrieve the two pieces of file metadata the
// coalescer's admission algorithm needs.
type Statter interface {
	// Stat returns the file's modification time and size, or a non-nil err
	// if the file could not be stat'd.
	Stat(pathname string) (mtime time.Time, size int64, err error)
}

type osStatter struct{}

// New returns a Statter backed by os.Stat.
func New() Statter {
	return osStatter{}
}

func (osStatter) Stat(pathname string) (mtime time.Time, size int64, err error) {
	fi, err := os.Stat(pathname)
	if err != nil {
		return time.Time{}, 0, err
	}

	return fi.ModTime(), fi.Size(), nil
}
