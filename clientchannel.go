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
	"fmt"
	"path/filepath"
)

// clientFIFOBaseName is the prefix shared by every per-client return FIFO,
// completed with the client's decimal pid: the same prefix-plus-pid scheme
// the reference client and server use, with a lowercase prefix.
const clientFIFOBaseName = "fifo_client_sha256."

// ClientFIFOPath returns the path of the per-client return FIFO for the
// given rendezvous directory and client pid. Both the client (which
// creates this FIFO before sending its request) and the server (which
// opens it to deliver the response) must agree on this naming scheme.
func ClientFIFOPath(dir string, clientPID int32) string {
	return filepath.Join(dir, fmt.Sprintf("%s%d", clientFIFOBaseName, clientPID))
}
