// Copyright 2026 The ACM Config Authors
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

package acm

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Context scopes a single build: it hands out stable identities for log
// correlation and owns the device backend every Configuration under it
// writes through. There is no cancellation machinery; builds are
// synchronous and single-writer.
type Context struct {
	// BuildID correlates every log line and table write produced while
	// this Context is in use. It is never part of the wire protocol;
	// config-id (a caller-chosen nonzero uint32) is the on-device token.
	BuildID uuid.UUID

	device deviceBackend
	nextID uint64
}

// NewContext creates a build context bound to the given device backend.
// A nil backend is replaced with one rooted at the default sysfs path.
func NewContext(dev deviceBackend) *Context {
	if dev == nil {
		dev = newSysfsBackend(defaultDeviceRoot)
	}
	return &Context{
		BuildID: uuid.New(),
		device:  dev,
	}
}

func (c *Context) nextIdentity() uint64 {
	return atomic.AddUint64(&c.nextID, 1)
}

// globalIDCounter backs the stable, GC-safe identity each stream
// carries. Ordinary pointers carry ownership; the id exists only so
// log lines can name an entity without leaking a pointer value.
var globalIDCounter uint64

func nextGlobalID() uint64 {
	return atomic.AddUint64(&globalIDCounter, 1)
}

// listLock is the advisory, coarse-grained lock embedded in every
// list-bearing type: held across a whole traversal or mutation, not
// just a single slice access, so a status read never observes a half
// finished structural change.
type listLock struct {
	mu sync.Mutex
}

func (l *listLock) Lock()   { l.mu.Lock() }
func (l *listLock) Unlock() { l.mu.Unlock() }
