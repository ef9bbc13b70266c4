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

package device

import (
	"fmt"
	"sync"
)

// MemoryFS is an in-memory FS used by tests in place of a real sysfs
// tree: a deterministic, disk-free device backend with the same call
// shape as production.
type MemoryFS struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMemoryFS returns an empty in-memory device tree.
func NewMemoryFS() *MemoryFS {
	return &MemoryFS{files: map[string][]byte{}}
}

func (m *MemoryFS) WriteAt(path string, offset int64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := m.files[path]
	need := int(offset) + len(data)
	if need > len(buf) {
		grown := make([]byte, need)
		copy(grown, buf)
		buf = grown
	}
	copy(buf[offset:], data)
	m.files[path] = buf
	return nil
}

func (m *MemoryFS) ReadAt(path string, offset int64, length int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("device: %s: no such file", path)
	}
	end := int(offset) + length
	if end > len(buf) {
		end = len(buf)
	}
	if int(offset) > len(buf) {
		return nil, nil
	}
	out := make([]byte, length)
	copy(out, buf[offset:end])
	return out, nil
}

func (m *MemoryFS) WriteString(path string, value string) error {
	return m.WriteAt(path, 0, []byte(value))
}

func (m *MemoryFS) ReadString(path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf, ok := m.files[path]
	if !ok {
		return "", fmt.Errorf("device: %s: no such file", path)
	}
	return string(buf), nil
}

// Snapshot returns the raw bytes written to path, for assertions in
// tests.
func (m *MemoryFS) Snapshot(path string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.files[path]...)
}
