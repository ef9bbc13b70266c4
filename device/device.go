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

// Package device implements the sysfs-style byte-addressable register
// file the hardware exposes at /sys/devices/acm: fixed-record
// pwrite/pread against config_bin/ and control_bin/ files, decimal
// scalar files under status/ and error/. It never interprets record
// contents; the acm package marshals/unmarshals table rows and hands
// this package plain bytes.
package device

import (
	"fmt"
	"strconv"
)

// FS is the minimal filesystem surface this package needs, satisfied
// by both the real on-disk tree and the in-memory test double. It is
// intentionally narrower than io/fs.FS because the device tree needs
// positional writes, which io/fs does not model.
type FS interface {
	WriteAt(path string, offset int64, data []byte) error
	ReadAt(path string, offset int64, length int) ([]byte, error)
	WriteString(path string, value string) error
	ReadString(path string) (string, error)
}

// Backend is the device interface named in the library's external
// interface section: a namespace rooted at a configurable directory
// with config_bin/, status/, control_bin/, error/, diag/
// subdirectories, each hardware table a fixed-layout binary file.
type Backend struct {
	fs FS
}

// NewBackend wraps fs as a Backend.
func NewBackend(fs FS) *Backend {
	return &Backend{fs: fs}
}

const (
	DirConfig  = "config_bin"
	DirStatus  = "status"
	DirControl = "control_bin"
	DirError   = "error"
	DirDiag    = "diag"
)

func join(dir, file string) string {
	return dir + "/" + file
}

// WriteRecord writes data at the fixed-size record index within file.
func (b *Backend) WriteRecord(dir, file string, index, recordSize int, data []byte) error {
	if len(data) > recordSize {
		return fmt.Errorf("device: record %d bytes exceeds fixed size %d for %s/%s", len(data), recordSize, dir, file)
	}
	buf := make([]byte, recordSize)
	copy(buf, data)
	return b.fs.WriteAt(join(dir, file), int64(index*recordSize), buf)
}

// ReadRecord reads the fixed-size record at index within file.
func (b *Backend) ReadRecord(dir, file string, index, recordSize int) ([]byte, error) {
	return b.fs.ReadAt(join(dir, file), int64(index*recordSize), recordSize)
}

// WriteScalar writes a decimal text value to a single-record
// scalar file (e.g. configuration_id, device_id).
func (b *Backend) WriteScalar(dir, file string, value uint64) error {
	return b.fs.WriteString(join(dir, file), strconv.FormatUint(value, 10))
}

// ReadScalar reads a decimal scalar file.
func (b *Backend) ReadScalar(dir, file string) (uint64, error) {
	s, err := b.fs.ReadString(join(dir, file))
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(trimNewline(s), 10, 64)
}

// WriteBytes writes raw bytes at the given byte offset of file (used for
// whole-table writes like the constant buffer and FSC schedule rows
// where the caller already knows the exact byte layout).
func (b *Backend) WriteBytes(dir, file string, offset int64, data []byte) error {
	return b.fs.WriteAt(join(dir, file), offset, data)
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
