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
	"os"
	"path/filepath"
)

// SysfsFS is the real on-disk implementation of FS, rooted at a
// directory that defaults to /sys/devices/acm but is overridable for
// testing against a scratch directory laid out the same way.
type SysfsFS struct {
	Root string
}

// NewSysfsFS returns an FS rooted at root. Intermediate directories
// are created lazily on first write.
func NewSysfsFS(root string) *SysfsFS {
	return &SysfsFS{Root: root}
}

func (s *SysfsFS) path(p string) string {
	return filepath.Join(s.Root, filepath.FromSlash(p))
}

func (s *SysfsFS) WriteAt(path string, offset int64, data []byte) error {
	full := s.path(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteAt(data, offset)
	return err
}

func (s *SysfsFS) ReadAt(path string, offset int64, length int) ([]byte, error) {
	f, err := os.Open(s.path(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if n < length {
		// Partial/short reads surface as-is; callers (e.g. the
		// diagnostic counter reader) decide whether a short read is
		// a hard failure or the one documented null-on-short-read path.
		return buf[:n], err
	}
	return buf, nil
}

func (s *SysfsFS) WriteString(path string, value string) error {
	full := s.path(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, []byte(value), 0o644)
}

func (s *SysfsFS) ReadString(path string) (string, error) {
	b, err := os.ReadFile(s.path(path))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
