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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRecord_PlacesFixedSizeRecords(t *testing.T) {
	fs := NewMemoryFS()
	b := NewBackend(fs)

	require.NoError(t, b.WriteRecord(DirConfig, "gather_dma_0", 0, 16, []byte{0xaa}))
	require.NoError(t, b.WriteRecord(DirConfig, "gather_dma_0", 2, 16, []byte{0xbb, 0xcc}))

	raw := fs.Snapshot("config_bin/gather_dma_0")
	require.Len(t, raw, 48)
	assert.EqualValues(t, 0xaa, raw[0])
	assert.EqualValues(t, 0x00, raw[16], "unwritten record stays zeroed")
	assert.EqualValues(t, 0xbb, raw[32])

	rec, err := b.ReadRecord(DirConfig, "gather_dma_0", 2, 16)
	require.NoError(t, err)
	assert.EqualValues(t, 0xbb, rec[0])
	assert.EqualValues(t, 0xcc, rec[1])
}

func TestWriteRecord_RejectsOversizedPayload(t *testing.T) {
	b := NewBackend(NewMemoryFS())
	err := b.WriteRecord(DirConfig, "gather_dma_0", 0, 4, []byte{1, 2, 3, 4, 5})
	require.Error(t, err)
}

func TestScalarRoundTrip(t *testing.T) {
	b := NewBackend(NewMemoryFS())

	require.NoError(t, b.WriteScalar(DirConfig, "configuration_id", 7))
	v, err := b.ReadScalar(DirConfig, "configuration_id")
	require.NoError(t, err)
	assert.EqualValues(t, 7, v)
}

func TestReadScalar_TrimsTrailingNewline(t *testing.T) {
	fs := NewMemoryFS()
	b := NewBackend(fs)

	// Sysfs scalar files usually end in a newline.
	require.NoError(t, fs.WriteString("status/msgbuf_count", "32\n"))
	v, err := b.ReadScalar(DirStatus, "msgbuf_count")
	require.NoError(t, err)
	assert.EqualValues(t, 32, v)
}

func TestReadScalar_MissingFile(t *testing.T) {
	b := NewBackend(NewMemoryFS())
	_, err := b.ReadScalar(DirStatus, "missing")
	require.Error(t, err)
}

func TestSysfsFS_RoundTrip(t *testing.T) {
	fs := NewSysfsFS(t.TempDir())

	require.NoError(t, fs.WriteAt("config_bin/const_buffer", 4, []byte{1, 2, 3}))
	got, err := fs.ReadAt("config_bin/const_buffer", 4, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	require.NoError(t, fs.WriteString("status/device_id", "4660"))
	s, err := fs.ReadString("status/device_id")
	require.NoError(t, err)
	assert.Equal(t, "4660", s)
}
