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
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/STMicroelectronics/tttech-tsn-acm-content-sub001/device"
)

func memoryContext() (*Context, *device.MemoryFS) {
	fs := device.NewMemoryFS()
	return NewContext(&sysfsBackend{b: device.NewBackend(fs)}), fs
}

func record(raw []byte, index int) []byte {
	return raw[index*recordSizeSmall : (index+1)*recordSizeSmall]
}

// TestWriteGatherAndPrefetch_RedundantStreamLayout applies a redundant
// TX pair and checks the gather table layout: NOP, forward-all, the
// three header operations, the R-Tag command directly after them, then
// the user Insert; the prefetch table carries a dual-lock command ahead
// of the Insert's move-from-message-buffer command.
func TestWriteGatherAndPrefetch_RedundantStreamLayout(t *testing.T) {
	ctx, fs := memoryContext()
	cfg := NewConfiguration(ctx)

	mkModule := func(id ModuleID) *Module {
		m, err := NewModule(ConnParallel, Speed1Gbps, id)
		require.NoError(t, err)
		require.NoError(t, m.SetSchedule(1_000_000, timeZero))
		return m
	}
	mkStream := func() *Stream {
		s, err := NewTimeTriggeredStream(testDMAC, testSMAC, 100, 3)
		require.NoError(t, err)
		op, err := NewInsertOperation(60, "acm_red")
		require.NoError(t, err)
		require.NoError(t, s.AddOperation(op))
		sch, err := NewEventSchedule(1_000_000, 500_000)
		require.NoError(t, err)
		require.NoError(t, s.AddSchedule(sch))
		return s
	}

	m0, m1 := mkModule(Module0), mkModule(Module1)
	a, b := mkStream(), mkStream()
	require.NoError(t, m0.AddStream(a))
	require.NoError(t, m1.AddStream(b))
	require.NoError(t, SetReference(a, b))
	require.NoError(t, cfg.AddModule(m0))
	require.NoError(t, cfg.AddModule(m1))
	require.NoError(t, cfg.ApplyConfig(5))

	gather := fs.Snapshot("config_bin/gather_dma_0")
	require.GreaterOrEqual(t, len(gather), 7*recordSizeSmall)
	assert.EqualValues(t, gatherKindNOP, record(gather, 0)[0])
	assert.EqualValues(t, gatherKindForwardAll, record(gather, 1)[0])
	for i := 2; i <= 4; i++ {
		assert.EqualValues(t, gatherKindOperation, record(gather, i)[0])
		assert.EqualValues(t, OpInsertConstant, record(gather, i)[1])
	}
	assert.EqualValues(t, gatherKindRTag, record(gather, 5)[0])
	assert.EqualValues(t, gatherKindOperation, record(gather, 6)[0])
	assert.EqualValues(t, OpInsert, record(gather, 6)[1])

	prefetch := fs.Snapshot("config_bin/prefetch_dma_0")
	require.GreaterOrEqual(t, len(prefetch), 4*recordSizeSmall)
	lock := record(prefetch, 2)
	assert.EqualValues(t, prefetchKindLock, lock[0])
	assert.EqualValues(t, 0, lock[1], "lock vector field 0 covers buffer index 0")
	assert.EqualValues(t, 1, lock[2], "redundant TX uses dual-lock")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(lock[3:5]))
	move := record(prefetch, 3)
	assert.EqualValues(t, prefetchKindMoveFromMsgBuf, move[0])

	redund := fs.Snapshot("config_bin/redund_cnt_tab_0")
	require.GreaterOrEqual(t, len(redund), 2*recordSizeSmall)
	nop := record(redund, 0)
	assert.EqualValues(t, redundSrcIntSeqNum, nop[0])
	assert.EqualValues(t, redundUpdNop, nop[1])
	tx := record(redund, a.redundantIndex)
	assert.EqualValues(t, redundSrcIntSeqNum, tx[0])
	assert.EqualValues(t, redundUpdFinishBoth, tx[1])
	assert.EqualValues(t, 0, tx[2], "drop_no_rtag is a receive-only flag")
	assert.Equal(t, uint16(a.redundantIndex), binary.LittleEndian.Uint16(tx[3:5]))
}

// TestWriteLookupTables_ControlBlockBitmaps checks the lookup control
// block: lookup-enable and ingress-control bits per classified stream,
// layer-7 enable and max length only when a payload filter is bound.
func TestWriteLookupTables_ControlBlockBitmaps(t *testing.T) {
	ctx, fs := memoryContext()
	cfg := NewConfiguration(ctx)

	m, err := NewModule(ConnParallel, Speed1Gbps, Module0)
	require.NoError(t, err)
	require.NoError(t, m.SetSchedule(1_000_000, timeZero))

	var hp, hm [16]byte
	hm[0] = 0xff
	filter := []byte{0xde, 0xad}
	s, err := NewIngressTriggeredStream(hp, hm, filter, []byte{0xff, 0xff}, 2)
	require.NoError(t, err)
	readOp, err := NewReadOperation(20, 8, "acm_rx")
	require.NoError(t, err)
	require.NoError(t, s.AddOperation(readOp))
	win, err := NewWindowSchedule(1_000_000, 100_000, 400_000)
	require.NoError(t, err)
	require.NoError(t, s.AddSchedule(win))

	require.NoError(t, m.AddStream(s))
	require.NoError(t, cfg.AddModule(m))
	require.NoError(t, cfg.ApplyConfig(9))

	ctl := fs.Snapshot("config_bin/lookup_control_0")
	require.GreaterOrEqual(t, len(ctl), recordSizeSmall)
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(ctl[0:2]), "ingress control bit for the Read-carrying stream")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(ctl[2:4]), "lookup enable bit for slot 0")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(ctl[4:6]), "layer-7 enable bit for the filtered stream")
	assert.EqualValues(t, 2, ctl[6], "max layer-7 length")
}

func TestWriteScatterTable_NOPThenReadsWithLastFlag(t *testing.T) {
	ctx, fs := memoryContext()
	cfg := NewConfiguration(ctx)

	m, err := NewModule(ConnParallel, Speed1Gbps, Module0)
	require.NoError(t, err)
	require.NoError(t, m.SetSchedule(1_000_000, timeZero))

	var hp, hm [16]byte
	s, err := NewIngressTriggeredStream(hp, hm, nil, nil, 0)
	require.NoError(t, err)
	r1, err := NewReadOperation(0, 8, "acm_rx_a")
	require.NoError(t, err)
	require.NoError(t, s.AddOperation(r1))
	r2, err := NewReadOperation(16, 8, "acm_rx_b")
	require.NoError(t, err)
	require.NoError(t, s.AddOperation(r2))
	win, err := NewWindowSchedule(1_000_000, 0, 100_000)
	require.NoError(t, err)
	require.NoError(t, s.AddSchedule(win))

	require.NoError(t, m.AddStream(s))
	require.NoError(t, cfg.AddModule(m))
	require.NoError(t, cfg.ApplyConfig(2))

	scatter := fs.Snapshot("config_bin/scatter_dma_0")
	require.GreaterOrEqual(t, len(scatter), 3*recordSizeSmall)
	assert.EqualValues(t, scatterKindNOP, record(scatter, 0)[0])
	assert.EqualValues(t, scatterKindRead, record(scatter, 1)[0])
	assert.EqualValues(t, 0, record(scatter, 1)[5], "first Read is not last")
	assert.EqualValues(t, scatterKindRead, record(scatter, 2)[0])
	assert.EqualValues(t, 1, record(scatter, 2)[5], "final Read carries the last flag")
}
