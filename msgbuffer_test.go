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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateMessageBuffers_ReusesSameNameSameDirection(t *testing.T) {
	ctx := NewMemoryDeviceContext()
	cfg := NewConfiguration(ctx)

	m, err := NewModule(ConnParallel, Speed1Gbps, Module0)
	require.NoError(t, err)
	require.NoError(t, m.SetSchedule(1_000_000, timeZero))

	s1, err := NewTimeTriggeredStream(testDMAC, testSMAC, 0, 0)
	require.NoError(t, err)
	op1, err := NewInsertOperation(60, "acm_shared")
	require.NoError(t, err)
	require.NoError(t, s1.AddOperation(op1))
	sch1, _ := NewEventSchedule(1_000_000, 100_000)
	require.NoError(t, s1.AddSchedule(sch1))

	s2, err := NewTimeTriggeredStream(testDMAC, testSMAC, 0, 0)
	require.NoError(t, err)
	op2, err := NewInsertOperation(100, "acm_shared")
	require.NoError(t, err)
	require.NoError(t, s2.AddOperation(op2))
	sch2, _ := NewEventSchedule(1_000_000, 200_000)
	require.NoError(t, s2.AddSchedule(sch2))

	require.NoError(t, m.AddStream(s1))
	require.NoError(t, m.AddStream(s2))
	require.NoError(t, cfg.AddModule(m))

	require.NoError(t, allocateMessageBuffers(cfg))
	require.Len(t, cfg.buffers, 1)
	assert.Same(t, op1.msgBuf, op2.msgBuf)
	assert.Equal(t, ceilDiv(100, blockGranularity), cfg.buffers[0].SizeInBlocks)
}

func TestAllocateMessageBuffers_ConflictingDirectionFails(t *testing.T) {
	ctx := NewMemoryDeviceContext()
	cfg := NewConfiguration(ctx)

	m, err := NewModule(ConnParallel, Speed1Gbps, Module0)
	require.NoError(t, err)
	require.NoError(t, m.SetSchedule(1_000_000, timeZero))

	tx, err := NewTimeTriggeredStream(testDMAC, testSMAC, 0, 0)
	require.NoError(t, err)
	insOp, err := NewInsertOperation(60, "acm_dup")
	require.NoError(t, err)
	require.NoError(t, tx.AddOperation(insOp))
	sch, _ := NewEventSchedule(1_000_000, 100_000)
	require.NoError(t, tx.AddSchedule(sch))
	require.NoError(t, m.AddStream(tx))

	var hp, hm [16]byte
	rx, err := NewIngressTriggeredStream(hp, hm, nil, nil, 0)
	require.NoError(t, err)
	readOp, err := NewReadOperation(0, 8, "acm_dup")
	require.NoError(t, err)
	require.NoError(t, rx.AddOperation(readOp))
	win, _ := NewWindowSchedule(1_000_000, 0, 100_000)
	require.NoError(t, rx.AddSchedule(win))
	require.NoError(t, m.AddStream(rx))

	require.NoError(t, cfg.AddModule(m))

	err = allocateMessageBuffers(cfg)
	require.Error(t, err)
	assert.Equal(t, PermissionDenied, CodeOf(err))
}
