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

// TestApplyConfig_MinimalEgressSingleInsert drives the smallest
// useful configuration end to end: one module, one time-triggered
// stream, a single Insert.
func TestApplyConfig_MinimalEgressSingleInsert(t *testing.T) {
	ctx := NewMemoryDeviceContext()
	cfg := NewConfiguration(ctx)

	m, err := NewModule(ConnParallel, Speed1Gbps, Module0)
	require.NoError(t, err)
	require.NoError(t, m.SetSchedule(1_000_000, timeZero))

	s, err := NewTimeTriggeredStream(testDMAC, testSMAC, 100, 3)
	require.NoError(t, err)
	op, err := NewInsertOperation(60, "acm_tx_main")
	require.NoError(t, err)
	require.NoError(t, s.AddOperation(op))
	sch, err := NewEventSchedule(1_000_000, 500_000)
	require.NoError(t, err)
	require.NoError(t, s.AddSchedule(sch))

	require.NoError(t, m.AddStream(s))
	require.NoError(t, cfg.AddModule(m))
	require.NoError(t, cfg.ApplyConfig(7))

	id, err := cfg.ReadConfigIdentifier()
	require.NoError(t, err)
	assert.Equal(t, uint32(7), id)

	buffers := cfg.MessageBuffers()
	require.Len(t, buffers, 1)
	assert.Equal(t, 0, buffers[0].Index)
	assert.Equal(t, DirTX, buffers[0].Direction)
	assert.Equal(t, ceilDiv(60, blockGranularity), buffers[0].SizeInBlocks)
	assert.Equal(t, "acm_tx_main", buffers[0].Name)

	fsc := m.FSCList()
	require.Len(t, fsc, 1)
}

// TestApplySchedule_IDMismatchLeavesConfigUntouched checks the
// compare-and-set contract: a stale expected id aborts before any
// device write.
func TestApplySchedule_IDMismatchLeavesConfigUntouched(t *testing.T) {
	ctx := NewMemoryDeviceContext()
	cfg := NewConfiguration(ctx)

	m, err := NewModule(ConnParallel, Speed1Gbps, Module0)
	require.NoError(t, err)
	require.NoError(t, m.SetSchedule(1_000_000, timeZero))

	s, err := NewTimeTriggeredStream(testDMAC, testSMAC, 100, 3)
	require.NoError(t, err)
	op, err := NewInsertOperation(60, "acm_tx_main")
	require.NoError(t, err)
	require.NoError(t, s.AddOperation(op))
	sch, err := NewEventSchedule(1_000_000, 500_000)
	require.NoError(t, err)
	require.NoError(t, s.AddSchedule(sch))
	require.NoError(t, m.AddStream(s))
	require.NoError(t, cfg.AddModule(m))
	require.NoError(t, cfg.ApplyConfig(7))

	err = cfg.ApplySchedule(8, 9)
	require.Error(t, err)
	assert.Equal(t, InvalidArgument, CodeOf(err))

	id, err := cfg.ReadConfigIdentifier()
	require.NoError(t, err)
	assert.Equal(t, uint32(7), id)
}

// TestRedundantPairAcrossModules links two time-triggered streams on
// different modules into a redundant pair.
func TestRedundantPairAcrossModules(t *testing.T) {
	ctx := NewMemoryDeviceContext()
	cfg := NewConfiguration(ctx)

	m0, err := NewModule(ConnParallel, Speed1Gbps, Module0)
	require.NoError(t, err)
	require.NoError(t, m0.SetSchedule(2_000_000, timeZero))
	m1, err := NewModule(ConnParallel, Speed1Gbps, Module1)
	require.NoError(t, err)
	require.NoError(t, m1.SetSchedule(2_000_000, timeZero))

	a, err := NewTimeTriggeredStream(testDMAC, testSMAC, 0, 0)
	require.NoError(t, err)
	schA, _ := NewEventSchedule(2_000_000, 1_000_000)
	require.NoError(t, a.AddSchedule(schA))

	b, err := NewTimeTriggeredStream(testDMAC, testSMAC, 0, 0)
	require.NoError(t, err)
	schB, _ := NewEventSchedule(2_000_000, 1_000_000)
	require.NoError(t, b.AddSchedule(schB))

	require.NoError(t, SetReference(a, b))
	assert.Equal(t, VariantRedundantTx, a.Variant)
	assert.Equal(t, VariantRedundantTx, b.Variant)

	require.NoError(t, m0.AddStream(a))
	require.NoError(t, m1.AddStream(b))
	require.NoError(t, cfg.AddModule(m0))
	require.NoError(t, cfg.AddModule(m1))

	assert.True(t, a.redundantIndex > 0)
	assert.Equal(t, a.redundantIndex, b.redundantIndex)
}

// TestApplyConfig_IngressEventRecoveryChain applies a full
// ingress-to-event-to-recovery chain and checks that the window-close
// command carries the first-stage trigger and the
// chained Recovery stream's gather index; the open command does not
// trigger anything.
func TestApplyConfig_IngressEventRecoveryChain(t *testing.T) {
	ctx := NewMemoryDeviceContext()
	cfg := NewConfiguration(ctx)

	m, err := NewModule(ConnParallel, Speed1Gbps, Module0)
	require.NoError(t, err)
	require.NoError(t, m.SetSchedule(1_000_000, timeZero))

	var hp, hm [16]byte
	for i := 0; i < 6; i++ {
		hm[i] = 0xff
	}
	ingress, err := NewIngressTriggeredStream(hp, hm, nil, nil, 0)
	require.NoError(t, err)
	readOp, err := NewReadOperation(20, 8, "acm_rx")
	require.NoError(t, err)
	require.NoError(t, ingress.AddOperation(readOp))
	win, err := NewWindowSchedule(1_000_000, 100_000, 400_000)
	require.NoError(t, err)
	require.NoError(t, ingress.AddSchedule(win))

	event, err := NewEventStream(testDMAC, testSMAC, 0, 0)
	require.NoError(t, err)
	fwd, err := NewForwardOperation(0, 40)
	require.NoError(t, err)
	require.NoError(t, event.AddOperation(fwd))
	ins, err := NewInsertOperation(10, "acm_aux")
	require.NoError(t, err)
	require.NoError(t, event.AddOperation(ins))

	recovery, err := NewRecoveryStream(testDMAC, testSMAC, 0, 0)
	require.NoError(t, err)
	pad, err := NewPadOperation(50, 0)
	require.NoError(t, err)
	require.NoError(t, recovery.AddOperation(pad))

	require.NoError(t, SetReference(ingress, event))
	require.NoError(t, SetReference(event, recovery))
	require.NoError(t, m.AddStream(ingress))
	require.NoError(t, cfg.AddModule(m))
	require.NoError(t, cfg.ApplyConfig(3))

	var open, closeCmd *fscCommand
	for _, c := range m.FSCList() {
		if c.winOpen {
			open = c
		}
		if c.winClose {
			closeCmd = c
		}
	}
	require.NotNil(t, open)
	require.NotNil(t, closeCmd)
	assert.Equal(t, TriggerNoTrigger, open.trigger)
	assert.Equal(t, TriggerFirstStage, closeCmd.trigger)
	assert.True(t, recovery.gatherDMAIndex > 0)
	assert.Equal(t, recovery.gatherDMAIndex, closeCmd.gatherIndex)
}

func TestSetReference_RedundantPairDifferentModulesSameModuleFails(t *testing.T) {
	m, err := NewModule(ConnParallel, Speed1Gbps, Module0)
	require.NoError(t, err)
	require.NoError(t, m.SetSchedule(2_000_000, timeZero))

	a, _ := NewTimeTriggeredStream(testDMAC, testSMAC, 0, 0)
	schA, _ := NewEventSchedule(2_000_000, 1_000_000)
	require.NoError(t, a.AddSchedule(schA))
	b, _ := NewTimeTriggeredStream(testDMAC, testSMAC, 0, 0)
	schB, _ := NewEventSchedule(2_000_000, 1_000_000)
	require.NoError(t, b.AddSchedule(schB))

	require.NoError(t, m.AddStream(a))
	require.NoError(t, m.AddStream(b))

	err = SetReference(a, b)
	require.Error(t, err)
	assert.Equal(t, RedundantSameModule, CodeOf(err))
}
