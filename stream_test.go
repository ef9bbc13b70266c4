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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var timeZero = time.Unix(0, 0)

var testDMAC = [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
var testSMAC = [6]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

func TestNewTimeTriggeredStream_PreseedsHeaderOps(t *testing.T) {
	s, err := NewTimeTriggeredStream(testDMAC, testSMAC, 100, 3)
	require.NoError(t, err)
	ops := s.Operations()
	require.Len(t, ops, 3)
	for _, op := range ops {
		assert.True(t, op.generated)
	}
}

func TestCleanOperations_PreservesGeneratedOnly(t *testing.T) {
	s, err := NewTimeTriggeredStream(testDMAC, testSMAC, 100, 3)
	require.NoError(t, err)

	op, err := NewInsertOperation(60, "acm_tx_main")
	require.NoError(t, err)
	require.NoError(t, s.AddOperation(op))
	require.Len(t, s.Operations(), 4)

	s.CleanOperations()
	assert.Len(t, s.Operations(), 3)
}

func TestCleanOperations_IngressStreamEmpty(t *testing.T) {
	var hp, hm [16]byte
	s, err := NewIngressTriggeredStream(hp, hm, nil, nil, 0)
	require.NoError(t, err)

	op, err := NewReadOperation(0, 8, "acm_rx")
	require.NoError(t, err)
	require.NoError(t, s.AddOperation(op))

	s.CleanOperations()
	assert.Empty(t, s.Operations())
}

func TestAddOperation_RejectsWrongOpcodeForVariant(t *testing.T) {
	s, err := NewTimeTriggeredStream(testDMAC, testSMAC, 100, 3)
	require.NoError(t, err)

	before := len(s.Operations())
	op, err := NewForwardOperation(0, 10)
	require.NoError(t, err)
	err = s.AddOperation(op)
	require.Error(t, err)
	assert.Equal(t, InvalidArgument, CodeOf(err))
	assert.Equal(t, before, len(s.Operations()))
}

func TestSetReference_RedundantPairRelabelsBothSides(t *testing.T) {
	a, err := NewTimeTriggeredStream(testDMAC, testSMAC, 100, 3)
	require.NoError(t, err)
	b, err := NewTimeTriggeredStream(testDMAC, testSMAC, 100, 3)
	require.NoError(t, err)

	require.NoError(t, SetReference(a, b))
	assert.Equal(t, VariantRedundantTx, a.Variant)
	assert.Equal(t, VariantRedundantTx, b.Variant)
	assert.Same(t, b, a.referenceRedundant)
	assert.Same(t, a, b.referenceRedundant)
}

func TestSetReference_IngressToEventChain(t *testing.T) {
	var hp, hm [16]byte
	ingress, err := NewIngressTriggeredStream(hp, hm, nil, nil, 0)
	require.NoError(t, err)
	event, err := NewEventStream(testDMAC, testSMAC, 0, 0)
	require.NoError(t, err)

	require.NoError(t, SetReference(ingress, event))
	assert.Equal(t, VariantIngressTriggered, ingress.Variant)
	assert.Same(t, event, ingress.reference)
	assert.Same(t, ingress, event.referenceParent)
}

func TestAddSchedule_RejectsWrongVariant(t *testing.T) {
	event, err := NewEventStream(testDMAC, testSMAC, 0, 0)
	require.NoError(t, err)
	sch, err := NewEventSchedule(1_000_000, 0)
	require.NoError(t, err)
	err = event.AddSchedule(sch)
	require.Error(t, err)
	assert.Equal(t, PermissionDenied, CodeOf(err))

	tt, err := NewTimeTriggeredStream(testDMAC, testSMAC, 0, 0)
	require.NoError(t, err)
	win, err := NewWindowSchedule(1_000_000, 0, 500_000)
	require.NoError(t, err)
	err = tt.AddSchedule(win)
	require.Error(t, err)
	assert.Equal(t, PermissionDenied, CodeOf(err))
}

func TestSetRTag_ConvertsIngressToRedundantRx(t *testing.T) {
	var hp, hm [16]byte
	s, err := NewIngressTriggeredStream(hp, hm, nil, nil, 0)
	require.NoError(t, err)

	require.NoError(t, s.SetRTag(250_000_000))
	assert.Equal(t, VariantRedundantRx, s.Variant)
	assert.Equal(t, 250, s.indivRecovTimeoutMS)

	tt, err := NewTimeTriggeredStream(testDMAC, testSMAC, 0, 0)
	require.NoError(t, err)
	err = tt.SetRTag(250_000_000)
	require.Error(t, err)
	assert.Equal(t, PermissionDenied, CodeOf(err))
}

func TestDestroy_NoOpWhileOwned(t *testing.T) {
	m, err := NewModule(ConnParallel, Speed1Gbps, Module0)
	require.NoError(t, err)
	require.NoError(t, m.SetSchedule(1_000_000, timeZero))

	s, err := NewTimeTriggeredStream(testDMAC, testSMAC, 100, 3)
	require.NoError(t, err)
	sch, err := NewEventSchedule(1_000_000, 500_000)
	require.NoError(t, err)
	require.NoError(t, s.AddSchedule(sch))
	require.NoError(t, m.AddStream(s))

	s.Destroy()
	assert.Len(t, m.Streams(), 1, "destroying an owned stream has no effect")

	event, err := NewEventStream(testDMAC, testSMAC, 0, 0)
	require.NoError(t, err)
	var hp, hm [16]byte
	ingress, err := NewIngressTriggeredStream(hp, hm, nil, nil, 0)
	require.NoError(t, err)
	require.NoError(t, SetReference(ingress, event))

	event.Destroy()
	assert.Same(t, event, ingress.reference, "destroying a referenced Event has no effect")
}

func TestDestroy_RedundantPartnerReconverted(t *testing.T) {
	a, err := NewTimeTriggeredStream(testDMAC, testSMAC, 0, 0)
	require.NoError(t, err)
	b, err := NewTimeTriggeredStream(testDMAC, testSMAC, 0, 0)
	require.NoError(t, err)
	require.NoError(t, SetReference(a, b))
	require.Equal(t, VariantRedundantTx, b.Variant)

	a.Destroy()
	assert.Equal(t, VariantTimeTriggered, b.Variant)
	assert.Nil(t, b.referenceRedundant)
}

func TestSetReference_RejectsSameModuleRedundantPair(t *testing.T) {
	m, err := NewModule(ConnParallel, Speed1Gbps, Module0)
	require.NoError(t, err)
	require.NoError(t, m.SetSchedule(1_000_000, timeZero))

	a, _ := NewTimeTriggeredStream(testDMAC, testSMAC, 100, 3)
	b, _ := NewTimeTriggeredStream(testDMAC, testSMAC, 100, 3)
	sch, _ := NewEventSchedule(1_000_000, 500_000)
	require.NoError(t, a.AddSchedule(sch))
	sch2, _ := NewEventSchedule(1_000_000, 500_000)
	require.NoError(t, b.AddSchedule(sch2))

	require.NoError(t, m.AddStream(a))
	require.NoError(t, m.AddStream(b))

	err = SetReference(a, b)
	require.Error(t, err)
	assert.Equal(t, RedundantSameModule, CodeOf(err))
}
