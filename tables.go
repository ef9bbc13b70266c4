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

import "go.uber.org/zap"

// reassignModuleIndices re-derives gather/scatter/lookup indices for
// every stream of m: scatter 0 and gather {0,1} are reserved, stream
// ranges start after the reserved slots and insertion order is
// preserved. Each stream is given a range wide enough for
// every gather/scatter row its operations will emit, not a single
// shared slot, so consecutive streams' ranges never overlap.
func reassignModuleIndices(m *Module) {
	gather := 2
	scatter := 1
	lookupIdx := 0
	redund := 1

	for _, s := range m.Streams() {
		if w := scatterWidth(s); w > 0 {
			s.scatterDMAIndex = scatter
			scatter += w
		}
		if w := gatherWidth(s); w > 0 {
			s.gatherDMAIndex = gather
			gather += w
		}
		if s.Lookup != nil {
			s.Lookup.lookupIndex = lookupIdx
			lookupIdx++
		}
		if s.Variant == VariantRedundantTx || s.Variant == VariantRedundantRx {
			s.redundantIndex = redund
			redund++
		}
	}

	rewriteFSCIndices(m)
}

// scatterWidth is the number of scatter-table rows s's operations emit:
// one per Read.
func scatterWidth(s *Stream) int {
	n := 0
	for _, op := range s.Operations() {
		if op.Code == OpRead {
			n++
		}
	}
	return n
}

// gatherWidth is the number of gather-table rows s's operations emit:
// one per operation on an egress-capable stream, plus one more for the
// R-Tag command a RedundantTx stream emits right after its three
// header operations.
func gatherWidth(s *Stream) int {
	if !s.Variant.egressCapable() {
		return 0
	}
	n := len(s.Operations())
	if s.Variant == VariantRedundantTx {
		n++
	}
	return n
}

// rewriteFSCIndices late-binds each command's gather/scatter/lookup
// indices from its owning stream just before a table write would use
// them, so commands stay correct when streams are added or removed
// after generation.
func rewriteFSCIndices(m *Module) {
	for _, c := range m.FSCList() {
		if c.stream == nil {
			continue
		}
		if !c.winOpen && !c.winClose {
			c.gatherIndex = c.stream.gatherDMAIndex
			c.redundIndex = c.stream.redundantIndex
			continue
		}
		if c.stream.Lookup != nil {
			c.scatterLookup = c.stream.Lookup.lookupIndex
		}
		if c.winClose {
			if rec := chainedRecovery(c.stream); rec != nil {
				c.gatherIndex = rec.gatherDMAIndex
			}
		}
	}
}

// allocateMessageBuffers walks modules/streams/operations in order,
// building the configuration's message-buffer descriptor list with
// name-based de-duplication.
func allocateMessageBuffers(c *Configuration) error {
	c.buffers = nil
	nextOffset := 0

	byName := map[string]*MessageBuffer{}

	for _, m := range c.modulesInOrder() {
		for _, s := range m.Streams() {
			for _, op := range s.Operations() {
				if op.Code != OpRead && op.Code != OpInsert {
					continue
				}
				dir := DirTX
				length := op.Length
				if op.Code == OpRead {
					dir = DirRX
					length += readTimestampBytes
				}
				sizeBlocks := ceilDiv(length, blockGranularity)

				if existing, ok := byName[op.BufferName]; ok {
					if existing.Direction != dir {
						return newErr("allocate_message_buffers", PermissionDenied)
					}
					if sizeBlocks > existing.SizeInBlocks {
						delta := sizeBlocks - existing.SizeInBlocks
						existing.SizeInBlocks = sizeBlocks
						shiftLaterOffsets(c.buffers, existing, delta)
					}
					op.msgBuf = existing
					continue
				}

				mb := newMessageBuffer(len(c.buffers), nextOffset, dir, sizeBlocks, op.BufferName)
				c.buffers = append(c.buffers, mb)
				byName[op.BufferName] = mb
				op.msgBuf = mb
				nextOffset += sizeBlocks
			}
		}
	}

	if len(c.buffers) > maxMessageBuffers {
		return newErr("allocate_message_buffers", TooManyMessageBuffers)
	}
	if (nextOffset+1)*blockGranularity >= c.device().bufferMemoryBytes() {
		return newErr("allocate_message_buffers", TooManyMessageBuffers)
	}
	return nil
}

func shiftLaterOffsets(buffers []*MessageBuffer, grown *MessageBuffer, delta int) {
	for _, b := range buffers {
		if b.ByteOffset > grown.ByteOffset {
			b.ByteOffset += delta
		}
	}
}

// writeHardwareTables performs the fixed-order table write for every
// module of the configuration.
func writeHardwareTables(c *Configuration) error {
	dev := c.device()
	for _, m := range c.modulesInOrder() {
		if err := dev.clearModule(int(m.id)); err != nil {
			return wrapErr("write_hardware_tables", SysfsNoData, err)
		}

		if err := writeConstBuffer(dev, m); err != nil {
			return err
		}
		if err := writeLookupTables(dev, m); err != nil {
			return err
		}
		if err := writeScatterTable(dev, m); err != nil {
			return err
		}
		if err := writeGatherAndPrefetch(dev, m); err != nil {
			return err
		}
		if err := writeModuleControl(dev, m); err != nil {
			return err
		}
		Log().Info("module tables written",
			zap.Int("module_id", int(m.id)),
			zap.Int("stream_count", len(m.Streams())),
		)
	}
	return nil
}

func writeConstBuffer(dev deviceBackend, m *Module) error {
	offset := 0
	for _, s := range m.Streams() {
		for _, op := range s.Operations() {
			if op.Code != OpInsertConstant {
				continue
			}
			op.constBuffOffset = offset
			if err := dev.writeConstBuffer(int(m.id), offset, op.Data); err != nil {
				return wrapErr("write_const_buffer", SysfsNoData, err)
			}
			offset += len(op.Data)
		}
	}
	m.constBufferUsed = offset
	return nil
}

func writeLookupTables(dev deviceBackend, m *Module) error {
	var ingressControl, lookupEnable, layer7Enable uint16
	layer7Len := 0
	for _, s := range m.Streams() {
		if s.Lookup == nil {
			continue
		}
		if err := dev.writeLookupEntry(int(m.id), s.Lookup); err != nil {
			return wrapErr("write_lookup_tables", SysfsNoData, err)
		}
		idx := uint(s.Lookup.lookupIndex)
		lookupEnable |= 1 << idx
		if s.Lookup.FilterSize > layer7Len {
			layer7Len = s.Lookup.FilterSize
		}
		if s.Lookup.FilterSize > 0 {
			layer7Enable |= 1 << idx
		}
		if hasOpcode(s, OpRead) || (s.reference != nil && hasOpcode(s.reference, OpInsert)) {
			ingressControl |= 1 << idx
		}
	}
	fallback := "nop"
	if m.ConnMode == ConnSerial {
		fallback = "forward_all"
	}
	if err := dev.writeLookupFallback(int(m.id), fallback); err != nil {
		return wrapErr("write_lookup_tables", SysfsNoData, err)
	}
	return wrapSysfsErr("write_lookup_tables",
		dev.writeLookupControl(int(m.id), ingressControl, lookupEnable, layer7Enable, layer7Len))
}

func hasOpcode(s *Stream, code Opcode) bool {
	for _, op := range s.Operations() {
		if op.Code == code {
			return true
		}
	}
	return false
}

func writeScatterTable(dev deviceBackend, m *Module) error {
	streams := m.Streams()
	if err := dev.writeScatterNOP(int(m.id)); err != nil {
		return wrapErr("write_scatter_table", SysfsNoData, err)
	}
	for _, s := range streams {
		ops := s.Operations()
		lastReadIdx := -1
		for i, op := range ops {
			if op.Code == OpRead {
				lastReadIdx = i
			}
		}
		idx := s.scatterDMAIndex
		for i, op := range ops {
			if op.Code != OpRead {
				continue
			}
			last := i == lastReadIdx
			if err := dev.writeScatterEntry(int(m.id), idx, op.msgBuf, last); err != nil {
				return wrapErr("write_scatter_table", SysfsNoData, err)
			}
			idx++
		}
	}
	return nil
}

// prefetchLockFields is the number of 16-bit lock-vector slices the
// prefetch engine accepts ahead of a stream's prefetch body.
const prefetchLockFields = 4

func writeGatherAndPrefetch(dev deviceBackend, m *Module) error {
	if err := dev.writeGatherNOP(int(m.id), 0); err != nil {
		return wrapErr("write_gather_table", SysfsNoData, err)
	}
	if err := dev.writeGatherForwardAll(int(m.id), 1); err != nil {
		return wrapErr("write_gather_table", SysfsNoData, err)
	}
	for _, s := range m.Streams() {
		if !s.Variant.egressCapable() {
			continue
		}
		if err := writeStreamGatherPrefetch(dev, m, s); err != nil {
			return err
		}
	}
	return nil
}

func writeStreamGatherPrefetch(dev deviceBackend, m *Module, s *Stream) error {
	ops := s.Operations()
	gatherIdx := s.gatherDMAIndex
	prefetchIdx := s.gatherDMAIndex

	// The lock vector covers every Insert buffer of the stream. It is
	// emitted ahead of the prefetch body as up to four 16-bit slices;
	// all-zero slices are skipped, a stream with no Insert buffers gets
	// a single prefetch NOP instead.
	var lockVector uint64
	for _, op := range ops {
		if op.Code == OpInsert && op.msgBuf != nil {
			lockVector |= 1 << uint(op.msgBuf.Index)
		}
	}
	if lockVector != 0 {
		dual := s.Variant == VariantRedundantTx
		for field := 0; field < prefetchLockFields; field++ {
			bits := uint16(lockVector >> (16 * field))
			if bits == 0 {
				continue
			}
			if err := dev.writePrefetchLock(int(m.id), prefetchIdx, field, dual, bits); err != nil {
				return wrapErr("write_prefetch_table", SysfsNoData, err)
			}
			prefetchIdx++
		}
	} else {
		if err := dev.writePrefetchNOP(int(m.id), prefetchIdx); err != nil {
			return wrapErr("write_prefetch_table", SysfsNoData, err)
		}
	}

	emitted := 0
	for _, op := range ops {
		if op.Code == OpInsert {
			if err := dev.writePrefetchEntry(int(m.id), prefetchIdx, op.msgBuf); err != nil {
				return wrapErr("write_prefetch_table", SysfsNoData, err)
			}
			prefetchIdx++
		}
		if err := dev.writeGatherEntry(int(m.id), gatherIdx, op); err != nil {
			return wrapErr("write_gather_table", SysfsNoData, err)
		}
		gatherIdx++
		emitted++
		// A redundant stream gets its R-Tag gather command right after
		// the three auto-generated header operations.
		if s.Variant == VariantRedundantTx && emitted == numHeaderOps {
			if err := dev.writeGatherRTag(int(m.id), gatherIdx); err != nil {
				return wrapErr("write_gather_table", SysfsNoData, err)
			}
			gatherIdx++
		}
	}
	return nil
}

// redundancySource selects which sequence-number source a redundancy
// control entry uses.
type redundancySource int

const (
	redundSrcIntSeqNum redundancySource = iota
	redundSrcRxSeqNum
)

// redundancyUpdate selects the entry's sequence-number update policy.
type redundancyUpdate int

const (
	redundUpdNop redundancyUpdate = iota
	redundUpdFinishBoth
	redundUpdMaxNum
)

// redundancyEntry is one row of the redundancy control table. Entry 0
// is a NOP used by schedule items of non-redundant streams; TX rows
// use the internal sequence number with finish-both update, RX rows
// the received sequence number with max-num update and no-R-Tag drop.
type redundancyEntry struct {
	source     redundancySource
	update     redundancyUpdate
	dropNoRTag bool
	index      int
}

func writeModuleControl(dev deviceBackend, m *Module) error {
	if err := dev.writeConnMode(int(m.id), m.ConnMode == ConnSerial); err != nil {
		return wrapErr("write_module_control", SysfsNoData, err)
	}
	if err := dev.writeRedundancyEntry(int(m.id), 0, redundancyEntry{source: redundSrcIntSeqNum, update: redundUpdNop}); err != nil {
		return wrapErr("write_module_control", SysfsNoData, err)
	}
	for _, s := range m.Streams() {
		switch s.Variant {
		case VariantRedundantTx:
			e := redundancyEntry{source: redundSrcIntSeqNum, update: redundUpdFinishBoth, index: s.redundantIndex}
			if err := dev.writeRedundancyEntry(int(m.id), s.redundantIndex, e); err != nil {
				return wrapErr("write_module_control", SysfsNoData, err)
			}
		case VariantRedundantRx:
			e := redundancyEntry{source: redundSrcRxSeqNum, update: redundUpdMaxNum, dropNoRTag: true, index: s.redundantIndex}
			if err := dev.writeRedundancyEntry(int(m.id), s.redundantIndex, e); err != nil {
				return wrapErr("write_module_control", SysfsNoData, err)
			}
		}
		if s.indivRecovTimeoutMS > 0 && s.redundantIndex > 0 {
			if err := dev.writeIndividualRecovery(int(m.id), s.redundantIndex, s.indivRecovTimeoutMS); err != nil {
				return wrapErr("write_module_control", SysfsNoData, err)
			}
		}
	}
	if err := dev.writeLinkSpeed(int(m.id), m.LinkSpeed == Speed1Gbps); err != nil {
		return wrapErr("write_module_control", SysfsNoData, err)
	}
	return wrapSysfsErr("write_module_control", dev.writeModuleEnable(int(m.id), true))
}

func wrapSysfsErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return wrapErr(op, SysfsNoData, err)
}
