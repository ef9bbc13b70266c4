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
	"fmt"
	"time"

	"github.com/STMicroelectronics/tttech-tsn-acm-content-sub001/device"
)

const defaultDeviceRoot = "/sys/devices/acm"

const recordSizeSmall = 32
const recordSizeFSCRow = 16
const defaultBufferMemoryBytes = 16 * 1024

// deviceBackend is the narrow surface the compiler and status/control
// paths use; it never leaks acm-native types below this file, and the
// real/in-memory device.Backend it wraps never needs to import this
// package. The device is just a byte-addressable register file behind
// named paths.
type deviceBackend interface {
	clearModule(moduleID int) error

	writeConstBuffer(moduleID, offset int, data []byte) error
	writeLookupEntry(moduleID int, l *Lookup) error
	writeLookupFallback(moduleID int, fallback string) error
	writeLookupControl(moduleID int, ingressControl, lookupEnable, layer7Enable uint16, layer7Len int) error
	writeScatterNOP(moduleID int) error
	writeScatterEntry(moduleID, index int, mb *MessageBuffer, last bool) error
	writeGatherNOP(moduleID, index int) error
	writeGatherForwardAll(moduleID, index int) error
	writeGatherEntry(moduleID, index int, op *Operation) error
	writeGatherRTag(moduleID, index int) error
	writePrefetchNOP(moduleID, index int) error
	writePrefetchLock(moduleID, index, field int, dual bool, bits uint16) error
	writePrefetchEntry(moduleID, index int, mb *MessageBuffer) error
	writeConnMode(moduleID int, serial bool) error
	writeRedundancyEntry(moduleID, index int, e redundancyEntry) error
	writeIndividualRecovery(moduleID, index, timeoutMS int) error
	writeLinkSpeed(moduleID int, gbps bool) error
	writeModuleEnable(moduleID int, enabled bool) error

	allocScheduleSlot(moduleID int) (int, error)
	writeFSCRow(moduleID, slot, index int, row fscRow) error
	writeModuleCycle(moduleID, slot int, cycleNS uint64) error
	writeModuleStart(moduleID, slot int, start time.Time) error
	clearEmergencyDisable(moduleID int) error

	writeConfigID(id uint32) error
	readConfigID() (uint32, error)

	readStatusItem(moduleID int, item string) (uint64, error)
	readDiagnostics(moduleID int) (Diagnostics, error)
	setDiagnosticsPollTime(moduleID int, ms int) error
	readCapabilityItem(item string) (uint64, error)
	readLibVersion() (string, error)
	readIPVersion() (string, error)
	readBufferLockingVector() (uint64, error)
	writeBufferLockingMask(mask uint64) error
	writeBufferUnlockingMask(mask uint64) error

	bufferMemoryBytes() int
}

// sysfsBackend adapts device.Backend (plain bytes, no knowledge of
// acm types) to deviceBackend by marshaling table rows here, where the
// acm types are in scope.
type sysfsBackend struct {
	b *device.Backend
}

func newSysfsBackend(root string) *sysfsBackend {
	return &sysfsBackend{b: device.NewBackend(device.NewSysfsFS(root))}
}

// NewMemoryDeviceContext builds a Context over an in-memory device
// tree, for tests and for the CLI when no --device-root is given.
func NewMemoryDeviceContext() *Context {
	return NewContext(&sysfsBackend{b: device.NewBackend(device.NewMemoryFS())})
}

func (s *sysfsBackend) clearModule(moduleID int) error {
	return s.b.WriteRecord(device.DirConfig, "clear_all_fpga", moduleID, recordSizeSmall, []byte{1})
}

func (s *sysfsBackend) writeConstBuffer(moduleID, offset int, data []byte) error {
	return s.b.WriteBytes(device.DirConfig, fmt.Sprintf("const_buffer_%d", moduleID), int64(offset), data)
}

func marshalLookup(l *Lookup) []byte {
	buf := make([]byte, lookupHeaderSize*2+2+lookupMaxFilterSize*2)
	copy(buf[0:16], l.HeaderPattern[:])
	copy(buf[16:32], l.HeaderMask[:])
	binary.LittleEndian.PutUint16(buf[32:34], uint16(l.FilterSize))
	copy(buf[34:34+l.FilterSize], l.FilterPattern)
	copy(buf[34+lookupMaxFilterSize:34+lookupMaxFilterSize+l.FilterSize], l.FilterMask)
	return buf
}

// recordSizeLookup holds header pattern+mask (32 B), the filter size
// field and a full-width filter pattern+mask pair (2 + 224 B), rounded
// up to the next 32-byte boundary.
const recordSizeLookup = 288

func (s *sysfsBackend) writeLookupEntry(moduleID int, l *Lookup) error {
	return s.b.WriteRecord(device.DirConfig, fmt.Sprintf("lookup_pattern_%d", moduleID), l.lookupIndex, recordSizeLookup, marshalLookup(l))
}

func (s *sysfsBackend) writeLookupFallback(moduleID int, fallback string) error {
	v := uint64(0)
	if fallback == "forward_all" {
		v = 1
	}
	return s.b.WriteScalar(device.DirConfig, fmt.Sprintf("lookup_fallback_%d", moduleID), v)
}

func (s *sysfsBackend) writeLookupControl(moduleID int, ingressControl, lookupEnable, layer7Enable uint16, layer7Len int) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint16(buf[0:2], ingressControl)
	binary.LittleEndian.PutUint16(buf[2:4], lookupEnable)
	binary.LittleEndian.PutUint16(buf[4:6], layer7Enable)
	buf[6] = byte(layer7Len)
	return s.b.WriteRecord(device.DirConfig, fmt.Sprintf("lookup_control_%d", moduleID), 0, recordSizeSmall, buf)
}

// Record kind tags for the scatter, gather and prefetch tables. The
// first byte of every record selects the command the engine executes.
const (
	scatterKindNOP = iota
	scatterKindRead
)

const (
	gatherKindNOP = iota
	gatherKindForwardAll
	gatherKindOperation
	gatherKindRTag
)

const (
	prefetchKindNOP = iota
	prefetchKindLock
	prefetchKindMoveFromMsgBuf
)

func (s *sysfsBackend) writeScatterNOP(moduleID int) error {
	buf := make([]byte, 8)
	buf[0] = scatterKindNOP
	return s.b.WriteRecord(device.DirConfig, fmt.Sprintf("scatter_dma_%d", moduleID), 0, recordSizeSmall, buf)
}

func (s *sysfsBackend) writeScatterEntry(moduleID, index int, mb *MessageBuffer, last bool) error {
	buf := make([]byte, 8)
	buf[0] = scatterKindRead
	if mb != nil {
		binary.LittleEndian.PutUint16(buf[1:3], uint16(mb.Index))
		binary.LittleEndian.PutUint16(buf[3:5], uint16(mb.ByteOffset))
	}
	if last {
		buf[5] = 1
	}
	return s.b.WriteRecord(device.DirConfig, fmt.Sprintf("scatter_dma_%d", moduleID), index, recordSizeSmall, buf)
}

func marshalOperation(op *Operation) []byte {
	buf := make([]byte, 16)
	buf[0] = gatherKindOperation
	buf[1] = byte(op.Code)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(op.Length))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(op.Offset))
	binary.LittleEndian.PutUint16(buf[6:8], uint16(op.constBuffOffset))
	if op.msgBuf != nil {
		binary.LittleEndian.PutUint16(buf[8:10], uint16(op.msgBuf.Index))
	}
	return buf
}

func (s *sysfsBackend) writeGatherNOP(moduleID, index int) error {
	buf := make([]byte, 8)
	buf[0] = gatherKindNOP
	return s.b.WriteRecord(device.DirConfig, fmt.Sprintf("gather_dma_%d", moduleID), index, recordSizeSmall, buf)
}

func (s *sysfsBackend) writeGatherForwardAll(moduleID, index int) error {
	buf := make([]byte, 8)
	buf[0] = gatherKindForwardAll
	return s.b.WriteRecord(device.DirConfig, fmt.Sprintf("gather_dma_%d", moduleID), index, recordSizeSmall, buf)
}

func (s *sysfsBackend) writeGatherEntry(moduleID, index int, op *Operation) error {
	return s.b.WriteRecord(device.DirConfig, fmt.Sprintf("gather_dma_%d", moduleID), index, recordSizeSmall, marshalOperation(op))
}

func (s *sysfsBackend) writeGatherRTag(moduleID, index int) error {
	buf := make([]byte, 8)
	buf[0] = gatherKindRTag
	return s.b.WriteRecord(device.DirConfig, fmt.Sprintf("gather_dma_%d", moduleID), index, recordSizeSmall, buf)
}

func (s *sysfsBackend) writePrefetchNOP(moduleID, index int) error {
	buf := make([]byte, 8)
	buf[0] = prefetchKindNOP
	return s.b.WriteRecord(device.DirConfig, fmt.Sprintf("prefetch_dma_%d", moduleID), index, recordSizeSmall, buf)
}

func (s *sysfsBackend) writePrefetchLock(moduleID, index, field int, dual bool, bits uint16) error {
	buf := make([]byte, 8)
	buf[0] = prefetchKindLock
	buf[1] = byte(field)
	if dual {
		buf[2] = 1
	}
	binary.LittleEndian.PutUint16(buf[3:5], bits)
	return s.b.WriteRecord(device.DirConfig, fmt.Sprintf("prefetch_dma_%d", moduleID), index, recordSizeSmall, buf)
}

func (s *sysfsBackend) writePrefetchEntry(moduleID, index int, mb *MessageBuffer) error {
	buf := make([]byte, 8)
	buf[0] = prefetchKindMoveFromMsgBuf
	if mb != nil {
		binary.LittleEndian.PutUint16(buf[1:3], uint16(mb.Index))
	}
	return s.b.WriteRecord(device.DirConfig, fmt.Sprintf("prefetch_dma_%d", moduleID), index, recordSizeSmall, buf)
}

func (s *sysfsBackend) writeConnMode(moduleID int, serial bool) error {
	v := uint64(0)
	if serial {
		v = 1
	}
	return s.b.WriteScalar(device.DirConfig, fmt.Sprintf("conn_mode_%d", moduleID), v)
}

func (s *sysfsBackend) writeRedundancyEntry(moduleID, index int, e redundancyEntry) error {
	buf := make([]byte, 8)
	buf[0] = byte(e.source)
	buf[1] = byte(e.update)
	if e.dropNoRTag {
		buf[2] = 1
	}
	binary.LittleEndian.PutUint16(buf[3:5], uint16(e.index))
	return s.b.WriteRecord(device.DirConfig, fmt.Sprintf("redund_cnt_tab_%d", moduleID), index, recordSizeSmall, buf)
}

func (s *sysfsBackend) writeIndividualRecovery(moduleID, index, timeoutMS int) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(timeoutMS))
	return s.b.WriteRecord(device.DirConfig, fmt.Sprintf("individual_recovery_%d", moduleID), index, recordSizeSmall, buf)
}

func (s *sysfsBackend) writeLinkSpeed(moduleID int, gbps bool) error {
	v := uint64(100)
	if gbps {
		v = 1000
	}
	return s.b.WriteScalar(device.DirConfig, fmt.Sprintf("link_speed_%d", moduleID), v)
}

func (s *sysfsBackend) writeModuleEnable(moduleID int, enabled bool) error {
	v := uint64(0)
	if enabled {
		v = 1
	}
	return s.b.WriteScalar(device.DirConfig, fmt.Sprintf("module_enable_%d", moduleID), v)
}

func (s *sysfsBackend) allocScheduleSlot(moduleID int) (int, error) {
	// Hardware provides two slots per module; "free" = can-be-used and
	// not in-use. The slot returned is the value of the status file
	// sched_slot_inuse_<module> modulo 2, or slot 0 when that file
	// cannot be read.
	inUse, err := s.b.ReadScalar(device.DirStatus, fmt.Sprintf("sched_slot_inuse_%d", moduleID))
	if err != nil {
		inUse = 0
	}
	slot := int(inUse % 2)
	return slot, nil
}

func (s *sysfsBackend) writeFSCRow(moduleID, slot, index int, row fscRow) error {
	buf := make([]byte, recordSizeFSCRow)
	binary.LittleEndian.PutUint32(buf[0:4], row.delta)
	binary.LittleEndian.PutUint16(buf[4:6], row.gather)
	binary.LittleEndian.PutUint16(buf[6:8], row.lookup)
	binary.LittleEndian.PutUint16(buf[8:10], row.redund)
	buf[10] = byte(row.trigger)
	if row.winOpen {
		buf[11] |= 1
	}
	if row.winClose {
		buf[11] |= 2
	}
	if row.nop {
		buf[11] |= 4
	}
	return s.b.WriteRecord(device.DirConfig, fmt.Sprintf("sched_tab_row_%d_%d", moduleID, slot), index, recordSizeFSCRow, buf)
}

func (s *sysfsBackend) writeModuleCycle(moduleID, slot int, cycleNS uint64) error {
	return s.b.WriteScalar(device.DirConfig, fmt.Sprintf("sched_cycle_time_%d_%d", moduleID, slot), cycleNS)
}

func (s *sysfsBackend) writeModuleStart(moduleID, slot int, start time.Time) error {
	return s.b.WriteScalar(device.DirConfig, fmt.Sprintf("sched_start_time_%d_%d", moduleID, slot), uint64(start.UnixNano()))
}

func (s *sysfsBackend) clearEmergencyDisable(moduleID int) error {
	return s.b.WriteScalar(device.DirConfig, fmt.Sprintf("emergency_disable_%d", moduleID), 0)
}

func (s *sysfsBackend) writeConfigID(id uint32) error {
	return s.b.WriteScalar(device.DirConfig, "configuration_id", uint64(id))
}

func (s *sysfsBackend) readConfigID() (uint32, error) {
	v, err := s.b.ReadScalar(device.DirConfig, "configuration_id")
	return uint32(v), err
}

func (s *sysfsBackend) readStatusItem(moduleID int, item string) (uint64, error) {
	return s.b.ReadScalar(device.DirStatus, fmt.Sprintf("%s_%d", item, moduleID))
}

func (s *sysfsBackend) readDiagnostics(moduleID int) (Diagnostics, error) {
	raw, err := s.b.ReadRecord(device.DirDiag, fmt.Sprintf("diag_%d", moduleID), 0, diagnosticsRecordSize)
	if err != nil {
		return Diagnostics{}, err
	}
	return unmarshalDiagnostics(raw), nil
}

func (s *sysfsBackend) setDiagnosticsPollTime(moduleID int, ms int) error {
	return s.b.WriteScalar(device.DirControl, fmt.Sprintf("diag_poll_ms_%d", moduleID), uint64(ms))
}

func (s *sysfsBackend) readCapabilityItem(item string) (uint64, error) {
	return s.b.ReadScalar(device.DirStatus, item)
}

func (s *sysfsBackend) readLibVersion() (string, error) {
	return libVersion, nil
}

func (s *sysfsBackend) readIPVersion() (string, error) {
	v, err := s.b.ReadScalar(device.DirStatus, "ip_version")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", v), nil
}

func (s *sysfsBackend) readBufferLockingVector() (uint64, error) {
	return s.b.ReadScalar(device.DirControl, "lock_msg_bufs")
}

func (s *sysfsBackend) writeBufferLockingMask(mask uint64) error {
	return s.b.WriteScalar(device.DirControl, "lock_msg_bufs", mask)
}

func (s *sysfsBackend) writeBufferUnlockingMask(mask uint64) error {
	return s.b.WriteScalar(device.DirControl, "unlock_msg_bufs", mask)
}

func (s *sysfsBackend) bufferMemoryBytes() int {
	v, err := s.b.ReadScalar(device.DirStatus, "msgbuf_count")
	if err != nil || v == 0 {
		return defaultBufferMemoryBytes
	}
	return int(v) * blockGranularity
}

const libVersion = "1.0.0"
