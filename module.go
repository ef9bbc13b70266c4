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

import "time"

// ConnMode is a module's connection mode.
type ConnMode int

const (
	ConnParallel ConnMode = iota
	ConnSerial
)

// LinkSpeed is a module's link speed, used to index the delay table.
type LinkSpeed int

const (
	Speed100Mbps LinkSpeed = iota
	Speed1Gbps
)

// DelayTable holds the six per-speed propagation delays used by the
// FSC-generation formulas.
type DelayTable struct {
	ChipIn    uint64
	ChipEg    uint64
	PhyIn     uint64
	PhyEg     uint64
	SerBypass uint64
	SerSwitch uint64
}

func defaultDelayTable(speed LinkSpeed) DelayTable {
	if speed == Speed100Mbps {
		return DelayTable{ChipIn: 500, ChipEg: 500, PhyIn: 300, PhyEg: 300, SerBypass: 100, SerSwitch: 100}
	}
	return DelayTable{ChipIn: 250, ChipEg: 250, PhyIn: 150, PhyEg: 150, SerBypass: 50, SerSwitch: 50}
}

const maxModuleSlots = 2
const maxRedundantStreamsPerModule = 31
const maxLookupEntriesPerModule = lookupSlotsPerModule
const maxGatherOpsPerModule = 256
const maxScatterOpsPerModule = 256
const maxFSCCommandsPerModule = 1024
const minFSCGapTicks = 8

// Module owns up to one direction of traffic: a stream set, link
// configuration, cycle/start time, per-speed delay table and the
// compiled FSC command list.
type Module struct {
	id ModuleID

	streamLock listLock
	streams    []*Stream

	ConnMode  ConnMode
	LinkSpeed LinkSpeed
	CycleNS   uint64
	Start     time.Time

	Delays DelayTable

	fscLock listLock
	fscList []*fscCommand

	constBufferUsed int // bytes of InsertConstant payload emitted so far

	config *Configuration // nil if detached
}

// ModuleID is the hardware-fixed directional slot a module occupies.
type ModuleID int

const (
	Module0 ModuleID = iota
	Module1
)

// NewModule creates a detached module. The delay table starts at the
// compiled default for speed; callers (or configfile) may override
// individual keys afterward.
func NewModule(mode ConnMode, speed LinkSpeed, id ModuleID) (*Module, error) {
	if id != Module0 && id != Module1 {
		return nil, newErr("create_module", InvalidArgument)
	}
	return &Module{
		id:        id,
		ConnMode:  mode,
		LinkSpeed: speed,
		Delays:    defaultDelayTable(speed),
	}, nil
}

// Destroy releases a detached module and every stream it owns. It is a
// no-op on a module that is added to a configuration.
func (m *Module) Destroy() {
	if m.config != nil {
		return
	}
	m.streamLock.Lock()
	streams := m.streams
	m.streams = nil
	m.streamLock.Unlock()
	for _, s := range streams {
		s.module = nil
	}
	m.fscLock.Lock()
	m.fscList = nil
	m.fscLock.Unlock()
}

// SetSchedule sets the module's cycle time and start time. It is valid
// any time before apply; apply_schedule rewrites these fields alone.
func (m *Module) SetSchedule(cycleNS uint64, start time.Time) error {
	if m.config != nil && m.config.applied {
		return newErr("set_module_schedule", PermissionDenied)
	}
	if cycleNS == 0 {
		return newErr("set_module_schedule", BadModuleCycle)
	}
	m.CycleNS = cycleNS
	m.Start = start
	return nil
}

// Streams returns a snapshot of the module's current stream list.
func (m *Module) Streams() []*Stream {
	m.streamLock.Lock()
	defer m.streamLock.Unlock()
	out := make([]*Stream, len(m.streams))
	copy(out, m.streams)
	return out
}

// AddStream appends stream (and, transitively, any chained Event and
// Recovery streams already linked to it) to the module, generating FSC
// commands for every schedule entry already present, then running
// non-final validation. Any failure rolls back the whole addition.
func (m *Module) AddStream(s *Stream) error {
	if m.config != nil && m.config.applied {
		return newErr("add_module_stream", PermissionDenied)
	}
	chain := collectChain(s)
	added := make([]*Stream, 0, len(chain))
	var genByStream = map[*Stream][]*fscCommand{}

	rollback := func() {
		for i := len(added) - 1; i >= 0; i-- {
			st := added[i]
			m.removeFSCCommands(genByStream[st])
			m.detachStream(st)
		}
	}

	for _, st := range chain {
		if st.module != nil {
			rollback()
			return logFail(newErr("add_module_stream", PermissionDenied))
		}
		if st.smacIsPort {
			st.smac = modulePortMAC(m)
			st.opsLock.Lock()
			if len(st.ops) >= 2 {
				st.ops[1].Data = append([]byte(nil), st.smac[:]...)
			}
			st.opsLock.Unlock()
		}
		m.streamLock.Lock()
		m.streams = append(m.streams, st)
		m.streamLock.Unlock()
		st.module = m
		added = append(added, st)

		var gen []*fscCommand
		for _, sch := range st.Schedules() {
			g, err := generateFSCCommands(m, st, sch)
			if err != nil {
				rollback()
				return logFail(err.(*Error))
			}
			sch.fscCommands = g
			gen = append(gen, g...)
		}
		genByStream[st] = gen
		m.insertFSCCommands(gen)

		if err := validateStreamNonFinal(st); err != nil {
			rollback()
			return logFail(err.(*Error))
		}
	}

	if err := validateModuleNonFinal(m); err != nil {
		rollback()
		return logFail(err.(*Error))
	}
	reassignModuleIndices(m)
	return nil
}

// collectChain walks s.reference forward, returning s followed by
// every chained Event/Recovery stream that is not yet attached to a
// module, so the whole chain is added (and rolled back) atomically.
func collectChain(s *Stream) []*Stream {
	chain := []*Stream{s}
	cur := s
	for cur.reference != nil && cur.reference.module == nil {
		cur = cur.reference
		chain = append(chain, cur)
	}
	return chain
}

func modulePortMAC(m *Module) [6]byte {
	// The port MAC is a device property; placeholder derived from
	// module id keeps the two modules distinguishable in tests/logs.
	return [6]byte{0x02, 0x00, 0x00, 0x00, 0x00, byte(m.id)}
}

// RemoveStream detaches s from the module, dropping its generated FSC
// commands and recomputing table indices, so the module is restored to
// its state before the matching AddStream. It is an error if s is not
// owned by m or the configuration has already been applied.
func (m *Module) RemoveStream(s *Stream) error {
	if m.config != nil && m.config.applied {
		return newErr("remove_module_stream", PermissionDenied)
	}
	if s.module != m {
		return newErr("remove_module_stream", StreamNotInConfig)
	}
	for st := s; st != nil && st.module == m; st = st.reference {
		m.removeStream(st)
	}
	return nil
}

// removeStream detaches stream from the module, dropping its FSC
// commands and recomputing table indices.
func (m *Module) removeStream(s *Stream) {
	for _, sch := range s.Schedules() {
		m.removeFSCCommands(sch.fscCommands)
		sch.fscCommands = nil
	}
	m.detachStream(s)
	reassignModuleIndices(m)
}

func (m *Module) detachStream(s *Stream) {
	m.streamLock.Lock()
	defer m.streamLock.Unlock()
	for i, st := range m.streams {
		if st == s {
			m.streams = append(m.streams[:i], m.streams[i+1:]...)
			break
		}
	}
	s.module = nil
}

func (m *Module) insertFSCCommands(cmds []*fscCommand) {
	if len(cmds) == 0 {
		return
	}
	m.fscLock.Lock()
	defer m.fscLock.Unlock()
	for _, c := range cmds {
		m.fscList = insertSortedFSC(m.fscList, c)
	}
}

func (m *Module) removeFSCCommands(cmds []*fscCommand) {
	if len(cmds) == 0 {
		return
	}
	set := make(map[*fscCommand]bool, len(cmds))
	for _, c := range cmds {
		set[c] = true
	}
	m.fscLock.Lock()
	defer m.fscLock.Unlock()
	kept := m.fscList[:0:0]
	for _, c := range m.fscList {
		if !set[c] {
			kept = append(kept, c)
		}
	}
	m.fscList = kept
}

// FSCList returns a snapshot of the module's compiled FSC command list.
func (m *Module) FSCList() []*fscCommand {
	m.fscLock.Lock()
	defer m.fscLock.Unlock()
	out := make([]*fscCommand, len(m.fscList))
	copy(out, m.fscList)
	return out
}
