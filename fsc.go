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

// Trigger tags an FSC command's recovery-chain role.
type Trigger int

const (
	TriggerStandalone Trigger = iota
	TriggerNoTrigger
	TriggerFirstStage
)

// fscCommand is one row of a module's fetch-and-schedule table: an
// absolute tick (used only while building/sorting) plus the payload
// written to hardware as a delta-tick once the table is emitted.
type fscCommand struct {
	absCycle int64

	gatherIndex   int
	scatterLookup int // lookup_index for window commands, unused for event commands
	redundIndex   int
	trigger       Trigger
	winOpen       bool
	winClose      bool

	schedule *Schedule // back-reference so removing a Schedule removes its commands
	stream   *Stream
}

// tickDuration returns 1e9/freqHz truncated to an integer tick width
// in nanoseconds, recomputed fresh per call rather than cached.
func tickDuration(freqHz uint64) uint64 {
	if freqHz == 0 {
		return 1
	}
	return 1_000_000_000 / freqHz
}

// divRoundClosest implements round-half-away-from-zero for the
// non-negative operands that occur in FSC generation.
func divRoundClosest(numerator, tick int64) int64 {
	if tick == 0 {
		return 0
	}
	return (numerator + tick/2) / tick
}

func divFloor(numerator, tick int64) int64 {
	if tick == 0 {
		return 0
	}
	return numerator / tick
}

func divCeil(numerator, tick int64) int64 {
	if tick == 0 {
		return 0
	}
	return (numerator + tick - 1) / tick
}

// deviceTickHz is the scheduler tick frequency FSC generation uses.
// It is a fixed constant; the tick capability the device reports is
// not read.
const deviceTickHz = 100_000_000 // 10ns tick

// generateFSCCommands expands sch's periodic occurrences over m's
// cycle into FSC command rows. It does not insert them into
// m.fscList; callers do
// that (so AddStream/AddSchedule can roll back cleanly on validation
// failure).
func generateFSCCommands(m *Module, s *Stream, sch *Schedule) ([]*fscCommand, error) {
	if m.CycleNS == 0 {
		return nil, newErr("generate_fsc", BadModuleCycle)
	}
	if sch.PeriodNS == 0 || m.CycleNS%sch.PeriodNS != 0 {
		return nil, newErr("generate_fsc", PeriodIncompatible)
	}
	n := int64(m.CycleNS / sch.PeriodNS)
	tick := int64(tickDuration(deviceTickHz))
	cycleTicks := int64(m.CycleNS) / tick

	var out []*fscCommand
	switch sch.Kind {
	case ScheduleEvent:
		period := int64(sch.PeriodNS)
		send := int64(sch.SendTimeNS)
		delay := int64(m.Delays.ChipEg + m.Delays.PhyEg)
		produced := 0
		for i := int64(0); produced < int(n); i++ {
			help := send + i*period - delay
			if help < 0 {
				n++
				continue
			}
			out = append(out, &fscCommand{
				absCycle:    divRoundClosest(help, tick),
				gatherIndex: s.gatherDMAIndex,
				redundIndex: s.redundantIndex,
				trigger:     TriggerStandalone,
				schedule:    sch,
				stream:      s,
			})
			produced++
		}
	case ScheduleWindow:
		period := int64(sch.PeriodNS)
		delayIn := int64(m.Delays.ChipIn + m.Delays.PhyIn)
		serialAdd := int64(0)
		if m.ConnMode == ConnSerial {
			serialAdd = int64(m.Delays.SerSwitch)
		}
		for i := int64(0); i < n; i++ {
			openHelp := int64(sch.TimeStartNS) + i*period + delayIn + serialAdd
			openCycle := divFloor(openHelp, tick)
			if openCycle >= cycleTicks {
				openCycle -= cycleTicks
			}
			lookupIdx := 0
			if s.Lookup != nil {
				lookupIdx = s.Lookup.lookupIndex
			}
			out = append(out, &fscCommand{
				absCycle:      openCycle,
				scatterLookup: lookupIdx,
				trigger:       TriggerNoTrigger,
				winOpen:       true,
				schedule:      sch,
				stream:        s,
			})

			closeHelp := int64(sch.TimeEndNS) + i*period + delayIn
			closeCycle := divCeil(closeHelp, tick)
			if closeCycle >= cycleTicks {
				closeCycle -= cycleTicks
			}
			trig := TriggerNoTrigger
			gatherIdx := 0
			if rec := chainedRecovery(s); rec != nil {
				trig = TriggerFirstStage
				gatherIdx = rec.gatherDMAIndex
			}
			out = append(out, &fscCommand{
				absCycle:      closeCycle,
				gatherIndex:   gatherIdx,
				scatterLookup: lookupIdx,
				trigger:       trig,
				winClose:      true,
				schedule:      sch,
				stream:        s,
			})
		}
	}
	return out, nil
}

// chainedRecovery returns the Recovery stream reached from s through
// reference (IngressTriggered -> Event -> Recovery), or nil.
func chainedRecovery(s *Stream) *Stream {
	if s.reference == nil {
		return nil
	}
	if s.reference.Variant == VariantRecovery {
		return s.reference
	}
	if s.reference.reference != nil && s.reference.reference.Variant == VariantRecovery {
		return s.reference.reference
	}
	return nil
}

// nopDeltaCycle is the NOP width used to break up a gap that exceeds
// the hardware's 16-bit delta_cycle field. Deliberately below 65535
// so the remainder at the end of a period never drops under the
// scheduler's minimum tick distance.
const nopDeltaCycle = 60000

const maxDeltaCycle = 65535

// writeFSCSchedule streams m's FSC list to a free hardware schedule
// slot, converting absolute ticks to delta ticks and padding any gap
// wider than maxDeltaCycle with NOP commands of width nopDeltaCycle.
func writeFSCSchedule(dev deviceBackend, m *Module) error {
	slot, err := dev.allocScheduleSlot(int(m.id))
	if err != nil {
		return wrapErr("write_fsc_schedule", NoFreeScheduleTable, err)
	}

	cmds := m.FSCList()
	if len(cmds) > maxFSCCommandsPerModule {
		return newErr("write_fsc_schedule", TooManyScheduleEvents)
	}

	rowIdx := 0

	prev := int64(0)
	if len(cmds) > 0 && cmds[0].absCycle != 0 {
		prev = 0 // a leading NOP brings the first real command into position
	}
	for i, c := range cmds {
		gap := c.absCycle - prev
		for gap > maxDeltaCycle {
			if err := dev.writeFSCRow(int(m.id), slot, rowIdx, fscRow{delta: nopDeltaCycle, nop: true}); err != nil {
				return wrapErr("write_fsc_schedule", SysfsNoData, err)
			}
			rowIdx++
			gap -= nopDeltaCycle
		}
		if i == 0 && c.absCycle != 0 {
			if err := dev.writeFSCRow(int(m.id), slot, rowIdx, fscRow{delta: uint32(gap), nop: true}); err != nil {
				return wrapErr("write_fsc_schedule", SysfsNoData, err)
			}
			rowIdx++
			gap = 0
		}
		row := fscRow{
			delta:    uint32(gap),
			gather:   uint16(c.gatherIndex),
			lookup:   uint16(c.scatterLookup),
			redund:   uint16(c.redundIndex),
			trigger:  c.trigger,
			winOpen:  c.winOpen,
			winClose: c.winClose,
		}
		if err := dev.writeFSCRow(int(m.id), slot, rowIdx, row); err != nil {
			return wrapErr("write_fsc_schedule", SysfsNoData, err)
		}
		rowIdx++
		prev = c.absCycle
	}

	if err := dev.writeFSCRow(int(m.id), slot, rowIdx, fscRow{delta: minFSCGapTicks, nop: len(cmds) == 0}); err != nil {
		return wrapErr("write_fsc_schedule", SysfsNoData, err)
	}

	if err := dev.writeModuleCycle(int(m.id), slot, m.CycleNS); err != nil {
		return wrapErr("write_fsc_schedule", SysfsNoData, err)
	}
	return wrapSysfsErr("write_fsc_schedule", dev.writeModuleStart(int(m.id), slot, m.Start))
}

// fscRow is the on-the-wire shape of one FSC table row.
type fscRow struct {
	delta    uint32
	gather   uint16
	lookup   uint16
	redund   uint16
	trigger  Trigger
	winOpen  bool
	winClose bool
	nop      bool
}

// insertSortedFSC inserts c into list, sorted ascending by absCycle;
// ties keep FIFO order.
func insertSortedFSC(list []*fscCommand, c *fscCommand) []*fscCommand {
	i := 0
	for i < len(list) && list[i].absCycle <= c.absCycle {
		i++
	}
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = c
	return list
}
