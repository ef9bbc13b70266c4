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

const (
	maxInsertOpsPerStream   = 8
	maxConstBufferPerModule = 4096
	maxForwardTruncationGap = 19
	minEgressFrameBytes     = 64
	maxEgressFrameBytes     = 1518
	usableGatherSlots       = maxGatherOpsPerModule - 2
	usableScatterSlots      = maxScatterOpsPerModule - 1
)

// Validate runs the full final-mode checks on a single stream.
func (s *Stream) Validate() error {
	return validateStreamFinal(s)
}

// Validate runs the full final-mode checks on the module and every
// stream it owns.
func (m *Module) Validate() error {
	return validateModuleLevel(m, true)
}

// Validate runs the full top-down final-mode validation, including the
// message-buffer table recompute, without writing to the device.
func (c *Configuration) Validate() error {
	return validateConfigFinal(c)
}

// validateStreamNonFinal runs the per-level stream checks that do not
// depend on the stream's place in a module or
// configuration: opcode admissibility (already enforced at
// AddOperation), insert-op count, and the Forward truncation rule.
// Frame-size bounds are final-only (a partially built stream is
// expected to be short).
func validateStreamNonFinal(s *Stream) error {
	return validateStreamLevel(s, false)
}

func validateStreamFinal(s *Stream) error {
	return validateStreamLevel(s, true)
}

func validateStreamLevel(s *Stream, final bool) error {
	ops := s.Operations()

	insertCount := 0
	running := 0
	for _, op := range ops {
		switch op.Code {
		case OpInsert:
			insertCount++
			running += op.Length
		case OpForward:
			if op.Offset > running+maxForwardTruncationGap {
				return newErr("validate_stream", ForwardOffset)
			}
			running += op.Length
		case OpInsertConstant, OpPad:
			if !op.generated {
				running += op.Length
			}
		}
	}
	if insertCount > maxInsertOpsPerStream {
		return newErr("validate_stream", TooManyInsertOps)
	}

	if final {
		if err := validateStreamSchedulePeriods(s); err != nil {
			return err
		}
		if s.Variant.egressCapable() {
			total := egressFrameSize(ops)
			if total < minEgressFrameBytes {
				return newErr("validate_stream", EgressFrameTooSmall)
			}
			if total > maxEgressFrameBytes {
				return newErr("validate_stream", PayloadTooLarge)
			}
		}
		if len(ops) == 0 && !ingressWithBoundEvent(s) {
			return newErr("validate_stream", OperationMissing)
		}
	}
	return nil
}

func egressFrameSize(ops []*Operation) int {
	total := 0
	for _, op := range ops {
		switch op.Code {
		case OpInsert, OpInsertConstant, OpPad, OpForward:
			total += op.Length
		}
	}
	return total
}

func ingressWithBoundEvent(s *Stream) bool {
	return s.Variant == VariantIngressTriggered && s.reference != nil && s.reference.Variant == VariantEvent
}

// validateStreamSchedulePeriods enforces "period divides cycle".
// Redundant streams are stricter: the schedule list must contain zero
// or one entry, and its period must equal the module cycle exactly.
func validateStreamSchedulePeriods(s *Stream) error {
	if s.module == nil {
		return nil
	}
	scheds := s.Schedules()
	if s.Variant == VariantRedundantTx || s.Variant == VariantRedundantRx {
		if len(scheds) > 1 {
			return newErr("validate_stream", PeriodIncompatible)
		}
		if len(scheds) == 1 && scheds[0].PeriodNS != s.module.CycleNS {
			return newErr("validate_stream", PeriodIncompatible)
		}
		return nil
	}
	for _, sch := range scheds {
		if sch.PeriodNS == 0 || s.module.CycleNS%sch.PeriodNS != 0 {
			return newErr("validate_stream", PeriodIncompatible)
		}
	}
	return nil
}

// validateModuleNonFinal walks every stream of m (already validated
// individually by its own AddOperation/AddSchedule calls) and checks
// the module-wide resource limits.
func validateModuleNonFinal(m *Module) error {
	return validateModuleLevel(m, false)
}

func validateModuleLevel(m *Module, final bool) error {
	if m.CycleNS == 0 {
		return newErr("validate_module", BadModuleCycle)
	}

	streams := m.Streams()

	constTotal := 0
	redundantCount := 0
	lookupCount := 0
	gatherOps := 0
	scatterOps := 0

	for _, s := range streams {
		if final {
			if err := validateStreamFinal(s); err != nil {
				return err
			}
		}
		if s.Lookup != nil {
			lookupCount++
		}
		if s.Variant == VariantRedundantTx || s.Variant == VariantRedundantRx {
			redundantCount++
		}
		for _, op := range s.Operations() {
			switch op.Code {
			case OpInsertConstant:
				constTotal += op.Length
			case OpRead:
				scatterOps++
			}
			if s.Variant.egressCapable() {
				gatherOps++
			}
		}
	}

	if constTotal > maxConstBufferPerModule {
		return newErr("validate_module", ConstBufferOverflow)
	}
	if redundantCount > maxRedundantStreamsPerModule {
		return newErr("validate_module", TooManyRedundantStreams)
	}
	if lookupCount > maxLookupEntriesPerModule {
		return newErr("validate_module", TooManyLookupEntries)
	}
	if gatherOps > usableGatherSlots {
		return newErr("validate_module", TooManyEgressOps)
	}
	if scatterOps > usableScatterSlots {
		return newErr("validate_module", TooManyIngressOps)
	}

	fsc := m.FSCList()
	limit := maxFSCCommandsPerModule
	if len(fsc) > 0 && fsc[0].absCycle != 0 {
		limit--
	}
	if len(fsc) > limit {
		return newErr("validate_module", TooManyScheduleEvents)
	}
	for i := 1; i < len(fsc); i++ {
		if fsc[i].absCycle == fsc[i-1].absCycle {
			continue
		}
		if fsc[i].absCycle-fsc[i-1].absCycle < minFSCGapTicks {
			return newErr("validate_module", BadScheduleTime)
		}
	}

	return nil
}

// validateConfigNonFinal validates the structural state of the
// configuration after a module add/remove: the fixed two-slot
// invariant is enforced by Configuration.AddModule itself, so this
// only re-runs each occupied module's own non-final check.
func validateConfigNonFinal(c *Configuration) error {
	for _, m := range c.modulesInOrder() {
		if err := validateModuleNonFinal(m); err != nil {
			return err
		}
	}
	return nil
}

// validateConfigFinal walks top-down, validating every entity at
// every level, recomputing the message-buffer table and checking
// buffer-count and total-size limits.
func validateConfigFinal(c *Configuration) error {
	for _, m := range c.modulesInOrder() {
		reassignModuleIndices(m)
		if err := validateModuleLevel(m, true); err != nil {
			return err
		}
	}
	if err := allocateMessageBuffers(c); err != nil {
		return err
	}
	return nil
}
