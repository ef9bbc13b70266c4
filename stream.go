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

// StreamVariant is the tagged-union discriminator for a Stream. A
// stream's variant can change at runtime (set_reference_stream
// transitions) so it is a mutable field, not a type hierarchy.
type StreamVariant int

const (
	VariantTimeTriggered StreamVariant = iota
	VariantIngressTriggered
	VariantEvent
	VariantRecovery
	VariantRedundantTx
	VariantRedundantRx
)

func (v StreamVariant) String() string {
	switch v {
	case VariantTimeTriggered:
		return "time_triggered"
	case VariantIngressTriggered:
		return "ingress_triggered"
	case VariantEvent:
		return "event"
	case VariantRecovery:
		return "recovery"
	case VariantRedundantTx:
		return "redundant_tx"
	case VariantRedundantRx:
		return "redundant_rx"
	default:
		return "unknown_variant"
	}
}

// egressCapable reports whether the variant builds an outbound frame
// from Insert/InsertConstant/Pad/Forward operations and therefore gets
// the three auto-seeded header operations at creation.
func (v StreamVariant) egressCapable() bool {
	switch v {
	case VariantTimeTriggered, VariantEvent, VariantRecovery, VariantRedundantTx:
		return true
	default:
		return false
	}
}

// Stream is an ordered list of Operations plus an unordered list of
// Schedule entries, with cross-reference slots that never carry
// ownership; ownership lives solely in the downward tree.
type Stream struct {
	id      uint64
	Variant StreamVariant

	opsLock listLock
	ops     []*Operation

	schedLock listLock
	schedules []*Schedule

	Lookup *Lookup // bound at creation for ingress-triggered streams only

	reference          *Stream // parent -> child
	referenceParent    *Stream // child -> parent, inverse of reference
	referenceRedundant *Stream // symmetric, between a RedundantTx pair

	module *Module // nil if detached

	// DMAC/SMAC/VLAN/Prio back the three auto-generated header
	// operations; SMAC may be the reserved placeholder, patched to the
	// module port MAC when the stream is added to a module.
	dmac, smac [6]byte
	vlanID     uint16
	prio       uint8
	smacIsPort bool

	// Computed by the compiler, invalidated on structural mutation.
	gatherDMAIndex      int
	scatterDMAIndex     int
	redundantIndex      int
	indivRecovTimeoutMS int
}

var reservedPortMAC = [6]byte{0, 0, 0, 0, 0, 0}

// numHeaderOps is the count of auto-generated header operations every
// egress-capable stream is seeded with (DMAC, SMAC, VLAN tag).
const numHeaderOps = 3

func newHeaderOps(dmac, smac [6]byte, vlanID uint16, prio uint8) []*Operation {
	header := make([]byte, 16)
	copy(header[0:6], dmac[:])
	copy(header[6:12], smac[:])
	header[12] = byte(vlanID >> 8)
	header[13] = byte(vlanID)
	header[14] = prio
	header[15] = 0
	op1, _ := NewInsertConstantOperation(header[0:6])
	op2, _ := NewInsertConstantOperation(header[6:12])
	op3, _ := NewInsertConstantOperation(header[12:16])
	op1.generated, op2.generated, op3.generated = true, true, true
	return []*Operation{op1, op2, op3}
}

func newStream(variant StreamVariant, dmac, smac [6]byte, vlanID uint16, prio uint8) *Stream {
	s := &Stream{id: nextGlobalID(), Variant: variant, dmac: dmac, smac: smac, vlanID: vlanID, prio: prio}
	if smac == reservedPortMAC {
		s.smacIsPort = true
	}
	if variant.egressCapable() {
		s.ops = newHeaderOps(dmac, smac, vlanID, prio)
	}
	return s
}

// NewTimeTriggeredStream creates a detached periodic egress stream.
func NewTimeTriggeredStream(dmac, smac [6]byte, vlanID uint16, prio uint8) (*Stream, error) {
	return newStream(VariantTimeTriggered, dmac, smac, vlanID, prio), nil
}

// NewIngressTriggeredStream creates a detached ingress classification
// stream; its Lookup entry is bound at creation.
func NewIngressTriggeredStream(headerPattern, headerMask [16]byte, filterPattern, filterMask []byte, filterSize int) (*Stream, error) {
	lk, err := NewLookup(headerPattern, headerMask, filterPattern, filterMask, filterSize)
	if err != nil {
		return nil, err
	}
	s := &Stream{id: nextGlobalID(), Variant: VariantIngressTriggered}
	s.Lookup = lk
	return s, nil
}

// NewEventStream creates a detached stream chained from an
// IngressTriggered parent via SetReference.
func NewEventStream(dmac, smac [6]byte, vlanID uint16, prio uint8) (*Stream, error) {
	return newStream(VariantEvent, dmac, smac, vlanID, prio), nil
}

// NewRecoveryStream creates a detached stream chained from an Event
// parent via SetReference.
func NewRecoveryStream(dmac, smac [6]byte, vlanID uint16, prio uint8) (*Stream, error) {
	return newStream(VariantRecovery, dmac, smac, vlanID, prio), nil
}

// AddOperation appends op to the stream's recipe and immediately
// triggers non-final validation of the stream; on failure the append
// is rolled back and op is not attached.
func (s *Stream) AddOperation(op *Operation) error {
	if s.module != nil && s.module.config != nil && s.module.config.applied {
		return newErr("add_operation", PermissionDenied)
	}
	if !opcodeAllowed(s.Variant, op.Code) {
		return newErr("add_operation", InvalidArgument)
	}
	s.opsLock.Lock()
	s.ops = append(s.ops, op)
	s.opsLock.Unlock()

	if err := validateStreamNonFinal(s); err != nil {
		s.opsLock.Lock()
		s.ops = s.ops[:len(s.ops)-1]
		s.opsLock.Unlock()
		return logFail(err.(*Error))
	}
	return nil
}

// CleanOperations empties the user-added tail of the stream's
// operation list: the three auto-generated header operations on an
// egress-capable stream are preserved; an ingress-triggered stream's
// list becomes fully empty.
func (s *Stream) CleanOperations() {
	s.opsLock.Lock()
	defer s.opsLock.Unlock()
	kept := s.ops[:0:0]
	for _, op := range s.ops {
		if op.generated {
			kept = append(kept, op)
		}
	}
	s.ops = kept
}

// Operations returns a snapshot of the stream's current operation list.
func (s *Stream) Operations() []*Operation {
	s.opsLock.Lock()
	defer s.opsLock.Unlock()
	out := make([]*Operation, len(s.ops))
	copy(out, s.ops)
	return out
}

// AddSchedule appends a schedule entry, generating FSC commands for
// it immediately if the stream already belongs to a module, then runs
// non-final validation; on failure the whole addition rolls back.
func (s *Stream) AddSchedule(sch *Schedule) error {
	if s.module != nil && s.module.config != nil && s.module.config.applied {
		return newErr("add_schedule", PermissionDenied)
	}
	switch sch.Kind {
	case ScheduleEvent:
		if s.Variant != VariantTimeTriggered && s.Variant != VariantRedundantTx {
			return newErr("add_schedule", PermissionDenied)
		}
	case ScheduleWindow:
		if s.Variant != VariantIngressTriggered && s.Variant != VariantRedundantRx {
			return newErr("add_schedule", PermissionDenied)
		}
	}

	s.schedLock.Lock()
	s.schedules = append(s.schedules, sch)
	s.schedLock.Unlock()

	var generated []*fscCommand
	if s.module != nil {
		var err error
		generated, err = generateFSCCommands(s.module, s, sch)
		if err != nil {
			s.schedLock.Lock()
			s.schedules = s.schedules[:len(s.schedules)-1]
			s.schedLock.Unlock()
			return logFail(err.(*Error))
		}
		sch.fscCommands = generated
		s.module.insertFSCCommands(generated)
	}

	if err := validateStreamNonFinal(s); err != nil {
		if s.module != nil {
			s.module.removeFSCCommands(generated)
			sch.fscCommands = nil
		}
		s.schedLock.Lock()
		s.schedules = s.schedules[:len(s.schedules)-1]
		s.schedLock.Unlock()
		return logFail(err.(*Error))
	}
	return nil
}

// CleanSchedule removes every schedule entry and its generated FSC
// commands.
func (s *Stream) CleanSchedule() {
	s.schedLock.Lock()
	old := s.schedules
	s.schedules = nil
	s.schedLock.Unlock()
	if s.module != nil {
		for _, sch := range old {
			s.module.removeFSCCommands(sch.fscCommands)
		}
	}
}

// Schedules returns a snapshot of the stream's current schedule list.
func (s *Stream) Schedules() []*Schedule {
	s.schedLock.Lock()
	defer s.schedLock.Unlock()
	out := make([]*Schedule, len(s.schedules))
	copy(out, s.schedules)
	return out
}

// SetRTag declares that frames matched by this ingress-triggered
// stream carry a redundancy tag: the stream becomes the redundant-RX
// peer of a transmit pair and individual recovery is armed with the
// given timeout. Fails on any other stream variant.
func (s *Stream) SetRTag(timeoutNS uint64) error {
	if s.Variant != VariantIngressTriggered {
		return newErr("set_rtag", PermissionDenied)
	}
	s.Variant = VariantRedundantRx
	s.indivRecovTimeoutMS = int(timeoutNS / 1_000_000)
	return nil
}

var referencePairs = map[StreamVariant]StreamVariant{
	VariantIngressTriggered: VariantEvent,
	VariantEvent:            VariantRecovery,
}

// SetReference links parent -> child: an ingress-triggered stream to
// the event stream generated from its frames, an event stream to its
// recovery fallback, or two time-triggered streams into a redundant
// pair. A redundant pairing sets the symmetric reference_redundant
// back-pointers and relabels both streams RedundantTx instead of
// creating a chain link; the pair's receive peers are declared
// separately via SetRTag on their ingress-triggered streams.
func SetReference(parent, child *Stream) error {
	if parent.reference != nil || child.referenceParent != nil {
		return newErr("set_reference", PermissionDenied)
	}

	if parent.Variant == VariantTimeTriggered && child.Variant == VariantTimeTriggered {
		if parent.referenceRedundant != nil || child.referenceRedundant != nil {
			return newErr("set_reference", PermissionDenied)
		}
		if parent.module != nil && child.module != nil && parent.module == child.module {
			return newErr("set_reference", RedundantSameModule)
		}
		if parent.module != nil && child.module != nil &&
			parent.module.config != nil && child.module.config != nil &&
			parent.module.config != child.module.config {
			return newErr("set_reference", DifferentConfig)
		}
		parent.referenceRedundant = child
		child.referenceRedundant = parent
		parent.Variant = VariantRedundantTx
		child.Variant = VariantRedundantTx
		return nil
	}

	want, ok := referencePairs[parent.Variant]
	if !ok || want != child.Variant {
		return newErr("set_reference", InvalidArgument)
	}
	parent.reference = child
	child.referenceParent = parent
	return nil
}

// Destroy releases a detached stream. It is a no-op on a stream that
// is added to a module, or on an Event/Recovery stream still
// referenced by its parent chain link. Destroying one side of a
// redundant TimeTriggered pair is permitted: the partner is
// reconverted to a plain TimeTriggered stream.
func (s *Stream) Destroy() {
	if s.module != nil {
		return
	}
	if s.referenceParent != nil && (s.Variant == VariantEvent || s.Variant == VariantRecovery) {
		return
	}
	if s.referenceRedundant != nil {
		partner := s.referenceRedundant
		partner.referenceRedundant = nil
		partner.Variant = VariantTimeTriggered
		s.referenceRedundant = nil
		s.Variant = VariantTimeTriggered
	}
	if s.reference != nil {
		s.reference.referenceParent = nil
		s.reference = nil
	}
	Log().Debug("stream destroyed", zap.Uint64("stream_id", s.id))
}
