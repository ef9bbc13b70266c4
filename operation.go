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
	"strings"
	"sync"
)

// Opcode identifies one of the six frame-recipe instructions an
// Operation can carry.
type Opcode int

const (
	OpInsert Opcode = iota
	OpInsertConstant
	OpPad
	OpForward
	OpRead
	OpForwardAll
)

func (o Opcode) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpInsertConstant:
		return "insert_constant"
	case OpPad:
		return "pad"
	case OpForward:
		return "forward"
	case OpRead:
		return "read"
	case OpForwardAll:
		return "forward_all"
	default:
		return "unknown_opcode"
	}
}

// opBoundary is the per-opcode {min, max} length bound.
// Forward and Read additionally bound offset+length.
var opBoundary = map[Opcode][2]int{
	OpInsert:         {3, 1500},
	OpInsertConstant: {1, 1500},
	OpPad:            {1, 1500},
	OpForward:        {2, 1508},
	OpRead:           {4, 1528},
}

const maxOffsetPlusLength = 1528

const maxBufferNameLen = 55

var (
	bufferPrefixMu sync.RWMutex
	bufferPrefix   = "acm_"
)

// BufferNamePrefix returns the prefix every message-buffer name must
// begin with. It is process-global: every module created in this
// process shares one prefix.
func BufferNamePrefix() string {
	bufferPrefixMu.RLock()
	defer bufferPrefixMu.RUnlock()
	return bufferPrefix
}

// SetBufferNamePrefix overrides the default "acm_" prefix, normally
// called once at startup from a value loaded by the configfile package.
func SetBufferNamePrefix(prefix string) {
	bufferPrefixMu.Lock()
	defer bufferPrefixMu.Unlock()
	if prefix == "" {
		prefix = "acm_"
	}
	bufferPrefix = prefix
}

// Operation is one element of a stream's ordered frame recipe.
type Operation struct {
	Code   Opcode
	Length int
	Offset int

	// BufferName is set for Insert and Read only.
	BufferName string

	// Data backs InsertConstant (arbitrary bytes) and Pad (single fill
	// byte, Data[0]).
	Data []byte

	// msgBuf and constBuffOffset are compiler-assigned, invalidated on
	// every structural mutation of the owning stream.
	msgBuf          *MessageBuffer
	constBuffOffset int

	generated bool // true for the three auto-seeded header operations
}

func checkBufferName(name string) error {
	if name == "" || len(name) > maxBufferNameLen {
		return newErr("buffer_name", InvalidArgument)
	}
	if !strings.HasPrefix(name, BufferNamePrefix()) {
		return newErr("buffer_name", InvalidArgument)
	}
	return nil
}

func checkLength(op Opcode, length int) error {
	b, ok := opBoundary[op]
	if !ok {
		return nil
	}
	if length < b[0] || length > b[1] {
		return newErr("operation_length", InvalidArgument)
	}
	return nil
}

// NewInsertOperation creates a detached Insert operation: length bytes
// copied from a named host message buffer into the egress frame.
func NewInsertOperation(length int, bufferName string) (*Operation, error) {
	if err := checkLength(OpInsert, length); err != nil {
		return nil, err
	}
	if err := checkBufferName(bufferName); err != nil {
		return nil, err
	}
	return &Operation{Code: OpInsert, Length: length, BufferName: bufferName}, nil
}

// NewInsertConstantOperation creates a detached InsertConstant
// operation carrying len(data) bytes of fixed payload.
func NewInsertConstantOperation(data []byte) (*Operation, error) {
	if err := checkLength(OpInsertConstant, len(data)); err != nil {
		return nil, err
	}
	buf := append([]byte(nil), data...)
	return &Operation{Code: OpInsertConstant, Length: len(data), Data: buf}, nil
}

// NewPadOperation creates a detached Pad operation: length bytes of a
// single fill byte.
func NewPadOperation(length int, fill byte) (*Operation, error) {
	if err := checkLength(OpPad, length); err != nil {
		return nil, err
	}
	return &Operation{Code: OpPad, Length: length, Data: []byte{fill}}, nil
}

// NewForwardOperation creates a detached Forward operation: length
// bytes copied from the ingress frame starting at offset.
func NewForwardOperation(offset, length int) (*Operation, error) {
	if err := checkLength(OpForward, length); err != nil {
		return nil, err
	}
	if offset < 0 || offset+length > maxOffsetPlusLength {
		return nil, newErr("operation_offset", InvalidArgument)
	}
	return &Operation{Code: OpForward, Offset: offset, Length: length}, nil
}

// NewReadOperation creates a detached Read operation: length bytes
// copied from the ingress frame at offset into a named host message
// buffer (the hardware appends a 4-byte timestamp on top).
func NewReadOperation(offset, length int, bufferName string) (*Operation, error) {
	if err := checkLength(OpRead, length); err != nil {
		return nil, err
	}
	if offset < 0 || offset+length > maxOffsetPlusLength {
		return nil, newErr("operation_offset", InvalidArgument)
	}
	if err := checkBufferName(bufferName); err != nil {
		return nil, err
	}
	return &Operation{Code: OpRead, Offset: offset, Length: length, BufferName: bufferName}, nil
}

// NewForwardAllOperation creates a detached ForwardAll operation: the
// entire ingress frame is forwarded verbatim. It carries no
// length/offset.
func NewForwardAllOperation() (*Operation, error) {
	return &Operation{Code: OpForwardAll}, nil
}

// opcodeAllowed reports whether code is a legal opcode for variant.
func opcodeAllowed(v StreamVariant, code Opcode) bool {
	switch v {
	case VariantTimeTriggered, VariantRedundantTx:
		switch code {
		case OpInsert, OpInsertConstant, OpPad:
			return true
		}
	case VariantIngressTriggered:
		return code == OpRead || code == OpForwardAll
	case VariantRedundantRx:
		return code == OpRead
	case VariantEvent:
		switch code {
		case OpInsert, OpInsertConstant, OpPad, OpForward:
			return true
		}
	case VariantRecovery:
		switch code {
		case OpInsert, OpInsertConstant, OpPad:
			return true
		}
	}
	return false
}
