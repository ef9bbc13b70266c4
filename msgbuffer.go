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

// Direction distinguishes a message buffer's transfer direction.
type Direction int

const (
	DirTX Direction = iota
	DirRX
)

func (d Direction) String() string {
	if d == DirTX {
		return "tx"
	}
	return "rx"
}

const (
	maxMessageBuffers  = 32
	blockGranularity   = 4 // bytes per hardware block; device may report otherwise
	readTimestampBytes = 4
)

// MessageBuffer is a named, host-visible DMA buffer allocated by the
// compiler's buffer-allocation pass, never constructed directly by
// callers.
type MessageBuffer struct {
	Index        int
	ByteOffset   int
	Direction    Direction
	SizeInBlocks int
	Name         string
	Valid        bool
	Timestamp    bool
	Reset        bool
}

func newMessageBuffer(index, offset int, dir Direction, sizeBlocks int, name string) *MessageBuffer {
	return &MessageBuffer{
		Index:        index,
		ByteOffset:   offset,
		Direction:    dir,
		SizeInBlocks: sizeBlocks,
		Name:         name,
		Valid:        true,
		Timestamp:    true,
	}
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
