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
	lookupHeaderSize     = 16
	lookupMaxFilterSize  = 112
	lookupSlotsPerModule = 16
)

// Lookup is the ingress classification entry bound to exactly one
// IngressTriggered stream at creation: a 16-byte header pattern+mask
// plus an optional payload filter of identical size.
type Lookup struct {
	HeaderPattern [lookupHeaderSize]byte
	HeaderMask    [lookupHeaderSize]byte

	FilterSize    int
	FilterPattern []byte
	FilterMask    []byte

	// lookupIndex is compiler-assigned, invalidated on structural
	// mutation of the owning module.
	lookupIndex int
}

// NewLookup builds a detached Lookup entry. filterPattern/filterMask
// must either both be nil (no payload filter) or both len==filterSize.
func NewLookup(headerPattern, headerMask [16]byte, filterPattern, filterMask []byte, filterSize int) (*Lookup, error) {
	if filterSize < 0 || filterSize > lookupMaxFilterSize {
		return nil, newErr("lookup_filter_size", InvalidArgument)
	}
	if filterSize == 0 {
		if len(filterPattern) != 0 || len(filterMask) != 0 {
			return nil, newErr("lookup_filter_size", InvalidArgument)
		}
	} else {
		if len(filterPattern) != filterSize || len(filterMask) != filterSize {
			return nil, newErr("lookup_filter_size", InvalidArgument)
		}
	}
	l := &Lookup{
		HeaderPattern: headerPattern,
		HeaderMask:    headerMask,
		FilterSize:    filterSize,
	}
	if filterSize > 0 {
		l.FilterPattern = append([]byte(nil), filterPattern...)
		l.FilterMask = append([]byte(nil), filterMask...)
	}
	return l, nil
}
