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
	"errors"
	"fmt"
)

// Code is a stable, closed enumeration of error kinds a caller can branch
// on. The same invariant always signals the same code; codes are never
// wrapped or replaced as they propagate upward.
type Code int

const (
	OK Code = iota
	InvalidArgument
	PermissionDenied
	OutOfMemory
	EgressFrameTooSmall
	OperationMissing
	ConstBufferOverflow
	TooManyRedundantStreams
	TooManyScheduleEvents
	TooManyLookupEntries
	TooManyIngressOps
	TooManyEgressOps
	PeriodIncompatible
	SysfsNoData
	BadModuleCycle
	BadScheduleTime
	ScheduleCreation
	Internal
	DifferentConfig
	StreamNotInConfig
	TooManyMessageBuffers
	NoFreeScheduleTable
	ForwardOffset
	PayloadTooLarge
	BufferNameNotFound
	ConfigItemMissing
	ConfigValueOverflow
	RedundantSameModule
	TooManyInsertOps
)

var codeNames = map[Code]string{
	OK:                      "ok",
	InvalidArgument:         "invalid_argument",
	PermissionDenied:        "permission_denied",
	OutOfMemory:             "out_of_memory",
	EgressFrameTooSmall:     "egress_frame_too_small",
	OperationMissing:        "operation_missing",
	ConstBufferOverflow:     "const_buffer_overflow",
	TooManyRedundantStreams: "too_many_redundant_streams",
	TooManyScheduleEvents:   "too_many_schedule_events",
	TooManyLookupEntries:    "too_many_lookup_entries",
	TooManyIngressOps:       "too_many_ingress_ops",
	TooManyEgressOps:        "too_many_egress_ops",
	PeriodIncompatible:      "period_incompatible",
	SysfsNoData:             "sysfs_no_data",
	BadModuleCycle:          "bad_module_cycle",
	BadScheduleTime:         "bad_schedule_time",
	ScheduleCreation:        "schedule_creation",
	Internal:                "internal",
	DifferentConfig:         "different_config",
	StreamNotInConfig:       "stream_not_in_config",
	TooManyMessageBuffers:   "too_many_message_buffers",
	NoFreeScheduleTable:     "no_free_schedule_table",
	ForwardOffset:           "forward_offset",
	PayloadTooLarge:         "payload_too_large",
	BufferNameNotFound:      "buffer_name_not_found",
	ConfigItemMissing:       "config_item_missing",
	ConfigValueOverflow:     "config_value_overflow",
	RedundantSameModule:     "redundant_same_module",
	TooManyInsertOps:        "too_many_insert_ops",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Error is the error type returned by every mutating or validating call in
// this package. Op names the function that first detected the problem; Err,
// when set, is an underlying I/O error (e.g. from the device backend) that
// is preserved unchanged rather than wrapped away, so callers that only
// care about Code can ignore it.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("acm: %s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("acm: %s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the Code carried by err, or Internal if err is not one of
// this package's errors (e.g. a bug surfaced a plain error).
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return Internal
}

func newErr(op string, code Code) *Error {
	return &Error{Code: code, Op: op}
}

func wrapErr(op string, code Code, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}
