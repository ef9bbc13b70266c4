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

import "encoding/binary"

// Diagnostics is a snapshot of the device's per-module diagnostic
// counters. A missing or short backing file yields a zeroed
// Diagnostics and an error rather than a panic.
type Diagnostics struct {
	FrameErrors    uint32
	BufferOverruns uint32
	ScheduleMisses uint32
	LookupMisses   uint32
}

const diagnosticsRecordSize = 16

func unmarshalDiagnostics(raw []byte) Diagnostics {
	if len(raw) < diagnosticsRecordSize {
		return Diagnostics{}
	}
	return Diagnostics{
		FrameErrors:    binary.LittleEndian.Uint32(raw[0:4]),
		BufferOverruns: binary.LittleEndian.Uint32(raw[4:8]),
		ScheduleMisses: binary.LittleEndian.Uint32(raw[8:12]),
		LookupMisses:   binary.LittleEndian.Uint32(raw[12:16]),
	}
}

// ReadStatusItem reads one named per-module status scalar.
func (c *Configuration) ReadStatusItem(moduleID ModuleID, item string) (uint64, error) {
	v, err := c.device().readStatusItem(int(moduleID), item)
	if err != nil {
		return 0, wrapErr("read_status_item", SysfsNoData, err)
	}
	return v, nil
}

// ReadConfigIdentifier reads the hardware's live configuration-id
// register.
func (c *Configuration) ReadConfigIdentifier() (uint32, error) {
	v, err := c.device().readConfigID()
	if err != nil {
		return 0, wrapErr("read_config_identifier", SysfsNoData, err)
	}
	return v, nil
}

// ReadDiagnostics returns the diagnostic counter snapshot for moduleID.
func (c *Configuration) ReadDiagnostics(moduleID ModuleID) (Diagnostics, error) {
	d, err := c.device().readDiagnostics(int(moduleID))
	if err != nil {
		return Diagnostics{}, wrapErr("read_diagnostics", SysfsNoData, err)
	}
	return d, nil
}

// SetDiagnosticsPollTime configures how often the device refreshes its
// diagnostic counters for moduleID.
func (c *Configuration) SetDiagnosticsPollTime(moduleID ModuleID, ms int) error {
	if err := c.device().setDiagnosticsPollTime(int(moduleID), ms); err != nil {
		return wrapErr("set_diagnostics_poll_time", SysfsNoData, err)
	}
	return nil
}

// ReadCapabilityItem reads one named hardware capability scalar (e.g.
// the scheduler tick frequency, CAP_MIN_SCHEDULE_TICK).
func (c *Configuration) ReadCapabilityItem(item string) (uint64, error) {
	v, err := c.device().readCapabilityItem(item)
	if err != nil {
		return 0, wrapErr("read_capability_item", SysfsNoData, err)
	}
	return v, nil
}

// ReadLibVersion returns this library's version string.
func (c *Configuration) ReadLibVersion() (string, error) {
	return c.device().readLibVersion()
}

// ReadIPVersion returns the hardware IP block's version string.
func (c *Configuration) ReadIPVersion() (string, error) {
	v, err := c.device().readIPVersion()
	if err != nil {
		return "", wrapErr("read_ip_version", SysfsNoData, err)
	}
	return v, nil
}

// GetBufferID returns the message-buffer index bound to name, or
// BufferNameNotFound if no buffer with that name has been compiled.
// Two names merged by buffer reuse share one id.
func (c *Configuration) GetBufferID(name string) (int, error) {
	b := c.BufferByName(name)
	if b == nil {
		return 0, newErr("get_buffer_id", BufferNameNotFound)
	}
	return b.Index, nil
}
