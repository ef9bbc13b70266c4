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

// Configuration owns up to two module slots, the global message-buffer
// table the compiler fills, and the applied flag. It is the unit of
// apply/disable and the root of the ownership tree.
type Configuration struct {
	ctx *Context

	slots   [maxModuleSlots]*Module
	buffers []*MessageBuffer
	applied bool
}

// NewConfiguration creates a detached configuration bound to ctx's
// device backend. A nil ctx uses a fresh Context over the default
// on-disk sysfs root.
func NewConfiguration(ctx *Context) *Configuration {
	if ctx == nil {
		ctx = NewContext(nil)
	}
	return &Configuration{ctx: ctx}
}

func (c *Configuration) device() deviceBackend {
	return c.ctx.device
}

// Applied reports whether apply_config has succeeded on this
// configuration.
func (c *Configuration) Applied() bool {
	return c.applied
}

// Modules returns the two fixed module slots, index matching ModuleID
// (nil where unoccupied).
func (c *Configuration) Modules() [2]*Module {
	return c.slots
}

// modulesInOrder returns occupied slots in config (module-id) order,
// used by the compiler passes of §4.4.
func (c *Configuration) modulesInOrder() []*Module {
	var out []*Module
	for _, m := range c.slots {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// AddModule binds m into the slot indexed by m's module id. Rejects a
// second module at the same id, or a module already bound elsewhere.
// On validation failure the bind is reversed and module.config is
// cleared.
func (c *Configuration) AddModule(m *Module) error {
	if c.applied {
		return newErr("add_module", PermissionDenied)
	}
	if m.config != nil {
		return newErr("add_module", PermissionDenied)
	}
	if c.slots[m.id] != nil {
		return newErr("add_module", PermissionDenied)
	}

	c.slots[m.id] = m
	m.config = c

	if err := validateConfigNonFinal(c); err != nil {
		c.slots[m.id] = nil
		m.config = nil
		return logFail(err.(*Error))
	}
	return nil
}

// ApplyConfig runs final validation, compiles and writes every
// hardware table in a fixed order, writes identifier to the
// configuration-id register last, and marks the configuration
// applied. identifier must be nonzero. A reader observing the new id
// therefore knows the tables are already committed.
func (c *Configuration) ApplyConfig(identifier uint32) error {
	if identifier == 0 {
		return logFail(newErr("apply_config", InvalidArgument))
	}
	if err := validateConfigFinal(c); err != nil {
		return logFail(err.(*Error))
	}
	if err := allocateMessageBuffers(c); err != nil {
		return logFail(err.(*Error))
	}
	if err := writeHardwareTables(c); err != nil {
		return logFail(err.(*Error))
	}
	for _, m := range c.modulesInOrder() {
		if err := writeFSCSchedule(c.device(), m); err != nil {
			return logFail(err.(*Error))
		}
		if err := c.device().clearEmergencyDisable(int(m.id)); err != nil {
			return logFail(wrapErr("apply_config", SysfsNoData, err))
		}
	}
	if err := c.device().writeConfigID(identifier); err != nil {
		return logFail(wrapErr("apply_config", SysfsNoData, err))
	}
	c.applied = true
	Log().Info("configuration applied",
		zap.Uint32("config_id", identifier),
		zap.String("build_id", c.ctx.BuildID.String()),
	)
	return nil
}

// ApplySchedule reads the live configuration id, aborts if it does not
// match expectedID, then runs final validation and rewrites only the
// FSC tables and per-module cycle/start/emergency-disable, finally
// writing newID.
func (c *Configuration) ApplySchedule(newID, expectedID uint32) error {
	live, err := c.device().readConfigID()
	if err != nil {
		return logFail(wrapErr("apply_schedule", SysfsNoData, err))
	}
	if live != expectedID {
		return logFail(newErr("apply_schedule", InvalidArgument))
	}
	if err := validateConfigFinal(c); err != nil {
		return logFail(err.(*Error))
	}
	for _, m := range c.modulesInOrder() {
		reassignModuleIndices(m)
		if err := writeFSCSchedule(c.device(), m); err != nil {
			return logFail(err.(*Error))
		}
		if err := c.device().clearEmergencyDisable(int(m.id)); err != nil {
			return logFail(wrapErr("apply_schedule", SysfsNoData, err))
		}
	}
	if err := c.device().writeConfigID(newID); err != nil {
		return logFail(wrapErr("apply_schedule", SysfsNoData, err))
	}
	return nil
}

// DisableConfig removes the applied configuration: writes the clear
// sentinel to every module and restores default parallel-mode delays.
func (c *Configuration) DisableConfig() error {
	for _, m := range c.modulesInOrder() {
		if err := c.device().clearModule(int(m.id)); err != nil {
			return logFail(wrapErr("disable_config", SysfsNoData, err))
		}
		m.ConnMode = ConnParallel
		m.Delays = defaultDelayTable(m.LinkSpeed)
	}
	c.applied = false
	return nil
}

// MessageBuffers returns a snapshot of the configuration's compiled
// message-buffer table (empty until the first successful ApplyConfig
// or a direct allocateMessageBuffers call from validation).
func (c *Configuration) MessageBuffers() []*MessageBuffer {
	out := make([]*MessageBuffer, len(c.buffers))
	copy(out, c.buffers)
	return out
}

// BufferByName returns the message buffer with the given name, or
// nil. Two names merged by buffer reuse resolve to the same
// descriptor.
func (c *Configuration) BufferByName(name string) *MessageBuffer {
	for _, b := range c.buffers {
		if b.Name == name {
			return b
		}
	}
	return nil
}
