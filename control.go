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

// ReadBufferLockingVector reads the 64-bit bit-per-buffer lock mask.
func (c *Configuration) ReadBufferLockingVector() (uint64, error) {
	v, err := c.device().readBufferLockingVector()
	if err != nil {
		return 0, wrapErr("read_buffer_locking_vector", SysfsNoData, err)
	}
	return v, nil
}

// SetBufferLockingMask locks every message buffer whose bit is set in
// mask. mask is width-checked against the hardware-reported buffer
// count.
func (c *Configuration) SetBufferLockingMask(mask uint64) error {
	if err := c.checkBufferMaskWidth(mask); err != nil {
		return err
	}
	if err := c.device().writeBufferLockingMask(mask); err != nil {
		return wrapErr("set_buffer_locking_mask", SysfsNoData, err)
	}
	return nil
}

// SetBufferUnlockingMask unlocks every message buffer whose bit is set
// in mask.
func (c *Configuration) SetBufferUnlockingMask(mask uint64) error {
	if err := c.checkBufferMaskWidth(mask); err != nil {
		return err
	}
	if err := c.device().writeBufferUnlockingMask(mask); err != nil {
		return wrapErr("set_buffer_unlocking_mask", SysfsNoData, err)
	}
	return nil
}

func (c *Configuration) checkBufferMaskWidth(mask uint64) error {
	count, err := c.device().readCapabilityItem("msgbuf_count")
	if err != nil || count == 0 {
		count = maxMessageBuffers
	}
	if count < 64 && mask>>count != 0 {
		return newErr("buffer_mask", InvalidArgument)
	}
	return nil
}
