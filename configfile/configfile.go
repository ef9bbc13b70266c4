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

// Package configfile parses the companion "KEY VALUE" text file the
// library reads for the message-buffer name prefix, per-speed delay
// overrides and the recovery timeout. The on-disk format is
// whitespace-separated pairs, one per line.
package configfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// DefaultPath is the compiled-in location of the config file,
// overridable at the call site.
const DefaultPath = "/etc/default/config_acm"

// Delay keys, six per link speed.
const (
	Key100ChipIn    = "chip_rx_delay_100"
	Key100ChipEg    = "chip_tx_delay_100"
	Key100PhyIn     = "phy_rx_delay_100"
	Key100PhyEg     = "phy_tx_delay_100"
	Key100SerBypass = "ser_bypass_delay_100"
	Key100SerSwitch = "ser_switch_delay_100"

	Key1000ChipIn    = "chip_rx_delay_1000"
	Key1000ChipEg    = "chip_tx_delay_1000"
	Key1000PhyIn     = "phy_rx_delay_1000"
	Key1000PhyEg     = "phy_tx_delay_1000"
	Key1000SerBypass = "ser_bypass_delay_1000"
	Key1000SerSwitch = "ser_switch_delay_1000"

	KeyBufferPrefix    = "buffer_name_prefix"
	KeyRecoveryTimeout = "recovery_timeout_ms"
)

// Config is the parsed companion file, keyed by raw key name. Values
// are kept as strings; Uint/String accessors convert on read so a
// caller missing a key gets the compiled default rather than an error.
type Config struct {
	values map[string]string
}

// Load reads and parses the file at path. A missing file is not an
// error: every key falls back to its compiled default.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{values: map[string]string{}}, nil
		}
		return nil, fmt.Errorf("configfile: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads "KEY VALUE" pairs from r, one per line. Blank lines and
// lines starting with '#' are ignored.
func Parse(r io.Reader) (*Config, error) {
	c := &Config{values: map[string]string{}}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("configfile: malformed line %q", line)
		}
		c.values[fields[0]] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("configfile: scan: %w", err)
	}
	return c, nil
}

// String returns the raw value for key, or def if absent.
func (c *Config) String(key, def string) string {
	if v, ok := c.values[key]; ok {
		return v
	}
	return def
}

// Uint64 returns key parsed as a decimal unsigned integer, or def if
// absent or unparsable; an unparsable value is not reported (callers
// that need to tell it apart from an absent key should call Lookup
// instead).
func (c *Config) Uint64(key string, def uint64) uint64 {
	raw, ok := c.values[key]
	if !ok {
		return def
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return def
	}
	return v
}

// Lookup returns the raw value and whether key was present, so a
// caller can distinguish "missing, use default" from "present but
// malformed".
func (c *Config) Lookup(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}
