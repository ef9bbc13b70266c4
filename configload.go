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

import "github.com/STMicroelectronics/tttech-tsn-acm-content-sub001/configfile"

// ApplyConfigFile overrides the per-speed delay table on m and the
// process-wide buffer name prefix from cfg. The config file is read
// fresh for each module: callers load it once per NewModule call and
// pass it here.
func (m *Module) ApplyConfigFile(cfg *configfile.Config) {
	if cfg == nil {
		return
	}
	if v, ok := cfg.Lookup(configfile.KeyBufferPrefix); ok {
		SetBufferNamePrefix(v)
	}
	switch m.LinkSpeed {
	case Speed100Mbps:
		m.Delays = DelayTable{
			ChipIn:    cfg.Uint64(configfile.Key100ChipIn, m.Delays.ChipIn),
			ChipEg:    cfg.Uint64(configfile.Key100ChipEg, m.Delays.ChipEg),
			PhyIn:     cfg.Uint64(configfile.Key100PhyIn, m.Delays.PhyIn),
			PhyEg:     cfg.Uint64(configfile.Key100PhyEg, m.Delays.PhyEg),
			SerBypass: cfg.Uint64(configfile.Key100SerBypass, m.Delays.SerBypass),
			SerSwitch: cfg.Uint64(configfile.Key100SerSwitch, m.Delays.SerSwitch),
		}
	case Speed1Gbps:
		m.Delays = DelayTable{
			ChipIn:    cfg.Uint64(configfile.Key1000ChipIn, m.Delays.ChipIn),
			ChipEg:    cfg.Uint64(configfile.Key1000ChipEg, m.Delays.ChipEg),
			PhyIn:     cfg.Uint64(configfile.Key1000PhyIn, m.Delays.PhyIn),
			PhyEg:     cfg.Uint64(configfile.Key1000PhyEg, m.Delays.PhyEg),
			SerBypass: cfg.Uint64(configfile.Key1000SerBypass, m.Delays.SerBypass),
			SerSwitch: cfg.Uint64(configfile.Key1000SerSwitch, m.Delays.SerSwitch),
		}
	}
	for _, s := range m.Streams() {
		if s.Variant == VariantRedundantTx || s.Variant == VariantRedundantRx {
			s.indivRecovTimeoutMS = int(cfg.Uint64(configfile.KeyRecoveryTimeout, uint64(s.indivRecovTimeoutMS)))
		}
	}
}
