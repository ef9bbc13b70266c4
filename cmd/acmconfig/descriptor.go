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

package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	acm "github.com/STMicroelectronics/tttech-tsn-acm-content-sub001"
)

// descriptor is the JSON shape the CLI reads: a small, direct
// transliteration of the library's build calls (modules -> streams ->
// operations/schedule), not a general-purpose config language. The
// library itself keeps no persisted state, so every command re-builds
// the whole graph from this file before acting on it.
type descriptor struct {
	Modules []moduleDesc `json:"modules"`
}

type moduleDesc struct {
	ID        int          `json:"id"`
	Mode      string       `json:"mode"` // "serial" | "parallel"
	Speed     string       `json:"speed"` // "100" | "1000"
	CycleNS   uint64       `json:"cycle_ns"`
	StartUnix int64        `json:"start_unix_ns"`
	Streams   []streamDesc `json:"streams"`
}

type streamDesc struct {
	Variant string `json:"variant"` // "time_triggered" | "ingress_triggered" | "event" | "recovery"
	DMAC    string `json:"dmac"`
	SMAC    string `json:"smac"`
	VLANID  int    `json:"vlan_id"`
	Prio    int    `json:"prio"`

	HeaderPattern string `json:"header_pattern"` // hex, ingress only
	HeaderMask    string `json:"header_mask"`

	Operations []operationDesc `json:"operations"`
	Schedule   *scheduleDesc   `json:"schedule"`

	ReferenceTo   int    `json:"reference_to"`    // index into this module's stream list, -1 if none
	RTagTimeoutNS uint64 `json:"rtag_timeout_ns"` // >0 declares an ingress stream redundant-RX
}

type operationDesc struct {
	Op         string `json:"op"` // insert|insert_constant|pad|forward|read|forward_all
	Length     int    `json:"length"`
	Offset     int    `json:"offset"`
	BufferName string `json:"buffer_name"`
	DataHex    string `json:"data_hex"`
	Fill       int    `json:"fill"`
}

type scheduleDesc struct {
	Kind     string `json:"kind"` // event|window
	PeriodNS uint64 `json:"period_ns"`
	SendNS   uint64 `json:"send_ns"`
	StartNS  uint64 `json:"start_ns"`
	EndNS    uint64 `json:"end_ns"`
}

func loadDescriptor(path string) (*descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d descriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parse descriptor: %w", err)
	}
	return &d, nil
}

func parseMAC(s string) ([6]byte, error) {
	var out [6]byte
	b, err := hex.DecodeString(stripColons(s))
	if err != nil || len(b) != 6 {
		return out, fmt.Errorf("invalid MAC %q", s)
	}
	copy(out[:], b)
	return out, nil
}

func stripColons(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != ':' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

func buildOperation(d operationDesc) (*acm.Operation, error) {
	switch d.Op {
	case "insert":
		return acm.NewInsertOperation(d.Length, d.BufferName)
	case "insert_constant":
		data, err := hex.DecodeString(d.DataHex)
		if err != nil {
			return nil, err
		}
		return acm.NewInsertConstantOperation(data)
	case "pad":
		return acm.NewPadOperation(d.Length, byte(d.Fill))
	case "forward":
		return acm.NewForwardOperation(d.Offset, d.Length)
	case "read":
		return acm.NewReadOperation(d.Offset, d.Length, d.BufferName)
	case "forward_all":
		return acm.NewForwardAllOperation()
	default:
		return nil, fmt.Errorf("unknown operation %q", d.Op)
	}
}

func buildSchedule(d *scheduleDesc) (*acm.Schedule, error) {
	if d == nil {
		return nil, nil
	}
	switch d.Kind {
	case "event":
		return acm.NewEventSchedule(d.PeriodNS, d.SendNS)
	case "window":
		return acm.NewWindowSchedule(d.PeriodNS, d.StartNS, d.EndNS)
	default:
		return nil, fmt.Errorf("unknown schedule kind %q", d.Kind)
	}
}

// buildStream constructs one detached stream (operations and schedule
// attached) from its descriptor. References between streams are wired
// afterward by buildConfig, since SetReference needs both ends built.
func buildStream(d streamDesc) (*acm.Stream, error) {
	var s *acm.Stream
	var err error

	switch d.Variant {
	case "time_triggered":
		dmac, e1 := parseMAC(d.DMAC)
		smac, e2 := parseMAC(d.SMAC)
		if e1 != nil {
			return nil, e1
		}
		if e2 != nil {
			return nil, e2
		}
		s, err = acm.NewTimeTriggeredStream(dmac, smac, uint16(d.VLANID), uint8(d.Prio))
	case "event":
		dmac, e1 := parseMAC(d.DMAC)
		smac, e2 := parseMAC(d.SMAC)
		if e1 != nil {
			return nil, e1
		}
		if e2 != nil {
			return nil, e2
		}
		s, err = acm.NewEventStream(dmac, smac, uint16(d.VLANID), uint8(d.Prio))
	case "recovery":
		dmac, e1 := parseMAC(d.DMAC)
		smac, e2 := parseMAC(d.SMAC)
		if e1 != nil {
			return nil, e1
		}
		if e2 != nil {
			return nil, e2
		}
		s, err = acm.NewRecoveryStream(dmac, smac, uint16(d.VLANID), uint8(d.Prio))
	case "ingress_triggered":
		hp, e1 := hex.DecodeString(d.HeaderPattern)
		hm, e2 := hex.DecodeString(d.HeaderMask)
		if e1 != nil || e2 != nil || len(hp) != 16 || len(hm) != 16 {
			return nil, fmt.Errorf("ingress stream needs 16-byte header_pattern/header_mask")
		}
		var hpArr, hmArr [16]byte
		copy(hpArr[:], hp)
		copy(hmArr[:], hm)
		s, err = acm.NewIngressTriggeredStream(hpArr, hmArr, nil, nil, 0)
	default:
		return nil, fmt.Errorf("unknown stream variant %q", d.Variant)
	}
	if err != nil {
		return nil, err
	}

	for _, od := range d.Operations {
		op, err := buildOperation(od)
		if err != nil {
			return nil, err
		}
		if err := s.AddOperation(op); err != nil {
			return nil, err
		}
	}
	if sch, err := buildSchedule(d.Schedule); err != nil {
		return nil, err
	} else if sch != nil {
		if err := s.AddSchedule(sch); err != nil {
			return nil, err
		}
	}
	if d.RTagTimeoutNS > 0 {
		if err := s.SetRTag(d.RTagTimeoutNS); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func connMode(s string) acm.ConnMode {
	if s == "serial" {
		return acm.ConnSerial
	}
	return acm.ConnParallel
}

func linkSpeed(s string) acm.LinkSpeed {
	if s == "1000" {
		return acm.Speed1Gbps
	}
	return acm.Speed100Mbps
}

// buildConfig builds a full, unapplied Configuration from d.
func buildConfig(ctx *acm.Context, d *descriptor) (*acm.Configuration, error) {
	cfg := acm.NewConfiguration(ctx)

	for _, md := range d.Modules {
		m, err := acm.NewModule(connMode(md.Mode), linkSpeed(md.Speed), acm.ModuleID(md.ID))
		if err != nil {
			return nil, err
		}
		if err := m.SetSchedule(md.CycleNS, time.Unix(0, md.StartUnix)); err != nil {
			return nil, err
		}

		streams := make([]*acm.Stream, len(md.Streams))
		for i, sd := range md.Streams {
			s, err := buildStream(sd)
			if err != nil {
				return nil, fmt.Errorf("module %d stream %d: %w", md.ID, i, err)
			}
			streams[i] = s
		}
		for i, sd := range md.Streams {
			if sd.ReferenceTo >= 0 && sd.ReferenceTo < len(streams) {
				if err := acm.SetReference(streams[i], streams[sd.ReferenceTo]); err != nil {
					return nil, fmt.Errorf("module %d stream %d reference: %w", md.ID, i, err)
				}
			}
		}
		for _, s := range streams {
			if s.Variant != acm.VariantEvent && s.Variant != acm.VariantRecovery {
				if err := m.AddStream(s); err != nil {
					return nil, fmt.Errorf("module %d: add stream: %w", md.ID, err)
				}
			}
		}
		if err := cfg.AddModule(m); err != nil {
			return nil, fmt.Errorf("add module %d: %w", md.ID, err)
		}
	}
	return cfg, nil
}
