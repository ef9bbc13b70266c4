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

// ScheduleKind distinguishes the two tagged-union shapes a Schedule
// entry can take.
type ScheduleKind int

const (
	ScheduleEvent ScheduleKind = iota
	ScheduleWindow
)

// Schedule is one periodic event or reception window owned by a
// stream. Exactly one of the Event/Window field groups is meaningful,
// selected by Kind.
type Schedule struct {
	Kind     ScheduleKind
	PeriodNS uint64

	// Event fields.
	SendTimeNS uint64

	// Window fields. TimeStart > TimeEnd is permitted: the window wraps
	// across the module cycle boundary.
	TimeStartNS uint64
	TimeEndNS   uint64

	// fscCommands lists every FSC command this schedule generated, so
	// removing the schedule can remove exactly those commands.
	fscCommands []*fscCommand
}

// NewEventSchedule creates a detached event schedule entry: one send
// per period. send_time must not exceed period.
func NewEventSchedule(periodNS, sendTimeNS uint64) (*Schedule, error) {
	if periodNS == 0 || sendTimeNS > periodNS {
		return nil, newErr("event_schedule", BadScheduleTime)
	}
	return &Schedule{Kind: ScheduleEvent, PeriodNS: periodNS, SendTimeNS: sendTimeNS}, nil
}

// NewWindowSchedule creates a detached reception window entry.
// start > end is permitted and means the window wraps the cycle.
func NewWindowSchedule(periodNS, timeStartNS, timeEndNS uint64) (*Schedule, error) {
	if periodNS == 0 || timeStartNS > periodNS || timeEndNS > periodNS {
		return nil, newErr("window_schedule", BadScheduleTime)
	}
	return &Schedule{Kind: ScheduleWindow, PeriodNS: periodNS, TimeStartNS: timeStartNS, TimeEndNS: timeEndNS}, nil
}
