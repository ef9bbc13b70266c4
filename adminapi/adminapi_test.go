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

package adminapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	acm "github.com/STMicroelectronics/tttech-tsn-acm-content-sub001"
)

func timeZero() time.Time { return time.Unix(0, 0) }

func appliedConfig(t *testing.T) *acm.Configuration {
	t.Helper()
	cfg := acm.NewConfiguration(acm.NewMemoryDeviceContext())

	m, err := acm.NewModule(acm.ConnParallel, acm.Speed1Gbps, acm.Module0)
	require.NoError(t, err)
	require.NoError(t, m.SetSchedule(1_000_000, timeZero()))

	s, err := acm.NewTimeTriggeredStream([6]byte{0, 0x11, 0x22, 0x33, 0x44, 0x55}, [6]byte{}, 100, 3)
	require.NoError(t, err)
	op, err := acm.NewInsertOperation(60, "acm_tx_main")
	require.NoError(t, err)
	require.NoError(t, s.AddOperation(op))
	sch, err := acm.NewEventSchedule(1_000_000, 500_000)
	require.NoError(t, err)
	require.NoError(t, s.AddSchedule(sch))

	require.NoError(t, m.AddStream(s))
	require.NoError(t, cfg.AddModule(m))
	require.NoError(t, cfg.ApplyConfig(7))
	return cfg
}

func TestHandler_ConfigID(t *testing.T) {
	srv := httptest.NewServer(Handler(appliedConfig(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/config/id")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]uint32
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.EqualValues(t, 7, body["config_id"])
}

func TestHandler_BufferLookup(t *testing.T) {
	srv := httptest.NewServer(Handler(appliedConfig(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/buffers/acm_tx_main")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 0, body["buffer_id"])

	resp, err = http.Get(srv.URL + "/buffers/acm_nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_BadModuleID(t *testing.T) {
	srv := httptest.NewServer(Handler(appliedConfig(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status/2/device_id")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
