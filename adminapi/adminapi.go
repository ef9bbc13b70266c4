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

// Package adminapi is a thin, read-only HTTP introspection surface
// over a built Configuration, restricted to the library's Read/Status
// calls; it never mutates the object graph.
package adminapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/STMicroelectronics/tttech-tsn-acm-content-sub001"
)

// APIError is the JSON error shape every handler in this package
// returns.
type APIError struct {
	HTTPStatus int    `json:"status_code"`
	Message    string `json:"message"`
}

func (e APIError) Error() string { return e.Message }

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIError{HTTPStatus: status, Message: msg})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// Handler builds the chi router for cfg. It is safe to mount under any
// prefix.
func Handler(cfg *acm.Configuration) http.Handler {
	r := chi.NewRouter()

	r.Get("/config/id", func(w http.ResponseWriter, req *http.Request) {
		id, err := cfg.ReadConfigIdentifier()
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, map[string]uint32{"config_id": id})
	})

	r.Get("/status/{module}/{item}", func(w http.ResponseWriter, req *http.Request) {
		mod, err := parseModuleID(chi.URLParam(req, "module"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		v, err := cfg.ReadStatusItem(mod, chi.URLParam(req, "item"))
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, map[string]uint64{"value": v})
	})

	r.Get("/diagnostics/{module}", func(w http.ResponseWriter, req *http.Request) {
		mod, err := parseModuleID(chi.URLParam(req, "module"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		d, err := cfg.ReadDiagnostics(mod)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, d)
	})

	r.Get("/buffers/{name}", func(w http.ResponseWriter, req *http.Request) {
		id, err := cfg.GetBufferID(chi.URLParam(req, "name"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, map[string]int{"buffer_id": id})
	})

	return r
}

func parseModuleID(s string) (acm.ModuleID, error) {
	v, err := strconv.Atoi(s)
	if err != nil || (v != 0 && v != 1) {
		return 0, APIError{HTTPStatus: http.StatusBadRequest, Message: "module must be 0 or 1"}
	}
	return acm.ModuleID(v), nil
}
