// Copyright 2026 The Nyx Orchestrator Authors
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

// Package apiserver implements the runtime's HTTP surface: workflow
// execution/status, motivational engine control, and system health,
// behind a uniform JSON error envelope.
package apiserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/nyxcore/orchestrator/pkg/errs"
)

// errorEnvelope is the body every non-2xx response returns.
type errorEnvelope struct {
	Error     bool           `json:"error"`
	ErrorCode string         `json:"error_code"`
	Detail    string         `json:"detail"`
	Metadata  map[string]any `json:"metadata"`
	Timestamp time.Time      `json:"timestamp"`
	Path      string         `json:"path"`
}

// statusForKind maps an errs.Kind to its HTTP status, per spec.md §6:
// 400 for validation/client errors, 404 for unknown id, 500 for
// internal, 502 for upstream LLM failures.
func statusForKind(kind errs.Kind) int {
	switch kind {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindValidation, errs.KindDepthExceeded, errs.KindQuotaExceeded:
		return http.StatusBadRequest
	case errs.KindRateLimited:
		return http.StatusTooManyRequests
	case errs.KindCircuitOpen:
		return http.StatusServiceUnavailable
	case errs.KindConnection, errs.KindProviderError, errs.KindTimeout, errs.KindLLMIntegration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes the error envelope for err, classifying it through
// errs.Error when possible and falling back to KindInternal otherwise.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var e *errs.Error
	kind := errs.KindInternal
	if errors.As(err, &e) {
		kind = e.Kind
	}

	writeJSON(w, statusForKind(kind), errorEnvelope{
		Error:     true,
		ErrorCode: kind.Code(),
		Detail:    err.Error(),
		Metadata:  map[string]any{},
		Timestamp: time.Now().UTC(),
		Path:      r.URL.Path,
	})
}

// writeUnauthorized writes a 401 envelope for a missing or invalid bearer
// token, bypassing statusForKind since authentication is a transport
// concern rather than one of errs.Kind's domain error categories.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, http.StatusUnauthorized, errorEnvelope{
		Error:     true,
		ErrorCode: "unauthorized",
		Detail:    err.Error(),
		Metadata:  map[string]any{},
		Timestamp: time.Now().UTC(),
		Path:      r.URL.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errs.New(errs.KindValidation, "request body is required")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errs.Wrap(errs.KindValidation, "decode request body", err)
	}
	return nil
}
