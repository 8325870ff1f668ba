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

package apiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nyxcore/orchestrator/pkg/observability"
	"github.com/nyxcore/orchestrator/pkg/runtime"
	"github.com/nyxcore/orchestrator/pkg/store"
)

func newTestServer(t *testing.T) (*Server, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	mock.MatchExpectationsInOrder(false)

	obs, err := observability.NewManager(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	rt := runtime.NewForTest(store.NewForTest(db, "sqlite"), obs, nil, nil)

	s := &Server{rt: rt, version: "test", bearerToken: ""}
	return s, mock
}

func doRequest(s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		buf, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(buf)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/api/v1/system/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandleInfo(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/api/v1/system/info", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["version"] != "test" {
		t.Errorf("version = %v, want test", body["version"])
	}
}

func TestHandleStatusWithoutMotivation(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/api/v1/system/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["motivation_running"] != false {
		t.Errorf("motivation_running = %v, want false", body["motivation_running"])
	}
}

func TestHandleExecuteWorkflow_RejectsMissingPrompt(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/api/v1/orchestrator/workflows/execute", map[string]any{"kind": "user_prompt"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
	}
	var env errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if env.ErrorCode == "" {
		t.Error("error_code is empty")
	}
}

func TestHandleExecuteWorkflow_RejectsUnknownKind(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/api/v1/orchestrator/workflows/execute", map[string]any{
		"kind": "not_a_real_kind", "prompt": "do something",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandleWorkflowStatus_NotFound(t *testing.T) {
	s, mock := newTestServer(t)
	mock.ExpectQuery("FROM thought_trees WHERE id").WillReturnRows(
		sqlmock.NewRows([]string{"id", "goal", "status", "depth", "metadata", "created_at", "updated_at"}))

	rec := doRequest(s, http.MethodGet, "/api/v1/orchestrator/workflows/missing/status", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandleStrategiesAndInputTypes(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/v1/orchestrator/strategies", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("strategies status = %d, want 200", rec.Code)
	}

	rec = doRequest(s, http.MethodGet, "/api/v1/orchestrator/input-types", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("input-types status = %d, want 200", rec.Code)
	}
}

func TestHandleEngineRoutes_DisabledWhenMotivationNil(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{
		"/api/v1/motivational/engine/start",
		"/api/v1/motivational/engine/stop",
	} {
		rec := doRequest(s, http.MethodPost, path, nil)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("%s status = %d, want 500 (disabled maps to internal)", path, rec.Code)
		}
	}

	rec := doRequest(s, http.MethodGet, "/api/v1/motivational/engine/status", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("engine status = %d, want 500", rec.Code)
	}
}

func TestHandleListStates(t *testing.T) {
	s, mock := newTestServer(t)
	mock.ExpectQuery("FROM motivational_states").WillReturnRows(
		sqlmock.NewRows([]string{"kind", "urgency", "satisfaction", "decay_rate", "boost_factor", "trigger_condition", "last_triggered_at", "last_satisfied_at", "success_count", "failure_count", "success_rate", "active", "metadata", "updated_at"}).
			AddRow("exploration", 0.4, 0.6, 0.01, 1.0, "{}", nil, nil, 2, 0, 1.0, true, "{}", time.Now().UTC()))

	rec := doRequest(s, http.MethodGet, "/api/v1/motivational/states", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body = %s", rec.Code, rec.Body.String())
	}
}

func TestRequireBearer(t *testing.T) {
	s, _ := newTestServer(t)
	s.bearerToken = "secret"

	rec := doRequest(s, http.MethodGet, "/api/v1/system/health", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated request status = %d, want 401", rec.Code)
	}
}
