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

package runtime

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nyxcore/orchestrator/pkg/logger"
	"github.com/nyxcore/orchestrator/pkg/store"
)

func newTestRuntime(t *testing.T) (*Runtime, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	mock.MatchExpectationsInOrder(false)

	level, _ := logger.ParseLevel("info")
	logger.Init(level, os.Stderr, "simple")

	return &Runtime{store: store.NewForTest(db, "sqlite"), log: logger.GetLogger()}, mock
}

func TestStartupCleanup_CancelsNonTerminalRows(t *testing.T) {
	rt, mock := newTestRuntime(t)

	agentColumns := []string{"id", "thought_tree_id", "kind", "impl_class", "state", "spawned_by", "config_snapshot", "runtime_state", "created_at", "completed_at"}
	mock.ExpectQuery("FROM agents WHERE state IN").
		WillReturnRows(sqlmock.NewRows(agentColumns).AddRow(
			"agent-1", "tt-1", "task", "task_v1", "active", nil, "{}", "{}", time.Now().UTC(), nil))
	mock.ExpectExec("UPDATE agents").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE agents").WillReturnResult(sqlmock.NewResult(1, 1))

	orchColumns := []string{"id", "parent_orchestrator_id", "thought_tree_id", "type", "status", "active_agent_count", "max_concurrent_agents", "global_context", "created_at", "updated_at"}
	mock.ExpectQuery("FROM orchestrator_records WHERE status IN").
		WillReturnRows(sqlmock.NewRows(orchColumns).AddRow(
			"orch-1", nil, "tt-1", "top_level", "in_progress", 1, 5, "{}", time.Now().UTC(), time.Now().UTC()))
	mock.ExpectExec("UPDATE orchestrator_records").WillReturnResult(sqlmock.NewResult(1, 1))

	ttColumns := []string{"id", "goal", "status", "depth", "metadata", "created_at", "updated_at"}
	mock.ExpectQuery("FROM thought_trees WHERE status IN").
		WillReturnRows(sqlmock.NewRows(ttColumns).AddRow(
			"tt-1", "do the thing", "in_progress", 1, "{}", time.Now().UTC(), time.Now().UTC()))
	mock.ExpectExec("UPDATE thought_trees").WillReturnResult(sqlmock.NewResult(1, 1))

	taskColumns := []string{"id", "motivation_type", "thought_tree_id", "prompt", "priority", "arbitration_score", "status", "created_at", "updated_at", "outcome_score", "satisfaction_gain", "cancel_reason"}
	mock.ExpectQuery("FROM motivational_tasks WHERE status IN").
		WillReturnRows(sqlmock.NewRows(taskColumns).AddRow(
			"mt-1", "review_recent_errors", "tt-1", "go look", 0.5, 0.6, "active", time.Now().UTC(), time.Now().UTC(), 0.0, 0.0, nil))
	mock.ExpectExec("UPDATE motivational_tasks").WillReturnResult(sqlmock.NewResult(1, 1))

	cleaned, err := rt.StartupCleanup(context.Background())
	if err != nil {
		t.Fatalf("StartupCleanup() error = %v", err)
	}
	if cleaned != 4 {
		t.Fatalf("StartupCleanup() cleaned = %d, want 4", cleaned)
	}
}

func TestStartupCleanup_NoStaleRowsIsANoop(t *testing.T) {
	rt, mock := newTestRuntime(t)

	mock.ExpectQuery("FROM agents WHERE state IN").
		WillReturnRows(sqlmock.NewRows([]string{"id", "thought_tree_id", "kind", "impl_class", "state", "spawned_by", "config_snapshot", "runtime_state", "created_at", "completed_at"}))
	mock.ExpectQuery("FROM orchestrator_records WHERE status IN").
		WillReturnRows(sqlmock.NewRows([]string{"id", "parent_orchestrator_id", "thought_tree_id", "type", "status", "active_agent_count", "max_concurrent_agents", "global_context", "created_at", "updated_at"}))
	mock.ExpectQuery("FROM thought_trees WHERE status IN").
		WillReturnRows(sqlmock.NewRows([]string{"id", "goal", "status", "depth", "metadata", "created_at", "updated_at"}))
	mock.ExpectQuery("FROM motivational_tasks WHERE status IN").
		WillReturnRows(sqlmock.NewRows([]string{"id", "motivation_type", "thought_tree_id", "prompt", "priority", "arbitration_score", "status", "created_at", "updated_at", "outcome_score", "satisfaction_gain", "cancel_reason"}))

	cleaned, err := rt.StartupCleanup(context.Background())
	if err != nil {
		t.Fatalf("StartupCleanup() error = %v", err)
	}
	if cleaned != 0 {
		t.Fatalf("StartupCleanup() cleaned = %d, want 0", cleaned)
	}
}

func TestRuntime_ThoughtTreeIDReportsLastRun(t *testing.T) {
	rt := &Runtime{}
	if got := rt.ThoughtTreeID(); got != "" {
		t.Errorf("ThoughtTreeID() on a fresh Runtime = %q, want empty", got)
	}
	rt.lastThoughtTreeID = "tt-42"
	if got := rt.ThoughtTreeID(); got != "tt-42" {
		t.Errorf("ThoughtTreeID() = %q, want tt-42", got)
	}
}
