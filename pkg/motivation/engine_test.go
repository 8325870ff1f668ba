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

package motivation

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nyxcore/orchestrator/pkg/config"
	"github.com/nyxcore/orchestrator/pkg/orchestrator"
	"github.com/nyxcore/orchestrator/pkg/store"
)

var motivationalStateColumns = []string{
	"kind", "urgency", "satisfaction", "decay_rate", "boost_factor", "trigger_condition",
	"last_triggered_at", "last_satisfied_at", "success_count", "failure_count", "success_rate",
	"active", "metadata", "updated_at",
}

var motivationalTaskColumns = []string{
	"id", "motivation_type", "thought_tree_id", "prompt", "priority", "arbitration_score",
	"status", "created_at", "updated_at", "outcome_score", "satisfaction_gain",
}

func driveRow(kind string, urgency, satisfaction float64) []driver.Value {
	return []driver.Value{
		kind, urgency, satisfaction, 0.1, 0.5, `{"always":true}`,
		nil, nil, int64(0), int64(0), 0.0, int64(1), "{}", time.Now().UTC(),
	}
}

type fakeRunner struct {
	success       bool
	thoughtTreeID string
	calls         int
}

func (f *fakeRunner) Run(ctx context.Context, in orchestrator.WorkflowInput) (orchestrator.TopResult, error) {
	f.calls++
	return orchestrator.TopResult{Success: f.success, Content: "done"}, nil
}

func (f *fakeRunner) ThoughtTreeID() string { return f.thoughtTreeID }

func newTestEngine(t *testing.T, runner WorkflowRunner) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	mock.MatchExpectationsInOrder(false)
	s := store.NewForTest(db, "sqlite")

	cfg := config.MotivationalConfig{
		TickInterval:               "30s",
		MinArbitrationThreshold:    0.3,
		MaxConcurrentTasksPerDrive: 3,
		SatisfactionDecayEpsilon:   0.01,
		ArbitrationWeights:         config.ArbitrationWeights{Urgency: 0.5, Satisfaction: 0.25, SuccessRate: 0.15, AgePenalty: 0.1},
	}

	engine, err := NewEngine(s, runner, nil, cfg)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine, mock
}

func TestEngine_TickSpawnsWinningDriveAndAppliesFeedback(t *testing.T) {
	runner := &fakeRunner{success: true, thoughtTreeID: "tt-1"}
	engine, mock := newTestEngine(t, runner)

	mock.ExpectQuery("FROM motivational_states ORDER BY kind ASC").
		WillReturnRows(sqlmock.NewRows(motivationalStateColumns).AddRow(driveRow("monitor_social_network", 0.9, 0.2)...))
	mock.ExpectExec("motivational_states").WillReturnResult(sqlmock.NewResult(1, 1))

	for i := 0; i < 4; i++ {
		mock.ExpectQuery("FROM motivational_tasks WHERE status =").WillReturnRows(sqlmock.NewRows(motivationalTaskColumns))
	}
	mock.ExpectExec("INSERT INTO motivational_tasks").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE motivational_tasks").WillReturnResult(sqlmock.NewResult(1, 1)) // AttachThoughtTree
	mock.ExpectExec("UPDATE motivational_tasks").WillReturnResult(sqlmock.NewResult(1, 1)) // Complete

	mock.ExpectQuery("FROM motivational_states WHERE kind =").
		WillReturnRows(sqlmock.NewRows(motivationalStateColumns).AddRow(driveRow("monitor_social_network", 0.9, 0.2)...))
	mock.ExpectExec("motivational_states").WillReturnResult(sqlmock.NewResult(1, 1)) // feedback Upsert

	if err := engine.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if runner.calls != 1 {
		t.Errorf("runner.calls = %d, want 1", runner.calls)
	}
}

func TestEngine_TickSkipsBelowThreshold(t *testing.T) {
	runner := &fakeRunner{success: true}
	engine, mock := newTestEngine(t, runner)

	mock.ExpectQuery("FROM motivational_states ORDER BY kind ASC").
		WillReturnRows(sqlmock.NewRows(motivationalStateColumns).AddRow(driveRow("idle_drive", 0.05, 0.95)...))
	mock.ExpectExec("motivational_states").WillReturnResult(sqlmock.NewResult(1, 1))

	if err := engine.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if runner.calls != 0 {
		t.Errorf("runner.calls = %d, want 0 (score below threshold)", runner.calls)
	}
}

func TestEngine_Boost(t *testing.T) {
	engine, mock := newTestEngine(t, &fakeRunner{})

	mock.ExpectQuery("FROM motivational_states WHERE kind =").
		WillReturnRows(sqlmock.NewRows(motivationalStateColumns).AddRow(driveRow("review_recent_errors", 0.1, 0.5)...))
	mock.ExpectExec("motivational_states").WillReturnResult(sqlmock.NewResult(1, 1))

	if err := engine.Boost(context.Background(), "review_recent_errors", 0.4, "operator requested", nil); err != nil {
		t.Fatalf("Boost() error = %v", err)
	}
}

func TestAgePenalty_NilLastTriggeredIsZero(t *testing.T) {
	if got := agePenalty(nil, time.Now()); got != 0 {
		t.Errorf("agePenalty(nil) = %v, want 0", got)
	}
}

func TestScore_HigherUrgencyScoresHigher(t *testing.T) {
	weights := config.ArbitrationWeights{Urgency: 0.5, Satisfaction: 0.25, SuccessRate: 0.15, AgePenalty: 0.1}
	low := &store.MotivationalState{Urgency: 0.1, Satisfaction: 0.5}
	high := &store.MotivationalState{Urgency: 0.9, Satisfaction: 0.5}
	if score(high, weights, time.Now()) <= score(low, weights, time.Now()) {
		t.Error("expected higher urgency to score higher")
	}
}
