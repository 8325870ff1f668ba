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

package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nyxcore/orchestrator/pkg/errs"
)

// newTestStore wraps a sqlmock connection in a Store without running
// initSchema (the mock does not expect the CREATE TABLE statements), so
// each test sets its own expectations for the query it exercises.
func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Store{db: db, dialect: "sqlite"}, mock
}

func TestStore_Rebind_PostgresUsesPositionalPlaceholders(t *testing.T) {
	s := &Store{dialect: "postgres"}
	got := s.rebind("SELECT * FROM agents WHERE id = ? AND state = ?")
	want := "SELECT * FROM agents WHERE id = $1 AND state = $2"
	if got != want {
		t.Errorf("rebind() = %q, want %q", got, want)
	}
}

func TestStore_Rebind_SQLiteAndMySQLKeepQuestionMarks(t *testing.T) {
	s := &Store{dialect: "sqlite"}
	query := "SELECT * FROM agents WHERE id = ?"
	if got := s.rebind(query); got != query {
		t.Errorf("rebind() = %q, want unchanged %q", got, query)
	}
}

func TestThoughtTreeRepo_Create_PersistsPendingStatus(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectExec("INSERT INTO thought_trees").
		WithArgs(sqlmock.AnyArg(), "explore the backlog", string(ThoughtTreePending), 1, "{}", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	tt, err := s.ThoughtTrees().Create(context.Background(), "explore the backlog", 1, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if tt.Status != ThoughtTreePending {
		t.Errorf("Status = %v, want %v", tt.Status, ThoughtTreePending)
	}
	if tt.ID == "" {
		t.Error("expected a generated id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMotivationalStateRepo_Upsert_RejectsOutOfRangeUrgency(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.MotivationalStates().Upsert(context.Background(), &MotivationalState{
		Kind: "curiosity", Urgency: 1.5, Satisfaction: 0.5, DecayRate: 0.1, SuccessRate: 0.5,
	})
	if err == nil {
		t.Fatal("expected an error for urgency outside [0,1]")
	}
}

func TestMotivationalStateRepo_Upsert_AcceptsBoundaryValues(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectExec("INSERT OR REPLACE INTO motivational_states").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.MotivationalStates().Upsert(context.Background(), &MotivationalState{
		Kind: "curiosity", Urgency: 1.0, Satisfaction: 0.0, DecayRate: 1.0, SuccessRate: 0.0,
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestValidTransition(t *testing.T) {
	cases := []struct {
		from, to AgentState
		want     bool
	}{
		{AgentSpawned, AgentActive, true},
		{AgentSpawned, AgentCompleted, false},
		{AgentActive, AgentWaiting, true},
		{AgentWaiting, AgentCoordinating, true},
		{AgentCompleted, AgentActive, false},
		{AgentTerminated, AgentActive, false},
	}
	for _, c := range cases {
		if got := ValidTransition(c.from, c.to); got != c.want {
			t.Errorf("ValidTransition(%v, %v) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestAgentRepo_Get_NotFoundSurfacesKindNotFound(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectQuery("SELECT id, thought_tree_id").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Agents().Get(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errs.Is(err, errs.KindNotFound) {
		t.Errorf("Get() error = %v, want kind %s", err, errs.KindNotFound)
	}
}
