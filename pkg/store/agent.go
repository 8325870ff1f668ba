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
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nyxcore/orchestrator/pkg/errs"
)

// AgentKind is the closed set of agent specializations.
type AgentKind string

const (
	AgentKindTask      AgentKind = "task"
	AgentKindCouncil   AgentKind = "council"
	AgentKindValidator AgentKind = "validator"
	AgentKindMemory    AgentKind = "memory"
	AgentKindSocial    AgentKind = "social"
)

// AgentState is the lifecycle state machine every Agent moves through.
type AgentState string

const (
	AgentSpawned     AgentState = "spawned"
	AgentActive      AgentState = "active"
	AgentWaiting     AgentState = "waiting"
	AgentCoordinating AgentState = "coordinating"
	AgentCompleted   AgentState = "completed"
	AgentFailed      AgentState = "failed"
	AgentTerminated  AgentState = "terminated"
)

// Agent is an executing worker owned by exactly one ThoughtTree.
type Agent struct {
	ID             string
	ThoughtTreeID  string
	Kind           AgentKind
	ImplClass      string
	State          AgentState
	SpawnedBy      *string
	ConfigSnapshot map[string]any
	RuntimeState   map[string]any
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// AgentRepo persists Agent rows.
type AgentRepo struct{ s *Store }

// Agents returns the Agent repository.
func (s *Store) Agents() *AgentRepo { return &AgentRepo{s: s} }

// Create inserts a new Agent in the spawned state.
func (r *AgentRepo) Create(ctx context.Context, thoughtTreeID string, kind AgentKind, implClass string, spawnedBy *string, config map[string]any) (*Agent, error) {
	if config == nil {
		config = map[string]any{}
	}
	configJSON, err := json.Marshal(config)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "marshal agent config", err)
	}

	a := &Agent{
		ID:             uuid.NewString(),
		ThoughtTreeID:  thoughtTreeID,
		Kind:           kind,
		ImplClass:      implClass,
		State:          AgentSpawned,
		SpawnedBy:      spawnedBy,
		ConfigSnapshot: config,
		RuntimeState:   map[string]any{},
		CreatedAt:      time.Now().UTC(),
	}

	_, err = r.s.exec(ctx, `
		INSERT INTO agents (id, thought_tree_id, kind, impl_class, state, spawned_by, config_snapshot, runtime_state, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ThoughtTreeID, string(a.Kind), a.ImplClass, string(a.State), a.SpawnedBy, string(configJSON), "{}", a.CreatedAt, nil)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Get fetches an Agent by id.
func (r *AgentRepo) Get(ctx context.Context, id string) (*Agent, error) {
	row := r.s.queryRow(ctx, `
		SELECT id, thought_tree_id, kind, impl_class, state, spawned_by, config_snapshot, runtime_state, created_at, completed_at
		FROM agents WHERE id = ?`, id)
	return scanAgent(row)
}

// UpdateState transitions an Agent's state and, optionally, its persisted
// runtime state snapshot (nil leaves the snapshot untouched).
func (r *AgentRepo) UpdateState(ctx context.Context, id string, state AgentState, runtimeState map[string]any) error {
	if runtimeState == nil {
		_, err := r.s.exec(ctx, `UPDATE agents SET state = ? WHERE id = ?`, string(state), id)
		return err
	}

	snapJSON, err := json.Marshal(runtimeState)
	if err != nil {
		return errs.Wrap(errs.KindValidation, "marshal agent runtime state", err)
	}
	_, err = r.s.exec(ctx, `UPDATE agents SET state = ?, runtime_state = ? WHERE id = ?`, string(state), string(snapJSON), id)
	return err
}

// Complete marks an Agent terminal (completed, failed or terminated) and
// stamps completed_at. It does not check the Agent's current state.
func (r *AgentRepo) Complete(ctx context.Context, id string, state AgentState) error {
	_, err := r.s.exec(ctx, `UPDATE agents SET state = ?, completed_at = ? WHERE id = ?`,
		string(state), time.Now().UTC(), id)
	return err
}

// ListByThoughtTree returns every Agent owned by a ThoughtTree.
func (r *AgentRepo) ListByThoughtTree(ctx context.Context, thoughtTreeID string) ([]*Agent, error) {
	rows, err := r.s.query(ctx, `
		SELECT id, thought_tree_id, kind, impl_class, state, spawned_by, config_snapshot, runtime_state, created_at, completed_at
		FROM agents WHERE thought_tree_id = ? ORDER BY created_at ASC`, thoughtTreeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListNonTerminal returns every Agent not yet in a terminal state, used by
// the startup cleanup pass.
func (r *AgentRepo) ListNonTerminal(ctx context.Context) ([]*Agent, error) {
	rows, err := r.s.query(ctx, `
		SELECT id, thought_tree_id, kind, impl_class, state, spawned_by, config_snapshot, runtime_state, created_at, completed_at
		FROM agents WHERE state IN (?, ?, ?, ?)`,
		string(AgentSpawned), string(AgentActive), string(AgentWaiting), string(AgentCoordinating))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAgent(row rowScanner) (*Agent, error) {
	var a Agent
	var kind, state, configJSON, runtimeJSON string
	var spawnedBy sql.NullString
	var completedAt sql.NullTime

	if err := row.Scan(&a.ID, &a.ThoughtTreeID, &kind, &a.ImplClass, &state, &spawnedBy, &configJSON, &runtimeJSON, &a.CreatedAt, &completedAt); err != nil {
		return nil, scanErr("agent", err)
	}
	a.Kind = AgentKind(kind)
	a.State = AgentState(state)
	if spawnedBy.Valid {
		v := spawnedBy.String
		a.SpawnedBy = &v
	}
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	a.ConfigSnapshot = map[string]any{}
	if configJSON != "" {
		if err := json.Unmarshal([]byte(configJSON), &a.ConfigSnapshot); err != nil {
			return nil, errs.Wrap(errs.KindDatabase, "unmarshal agent config", err)
		}
	}
	a.RuntimeState = map[string]any{}
	if runtimeJSON != "" {
		if err := json.Unmarshal([]byte(runtimeJSON), &a.RuntimeState); err != nil {
			return nil, errs.Wrap(errs.KindDatabase, "unmarshal agent runtime state", err)
		}
	}
	return &a, nil
}

// ValidTransition reports whether an Agent may move from one state to
// another, per the lifecycle in the agent runtime's Execute algorithm.
func ValidTransition(from, to AgentState) bool {
	switch from {
	case AgentSpawned:
		return to == AgentActive || to == AgentTerminated
	case AgentActive:
		return to == AgentWaiting || to == AgentCoordinating || to == AgentCompleted || to == AgentFailed || to == AgentTerminated
	case AgentWaiting:
		return to == AgentActive || to == AgentCoordinating || to == AgentFailed || to == AgentTerminated
	case AgentCoordinating:
		return to == AgentActive || to == AgentWaiting || to == AgentCompleted || to == AgentFailed || to == AgentTerminated
	default:
		return false // completed, failed, terminated are terminal
	}
}
