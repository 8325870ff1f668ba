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

// OrchestratorType distinguishes the top-level orchestrator from the
// recursively spawned sub-orchestrators.
type OrchestratorType string

const (
	OrchestratorTopLevel OrchestratorType = "top_level"
	OrchestratorSub      OrchestratorType = "sub"
)

// OrchestratorStatus mirrors ThoughtTreeStatus: an orchestrator record
// tracks the same lifecycle as the workflow it drives.
type OrchestratorStatus string

const (
	OrchestratorPending    OrchestratorStatus = "pending"
	OrchestratorInProgress OrchestratorStatus = "in_progress"
	OrchestratorCompleted  OrchestratorStatus = "completed"
	OrchestratorFailed     OrchestratorStatus = "failed"
	OrchestratorCancelled  OrchestratorStatus = "cancelled"
)

// OrchestratorRecord is parallel to Agent but for orchestrators.
type OrchestratorRecord struct {
	ID                  string
	ParentOrchestratorID *string
	ThoughtTreeID       string
	Type                OrchestratorType
	Status              OrchestratorStatus
	ActiveAgentCount    int
	MaxConcurrentAgents int
	GlobalContext       map[string]any
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// OrchestratorRepo persists OrchestratorRecord rows.
type OrchestratorRepo struct{ s *Store }

// Orchestrators returns the OrchestratorRecord repository.
func (s *Store) Orchestrators() *OrchestratorRepo { return &OrchestratorRepo{s: s} }

// Create inserts a new OrchestratorRecord.
func (r *OrchestratorRepo) Create(ctx context.Context, parentID *string, thoughtTreeID string, typ OrchestratorType, maxConcurrentAgents int, globalContext map[string]any) (*OrchestratorRecord, error) {
	if globalContext == nil {
		globalContext = map[string]any{}
	}
	ctxJSON, err := json.Marshal(globalContext)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "marshal orchestrator global context", err)
	}

	now := time.Now().UTC()
	o := &OrchestratorRecord{
		ID:                  uuid.NewString(),
		ParentOrchestratorID: parentID,
		ThoughtTreeID:       thoughtTreeID,
		Type:                typ,
		Status:              OrchestratorPending,
		MaxConcurrentAgents: maxConcurrentAgents,
		GlobalContext:       globalContext,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	_, err = r.s.exec(ctx, `
		INSERT INTO orchestrator_records (id, parent_orchestrator_id, thought_tree_id, type, status, active_agent_count, max_concurrent_agents, global_context, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.ParentOrchestratorID, o.ThoughtTreeID, string(o.Type), string(o.Status), 0, o.MaxConcurrentAgents, string(ctxJSON), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Get fetches an OrchestratorRecord by id.
func (r *OrchestratorRepo) Get(ctx context.Context, id string) (*OrchestratorRecord, error) {
	row := r.s.queryRow(ctx, `
		SELECT id, parent_orchestrator_id, thought_tree_id, type, status, active_agent_count, max_concurrent_agents, global_context, created_at, updated_at
		FROM orchestrator_records WHERE id = ?`, id)
	return scanOrchestrator(row)
}

// UpdateStatus transitions an OrchestratorRecord's status.
func (r *OrchestratorRepo) UpdateStatus(ctx context.Context, id string, status OrchestratorStatus) error {
	_, err := r.s.exec(ctx, `UPDATE orchestrator_records SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	return err
}

// UpdateStatusWithContext transitions status and replaces global_context in
// the same write, for callers (startup cleanup) that need to stamp a
// reason tag alongside the transition.
func (r *OrchestratorRepo) UpdateStatusWithContext(ctx context.Context, id string, status OrchestratorStatus, globalContext map[string]any) error {
	ctxJSON, err := json.Marshal(globalContext)
	if err != nil {
		return errs.Wrap(errs.KindValidation, "marshal orchestrator global context", err)
	}
	_, err = r.s.exec(ctx, `UPDATE orchestrator_records SET status = ?, global_context = ?, updated_at = ? WHERE id = ?`,
		string(status), string(ctxJSON), time.Now().UTC(), id)
	return err
}

// IncrementActiveAgents adjusts the active-agent count by delta (positive on
// spawn, negative on completion), implementing the quota gate's counter.
func (r *OrchestratorRepo) IncrementActiveAgents(ctx context.Context, id string, delta int) error {
	_, err := r.s.exec(ctx, `UPDATE orchestrator_records SET active_agent_count = active_agent_count + ?, updated_at = ? WHERE id = ?`,
		delta, time.Now().UTC(), id)
	return err
}

// ListNonTerminal returns every OrchestratorRecord not yet in a terminal
// status, used by the startup cleanup pass.
func (r *OrchestratorRepo) ListNonTerminal(ctx context.Context) ([]*OrchestratorRecord, error) {
	rows, err := r.s.query(ctx, `
		SELECT id, parent_orchestrator_id, thought_tree_id, type, status, active_agent_count, max_concurrent_agents, global_context, created_at, updated_at
		FROM orchestrator_records WHERE status IN (?, ?)`,
		string(OrchestratorPending), string(OrchestratorInProgress))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*OrchestratorRecord
	for rows.Next() {
		o, err := scanOrchestrator(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrchestrator(row rowScanner) (*OrchestratorRecord, error) {
	var o OrchestratorRecord
	var typ, status, ctxJSON string
	var parentID sql.NullString

	if err := row.Scan(&o.ID, &parentID, &o.ThoughtTreeID, &typ, &status, &o.ActiveAgentCount, &o.MaxConcurrentAgents, &ctxJSON, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, scanErr("orchestrator record", err)
	}
	o.Type = OrchestratorType(typ)
	o.Status = OrchestratorStatus(status)
	if parentID.Valid {
		v := parentID.String
		o.ParentOrchestratorID = &v
	}
	o.GlobalContext = map[string]any{}
	if ctxJSON != "" {
		if err := json.Unmarshal([]byte(ctxJSON), &o.GlobalContext); err != nil {
			return nil, errs.Wrap(errs.KindDatabase, "unmarshal orchestrator global context", err)
		}
	}
	return &o, nil
}
