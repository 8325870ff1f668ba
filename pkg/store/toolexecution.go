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
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nyxcore/orchestrator/pkg/errs"
)

// ToolExecution is an append-only log row for a single tool call. It may
// only be created after its referencing Agent and ThoughtTree already
// exist; the foreign-key constraints on the table enforce that invariant.
type ToolExecution struct {
	ID            string
	AgentID       string
	ThoughtTreeID string
	ToolName      string
	ToolClass     string
	InputParams   map[string]any
	OutputResult  string
	Stdout        string
	Stderr        string
	DurationMS    int64
}

// ToolExecutionRepo persists ToolExecution rows.
type ToolExecutionRepo struct{ s *Store }

// ToolExecutions returns the ToolExecution repository.
func (s *Store) ToolExecutions() *ToolExecutionRepo { return &ToolExecutionRepo{s: s} }

// Insert appends a new ToolExecution row, assigning its id. Callers must
// have already created the referenced Agent and ThoughtTree rows; a
// dangling reference surfaces as a database error from the FK constraint.
func (r *ToolExecutionRepo) Insert(ctx context.Context, te *ToolExecution) (string, error) {
	if te.InputParams == nil {
		te.InputParams = map[string]any{}
	}
	paramsJSON, err := json.Marshal(te.InputParams)
	if err != nil {
		return "", errs.Wrap(errs.KindValidation, "marshal tool execution params", err)
	}

	te.ID = uuid.NewString()
	_, err = r.s.exec(ctx, `
		INSERT INTO tool_executions (id, agent_id, thought_tree_id, tool_name, tool_class, input_params, output_result, stdout, stderr, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		te.ID, te.AgentID, te.ThoughtTreeID, te.ToolName, te.ToolClass, string(paramsJSON), te.OutputResult, te.Stdout, te.Stderr, te.DurationMS, time.Now().UTC())
	if err != nil {
		return "", err
	}
	return te.ID, nil
}

// ListByAgent returns every ToolExecution performed by an agent, oldest
// first.
func (r *ToolExecutionRepo) ListByAgent(ctx context.Context, agentID string) ([]*ToolExecution, error) {
	rows, err := r.s.query(ctx, `
		SELECT id, agent_id, thought_tree_id, tool_name, tool_class, input_params, output_result, stdout, stderr, duration_ms
		FROM tool_executions WHERE agent_id = ? ORDER BY created_at ASC`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ToolExecution
	for rows.Next() {
		var te ToolExecution
		var paramsJSON string
		if err := rows.Scan(&te.ID, &te.AgentID, &te.ThoughtTreeID, &te.ToolName, &te.ToolClass, &paramsJSON, &te.OutputResult, &te.Stdout, &te.Stderr, &te.DurationMS); err != nil {
			return nil, scanErr("tool execution", err)
		}
		te.InputParams = map[string]any{}
		if paramsJSON != "" {
			if err := json.Unmarshal([]byte(paramsJSON), &te.InputParams); err != nil {
				return nil, errs.Wrap(errs.KindDatabase, "unmarshal tool execution params", err)
			}
		}
		out = append(out, &te)
	}
	return out, rows.Err()
}
