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
	"time"

	"github.com/google/uuid"
)

// LLMInteraction is an append-only log row for a single model call.
type LLMInteraction struct {
	ID                       string
	AgentID                  string
	ThoughtTreeID            string
	Provider                 string
	Model                    string
	SystemPrompt             string
	UserPrompt               string
	ResponseText             string
	RequestedAt              time.Time
	RespondedAt              time.Time
	InputTokens              int
	OutputTokens             int
	CacheCreationInputTokens int
	CacheReadInputTokens     int
	LatencyMS                int64
	CostUSD                  float64
	CostWithoutCacheUSD      float64
	Success                  bool
	ErrorMessage             string
	RetryCount               int
}

// LLMInteractionRepo persists LLMInteraction rows. Rows are append-only:
// there is no Update, only Insert.
type LLMInteractionRepo struct{ s *Store }

// LLMInteractions returns the LLMInteraction repository.
func (s *Store) LLMInteractions() *LLMInteractionRepo { return &LLMInteractionRepo{s: s} }

// Insert appends a new LLMInteraction row, assigning its id.
func (r *LLMInteractionRepo) Insert(ctx context.Context, rec *LLMInteraction) (string, error) {
	rec.ID = uuid.NewString()
	_, err := r.s.exec(ctx, `
		INSERT INTO llm_interactions (
			id, agent_id, thought_tree_id, provider, model, system_prompt, user_prompt, response_text,
			requested_at, responded_at, input_tokens, output_tokens, cache_creation_input_tokens, cache_read_input_tokens,
			latency_ms, cost_usd, cost_without_cache_usd, success, error_message, retry_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AgentID, rec.ThoughtTreeID, rec.Provider, rec.Model, rec.SystemPrompt, rec.UserPrompt, rec.ResponseText,
		rec.RequestedAt, rec.RespondedAt, rec.InputTokens, rec.OutputTokens, rec.CacheCreationInputTokens, rec.CacheReadInputTokens,
		rec.LatencyMS, rec.CostUSD, rec.CostWithoutCacheUSD, boolParam(rec.Success), rec.ErrorMessage, rec.RetryCount, time.Now().UTC())
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// ListByThoughtTree returns every LLMInteraction for a workflow, oldest
// first.
func (r *LLMInteractionRepo) ListByThoughtTree(ctx context.Context, thoughtTreeID string) ([]*LLMInteraction, error) {
	rows, err := r.s.query(ctx, `
		SELECT id, agent_id, thought_tree_id, provider, model, system_prompt, user_prompt, response_text,
			requested_at, responded_at, input_tokens, output_tokens, cache_creation_input_tokens, cache_read_input_tokens,
			latency_ms, cost_usd, cost_without_cache_usd, success, error_message, retry_count
		FROM llm_interactions WHERE thought_tree_id = ? ORDER BY created_at ASC`, thoughtTreeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*LLMInteraction
	for rows.Next() {
		var rec LLMInteraction
		var success int
		if err := rows.Scan(&rec.ID, &rec.AgentID, &rec.ThoughtTreeID, &rec.Provider, &rec.Model, &rec.SystemPrompt, &rec.UserPrompt, &rec.ResponseText,
			&rec.RequestedAt, &rec.RespondedAt, &rec.InputTokens, &rec.OutputTokens, &rec.CacheCreationInputTokens, &rec.CacheReadInputTokens,
			&rec.LatencyMS, &rec.CostUSD, &rec.CostWithoutCacheUSD, &success, &rec.ErrorMessage, &rec.RetryCount); err != nil {
			return nil, scanErr("llm interaction", err)
		}
		rec.Success = success != 0
		out = append(out, &rec)
	}
	return out, rows.Err()
}
