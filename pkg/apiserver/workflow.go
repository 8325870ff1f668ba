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
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nyxcore/orchestrator/pkg/errs"
	"github.com/nyxcore/orchestrator/pkg/orchestrator"
)

// workflowExecuteRequest is the wire shape of a WorkflowInput.
type workflowExecuteRequest struct {
	Kind                    string `json:"kind"`
	Prompt                  string `json:"prompt"`
	DeliverableCount        int    `json:"deliverable_count"`
	RequireCouncilConsensus bool   `json:"require_council_consensus"`
	ValidationLevel         string `json:"validation_level"`
	Optimization            string `json:"optimization"`
	TightTimeBudget         bool   `json:"tight_time_budget"`
}

var knownInputKinds = map[orchestrator.InputKind]bool{
	orchestrator.InputUserPrompt:           true,
	orchestrator.InputStructuredTask:       true,
	orchestrator.InputGoalWorkflow:         true,
	orchestrator.InputScheduledWorkflow:    true,
	orchestrator.InputReactiveWorkflow:     true,
	orchestrator.InputContinuationWorkflow: true,
}

func (req workflowExecuteRequest) toWorkflowInput() (orchestrator.WorkflowInput, error) {
	if req.Prompt == "" {
		return orchestrator.WorkflowInput{}, errs.New(errs.KindValidation, "prompt is required")
	}

	kind := orchestrator.InputKind(req.Kind)
	if kind == "" {
		kind = orchestrator.InputUserPrompt
	}
	if !knownInputKinds[kind] {
		return orchestrator.WorkflowInput{}, errs.New(errs.KindValidation, "unknown kind "+req.Kind)
	}

	opt := orchestrator.OptimizationFocus(req.Optimization)
	if opt != orchestrator.OptimizeNone && opt != orchestrator.OptimizeSpeed && opt != orchestrator.OptimizeQuality {
		return orchestrator.WorkflowInput{}, errs.New(errs.KindValidation, "unknown optimization "+req.Optimization)
	}

	return orchestrator.WorkflowInput{
		Kind:                    kind,
		Prompt:                  req.Prompt,
		DeliverableCount:        req.DeliverableCount,
		RequireCouncilConsensus: req.RequireCouncilConsensus,
		ValidationLevel:         req.ValidationLevel,
		Optimization:            opt,
		TightTimeBudget:         req.TightTimeBudget,
	}, nil
}

// workflowExecuteResponse is spec.md §6's execute response shape.
type workflowExecuteResponse struct {
	Success         bool           `json:"success"`
	Content         string         `json:"content"`
	Metadata        map[string]any `json:"metadata"`
	ExecutionTimeMS int64          `json:"execution_time_ms"`
	CostUSD         float64        `json:"cost_usd"`
	WorkflowID      string         `json:"workflow_id"`
	Timestamp       time.Time      `json:"timestamp"`
}

func (s *Server) handleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	var req workflowExecuteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	in, err := req.toWorkflowInput()
	if err != nil {
		writeError(w, r, err)
		return
	}

	start := time.Now()
	result, workflowID, err := s.rt.ExecuteWorkflow(r.Context(), in)
	duration := time.Since(start)

	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, workflowExecuteResponse{
		Success: result.Success,
		Content: result.Content,
		Metadata: map[string]any{
			"subtask_count": result.SubtaskCount,
			"strategy_used": result.StrategyUsed,
			"complexity":    result.Complexity,
			"estimate":      result.Estimate,
			"monitoring":    result.Monitoring,
			"total_tokens":  result.TotalTokens,
		},
		ExecutionTimeMS: duration.Milliseconds(),
		CostUSD:         result.TotalCostUSD,
		WorkflowID:      workflowID,
		Timestamp:       time.Now().UTC(),
	})
}

type workflowStatusResponse struct {
	ID        string         `json:"id"`
	Status    string         `json:"status"`
	Goal      string         `json:"goal"`
	Depth     int            `json:"depth"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (s *Server) handleWorkflowStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tt, err := s.rt.Store().ThoughtTrees().Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, workflowStatusResponse{
		ID:        tt.ID,
		Status:    string(tt.Status),
		Goal:      tt.Goal,
		Depth:     tt.Depth,
		Metadata:  tt.Metadata,
		CreatedAt: tt.CreatedAt,
		UpdatedAt: tt.UpdatedAt,
	})
}

func (s *Server) handleActiveWorkflows(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 50)
	offset := intQuery(r, "offset", 0)

	trees, err := s.rt.Store().ThoughtTrees().ListActive(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]workflowStatusResponse, 0, len(trees))
	for _, tt := range trees {
		out = append(out, workflowStatusResponse{
			ID: tt.ID, Status: string(tt.Status), Goal: tt.Goal, Depth: tt.Depth,
			Metadata: tt.Metadata, CreatedAt: tt.CreatedAt, UpdatedAt: tt.UpdatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"workflows": out, "limit": limit, "offset": offset})
}

var allStrategies = []orchestrator.TopStrategy{
	orchestrator.TopDirectExecution,
	orchestrator.TopSequentialDecomposition,
	orchestrator.TopParallelExecution,
	orchestrator.TopRecursiveDecomposition,
	orchestrator.TopCouncilDriven,
	orchestrator.TopIterativeRefinement,
}

var allInputKinds = []orchestrator.InputKind{
	orchestrator.InputUserPrompt,
	orchestrator.InputStructuredTask,
	orchestrator.InputGoalWorkflow,
	orchestrator.InputScheduledWorkflow,
	orchestrator.InputReactiveWorkflow,
	orchestrator.InputContinuationWorkflow,
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"strategies": allStrategies})
}

func (s *Server) handleInputTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"input_types": allInputKinds})
}

func intQuery(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
