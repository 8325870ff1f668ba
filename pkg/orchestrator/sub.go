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

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nyxcore/orchestrator/pkg/agent"
	"github.com/nyxcore/orchestrator/pkg/errs"
	"github.com/nyxcore/orchestrator/pkg/store"
)

// SubTask is the input to a sub-orchestrator's five-stage pipeline.
type SubTask struct {
	Title                 string
	Description           string
	ThoughtTreeID         string
	CurrentDepth          int
	ParentOrchestratorID  string
	InheritedContext      map[string]any
}

// Strategy is the execution shape the sub-orchestrator picked for a plan.
type Strategy string

const (
	StrategySequential       Strategy = "sequential"
	StrategyParallel         Strategy = "parallel"
	StrategyDependencyOrdered Strategy = "dependency_ordered"
)

// Sub is the recursive decomposition orchestrator from spec.md §4.4: it
// plans a task into subtasks, picks an execution strategy, executes it,
// synthesizes the subtask outputs, and reports a Result.
type Sub struct {
	base     *Base
	maxDepth int
	maxSubtasks int
}

// NewSub wraps a Base with the sub-orchestrator's depth guard and subtask
// cap. maxSubtasks defaults to 6 when zero.
func NewSub(base *Base, maxDepth, maxSubtasks int) *Sub {
	if maxSubtasks <= 0 {
		maxSubtasks = 6
	}
	return &Sub{base: base, maxDepth: maxDepth, maxSubtasks: maxSubtasks}
}

// Run executes the full pipeline: Plan, pick Strategy, Execute, Synthesize,
// Report. Refuses (returns an error, no partial work) when the depth guard
// or required fields are violated.
func (s *Sub) Run(ctx context.Context, task SubTask) (Result, error) {
	if task.CurrentDepth >= s.maxDepth {
		return Result{}, errs.New(errs.KindDepthExceeded, fmt.Sprintf("current depth %d >= max depth %d", task.CurrentDepth, s.maxDepth))
	}
	if task.Title == "" || task.Description == "" || task.ThoughtTreeID == "" {
		return Result{}, errs.New(errs.KindValidation, "sub-orchestrator requires title, description, and thought_tree_id")
	}

	plan := s.plan(ctx, task)
	if len(plan.Subtasks) > s.maxSubtasks {
		plan.Subtasks = plan.Subtasks[:s.maxSubtasks]
	}

	strategy := pickStrategy(plan)

	var outputs []subtaskOutput
	var err error
	switch strategy {
	case StrategyParallel:
		outputs, err = s.executeParallel(ctx, task, plan)
	default: // sequential and dependency_ordered both execute sequentially today
		outputs, err = s.executeSequential(ctx, task, plan)
	}
	if err != nil {
		return Result{}, err
	}

	completed, failed := 0, 0
	var successfulOutputs []string
	for _, o := range outputs {
		if o.result.Success {
			completed++
			successfulOutputs = append(successfulOutputs, o.result.Content)
		} else {
			failed++
		}
	}

	summary := s.synthesize(ctx, task, successfulOutputs)

	agentResults := make([]agent.Result, len(outputs))
	for i, o := range outputs {
		agentResults[i] = o.result
	}

	return Result{
		Success:       failed == 0,
		ThoughtTreeID: task.ThoughtTreeID,
		AgentResults:  agentResults,
		Metadata: map[string]any{
			"strategy":  string(strategy),
			"depth":     task.CurrentDepth,
			"completed": completed,
			"failed":    failed,
			"summary":   summary,
		},
	}, nil
}

// plan spawns a decomposition_analysis Task agent; on any failure it falls
// back to the trivial single-subtask plan mirroring the parent task.
func (s *Sub) plan(ctx context.Context, task SubTask) agent.DecompositionPlan {
	h, err := s.base.SpawnAgent(ctx, store.AgentKindTask, "task.decomposition_analysis", nil, nil)
	if err != nil || h == nil {
		return agent.TrivialPlan(task.Title, task.Description)
	}

	res, err := h.Execute(ctx, agent.Input{
		Prompt:        fmt.Sprintf("Title: %s\nDescription: %s", task.Title, task.Description),
		Context:       map[string]any{"task_type": string(agent.TaskDecompositionAnalysis)},
		ThoughtTreeID: task.ThoughtTreeID,
	})
	_ = s.base.TrackAgentCompletion(ctx, h, res)
	if err != nil || !res.Success {
		return agent.TrivialPlan(task.Title, task.Description)
	}

	plan, ok := parseDecompositionPlan(res.Content)
	if !ok || len(plan.Subtasks) == 0 {
		return agent.TrivialPlan(task.Title, task.Description)
	}
	return plan
}

// parseDecompositionPlan expects a JSON array of subtasks; a reply that
// does not parse is treated as a planning failure by the caller.
func parseDecompositionPlan(text string) (agent.DecompositionPlan, bool) {
	var raw []struct {
		ID                  string         `json:"id"`
		Title               string         `json:"title"`
		Description         string         `json:"description"`
		Dependencies        []string       `json:"dependencies"`
		EstimatedComplexity string         `json:"estimated_complexity"`
		RequiredAgentKinds  []string       `json:"required_agent_kinds"`
		ToolCall            map[string]any `json:"tool_call"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return agent.DecompositionPlan{}, false
	}

	subtasks := make([]agent.Subtask, 0, len(raw))
	for _, r := range raw {
		kinds := make([]store.AgentKind, 0, len(r.RequiredAgentKinds))
		for _, k := range r.RequiredAgentKinds {
			kinds = append(kinds, store.AgentKind(k))
		}
		subtasks = append(subtasks, agent.Subtask{
			ID:                  r.ID,
			Title:               r.Title,
			Description:         r.Description,
			Dependencies:        r.Dependencies,
			EstimatedComplexity: r.EstimatedComplexity,
			RequiredAgentKinds:  kinds,
			ToolCall:            r.ToolCall,
		})
	}
	return agent.DecompositionPlan{Subtasks: subtasks}, true
}

// pickStrategy implements spec.md §4.4's strategy rule: dependency-ordered
// if any subtask declares a dependency, sequential for two or fewer
// subtasks, parallel otherwise.
func pickStrategy(plan agent.DecompositionPlan) Strategy {
	for _, st := range plan.Subtasks {
		if len(st.Dependencies) > 0 {
			return StrategyDependencyOrdered
		}
	}
	if len(plan.Subtasks) <= 2 {
		return StrategySequential
	}
	return StrategyParallel
}

type subtaskOutput struct {
	subtask agent.Subtask
	result  agent.Result
}

// subtaskContext carries a planned tool_call directive through to the
// spawned Task agent, when the decomposition stage attached one to this
// subtask.
func subtaskContext(st agent.Subtask) map[string]any {
	if st.ToolCall == nil {
		return nil
	}
	return map[string]any{"tool_call": st.ToolCall}
}

// executeSequential prepends each successful subtask's output to the next
// subtask's prompt. Used for both the sequential and (today,
// non-topological) dependency-ordered strategies — true topological
// scheduling of the dependency graph is a known extension point.
func (s *Sub) executeSequential(ctx context.Context, task SubTask, plan agent.DecompositionPlan) ([]subtaskOutput, error) {
	outputs := make([]subtaskOutput, 0, len(plan.Subtasks))
	var previousOutput string

	for _, st := range plan.Subtasks {
		kind := store.AgentKindTask
		if len(st.RequiredAgentKinds) > 0 {
			kind = st.RequiredAgentKinds[0]
		}

		h, err := s.base.SpawnAgent(ctx, kind, "task."+string(kind), nil, nil)
		if err != nil {
			return nil, err
		}
		if h == nil {
			outputs = append(outputs, subtaskOutput{subtask: st, result: agent.Result{Success: false, Error: "concurrency quota exhausted"}})
			continue
		}

		prompt := st.Description
		if previousOutput != "" {
			prompt = fmt.Sprintf("Prior subtask output:\n%s\n\nThis subtask:\n%s", previousOutput, st.Description)
		}

		res, err := h.Execute(ctx, agent.Input{Prompt: prompt, Context: subtaskContext(st), ThoughtTreeID: task.ThoughtTreeID})
		_ = s.base.TrackAgentCompletion(ctx, h, res)
		if err != nil && res.Content == "" {
			res = agent.Result{Success: false, Error: err.Error()}
		}

		outputs = append(outputs, subtaskOutput{subtask: st, result: res})
		if res.Success {
			previousOutput = res.Content
		}
	}
	return outputs, nil
}

// executeParallel spawns one Task agent per subtask and runs them
// concurrently via errgroup; a panicking or erroring subtask surfaces as a
// failed result rather than aborting its siblings.
func (s *Sub) executeParallel(ctx context.Context, task SubTask, plan agent.DecompositionPlan) ([]subtaskOutput, error) {
	outputs := make([]subtaskOutput, len(plan.Subtasks))
	g, gctx := errgroup.WithContext(ctx)

	for i, st := range plan.Subtasks {
		i, st := i, st
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					outputs[i] = subtaskOutput{subtask: st, result: agent.Result{Success: false, Error: fmt.Sprintf("subtask panicked: %v", r)}}
				}
			}()

			kind := store.AgentKindTask
			if len(st.RequiredAgentKinds) > 0 {
				kind = st.RequiredAgentKinds[0]
			}

			h, err := s.base.SpawnAgent(gctx, kind, "task."+string(kind), nil, nil)
			if err != nil {
				outputs[i] = subtaskOutput{subtask: st, result: agent.Result{Success: false, Error: err.Error()}}
				return nil
			}
			if h == nil {
				outputs[i] = subtaskOutput{subtask: st, result: agent.Result{Success: false, Error: "concurrency quota exhausted"}}
				return nil
			}

			res, execErr := h.Execute(gctx, agent.Input{Prompt: st.Description, Context: subtaskContext(st), ThoughtTreeID: task.ThoughtTreeID})
			_ = s.base.TrackAgentCompletion(gctx, h, res)
			if execErr != nil && res.Content == "" {
				res = agent.Result{Success: false, Error: execErr.Error()}
			}
			outputs[i] = subtaskOutput{subtask: st, result: res}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

// synthesize spawns a Memory agent summarize call over the successful
// subtask outputs; on failure it falls back to plain concatenation.
func (s *Sub) synthesize(ctx context.Context, task SubTask, successfulOutputs []string) string {
	if len(successfulOutputs) == 0 {
		return ""
	}

	combined := ""
	for i, o := range successfulOutputs {
		if i > 0 {
			combined += "\n\n"
		}
		combined += o
	}

	h, err := s.base.SpawnAgent(ctx, store.AgentKindMemory, "memory.summarize", nil, nil)
	if err != nil || h == nil {
		return combined
	}

	res, err := h.Execute(ctx, agent.Input{
		Prompt:        combined,
		Context:       map[string]any{"operation": "summarize"},
		ThoughtTreeID: task.ThoughtTreeID,
	})
	_ = s.base.TrackAgentCompletion(ctx, h, res)
	if err != nil || !res.Success {
		return combined
	}
	return res.Content
}
