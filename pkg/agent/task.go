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

package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/nyxcore/orchestrator/pkg/errs"
	"github.com/nyxcore/orchestrator/pkg/instruction"
	"github.com/nyxcore/orchestrator/pkg/llm"
	"github.com/nyxcore/orchestrator/pkg/store"
	"github.com/nyxcore/orchestrator/pkg/tools"
)

// TaskType is the closed set of task-agent specializations. Each selects a
// different instruction template and sampling temperature.
type TaskType string

const (
	TaskGeneral               TaskType = "general"
	TaskDecompositionAnalysis TaskType = "decomposition_analysis"
	TaskCodeGeneration        TaskType = "code_generation"
	TaskDataExtraction        TaskType = "data_extraction"
	TaskSummarization         TaskType = "summarization"
	TaskResearch              TaskType = "research"
)

var knownTaskTypes = map[TaskType]bool{
	TaskGeneral: true, TaskDecompositionAnalysis: true, TaskCodeGeneration: true,
	TaskDataExtraction: true, TaskSummarization: true, TaskResearch: true,
}

// lowerTemperatureTasks produces code or another rigidly structured output,
// where sampling variance hurts more than it helps.
var lowerTemperatureTasks = map[TaskType]bool{
	TaskCodeGeneration:        true,
	TaskDataExtraction:        true,
	TaskDecompositionAnalysis: true,
}

func defaultTemperature(t TaskType) float64 {
	if lowerTemperatureTasks[t] {
		return 0.2
	}
	return 0.7
}

// TaskSpec is the Task agent: an optional tool invocation followed by a
// single LLM call with a task_type-selected system prompt and temperature.
// Context["task_type"] selects the TaskType; it defaults to TaskGeneral when
// absent or unrecognized. Instructions and Tools are both optional: a nil
// Instructions falls back to the bare prompt with no task_type framing, and
// a nil Tools simply skips tool-call handling.
type TaskSpec struct {
	LLM          *llm.Client
	Instructions *instruction.Set
	Tools        *tools.ToolRegistry
}

// Kind identifies this specialization for persistence.
func (TaskSpec) Kind() store.AgentKind { return store.AgentKindTask }

// Run optionally executes a caller-directed tool call, then issues one LLM
// call built from the input's task_type and prompt.
func (t TaskSpec) Run(ctx context.Context, h *Handle, input Input) (Result, error) {
	taskType := TaskGeneral
	if raw, ok := input.Context["task_type"].(string); ok && raw != "" && knownTaskTypes[TaskType(raw)] {
		taskType = TaskType(raw)
	}

	toolOutput, err := t.runToolCall(ctx, input)
	if err != nil {
		return Result{}, err
	}

	data := instruction.Data{Prompt: input.Prompt}
	if ctxText, ok := input.Context["shared_context"].(string); ok {
		data.SharedContext = ctxText
	}
	if t.Tools != nil {
		data.Tools = describeTools(t.Tools.ListTools())
	}
	if toolOutput != "" {
		data.Prompt = toolOutput + "\n\n" + data.Prompt
	}

	pair, sysText, err := t.render(string(taskType), data)
	if err != nil {
		return Result{}, errs.Wrap(errs.KindValidation, "render task instructions", err)
	}

	req := llm.CallRequest{
		System: []llm.ContentBlock{{Text: sysText}},
		User:   []llm.ContentBlock{{Text: pair.User}},

		Temperature: defaultTemperature(taskType),
		MaxTokens:   4096,

		ThoughtTreeID: input.ThoughtTreeID,
		AgentID:       h.ID(),
		UseCache:      true,
	}
	if data.SharedContext != "" {
		req.System = append([]llm.ContentBlock{{Text: data.SharedContext, CacheControl: true}}, req.System...)
	}

	resp, callErr := t.LLM.Call(ctx, req)
	if callErr != nil {
		return Result{Usage: resp.Usage, CostUSD: resp.CostUSD}, callErr
	}

	return Result{
		Success: true,
		Content: resp.Text,
		Usage:   resp.Usage,
		CostUSD: resp.CostUSD,
		Metadata: map[string]any{
			"task_type": string(taskType),
			"model":     resp.Model,
		},
	}, nil
}

// render resolves the system/user pair for name, falling back to the bare
// data when no Instructions set is configured.
func (t TaskSpec) render(name string, data instruction.Data) (instruction.Pair, string, error) {
	if t.Instructions == nil {
		return instruction.Pair{User: data.Prompt}, "You are a focused assistant completing one well-scoped task. Answer directly.", nil
	}
	pair, err := t.Instructions.Render(name, data)
	if err != nil {
		return instruction.Pair{}, "", err
	}
	return pair, pair.System, nil
}

// runToolCall executes an orchestrator-supplied tool directive ahead of the
// main call, when Context["tool_call"] names one. The decomposition stage
// attaches this when a subtask's description makes the required side
// effect explicit (e.g. "read file X and summarize it"); TaskSpec never
// decides on its own to call a tool.
func (t TaskSpec) runToolCall(ctx context.Context, input Input) (string, error) {
	if t.Tools == nil {
		return "", nil
	}
	raw, ok := input.Context["tool_call"].(map[string]any)
	if !ok {
		return "", nil
	}
	name, _ := raw["name"].(string)
	if name == "" {
		return "", nil
	}
	args, _ := raw["parameters"].(map[string]interface{})

	result, err := t.Tools.ExecuteTool(ctx, name, args)
	if err != nil {
		return "", errs.Wrap(errs.KindToolExecution, fmt.Sprintf("execute tool %q", name), err)
	}
	if !result.Success {
		return "", errs.New(errs.KindToolExecution, fmt.Sprintf("tool %q failed: %s", name, result.Error))
	}
	return fmt.Sprintf("Tool %q output:\n%s", name, result.Content), nil
}

func describeTools(infos []tools.ToolInfo) string {
	if len(infos) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, info := range infos {
		fmt.Fprintf(&sb, "- %s: %s\n", info.Name, info.Description)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// DecompositionPlan is the parsed shape a decomposition_analysis call is
// expected to produce, used by the sub-orchestrator's Plan stage.
type DecompositionPlan struct {
	Subtasks []Subtask
}

// Subtask is one unit of a DecompositionPlan.
type Subtask struct {
	ID                  string
	Title               string
	Description         string
	Dependencies        []string
	EstimatedComplexity string
	RequiredAgentKinds  []store.AgentKind
	// ToolCall is set when the decomposition stage determined this
	// subtask's description names an explicit tool side effect (e.g.
	// "read file X and summarize it"). Shaped as {"name": ..., "parameters":
	// {...}} so it round-trips directly into Input.Context["tool_call"].
	ToolCall map[string]any
}

// TrivialPlan builds the single-subtask fallback plan used when
// decomposition itself fails: the whole task becomes the one subtask,
// mirroring the parent's title and description.
func TrivialPlan(title, description string) DecompositionPlan {
	return DecompositionPlan{
		Subtasks: []Subtask{{
			ID:                  "trivial-1",
			Title:               title,
			Description:         description,
			EstimatedComplexity: "medium",
			RequiredAgentKinds:  []store.AgentKind{store.AgentKindTask},
		}},
	}
}

// ValidateTaskType reports an error for an unrecognized task_type value,
// used by callers that need to fail fast rather than silently fall back to
// TaskGeneral.
func ValidateTaskType(raw string) error {
	if !knownTaskTypes[TaskType(raw)] {
		return errs.New(errs.KindValidation, fmt.Sprintf("unknown task_type %q", raw))
	}
	return nil
}
