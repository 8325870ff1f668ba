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

	"golang.org/x/sync/errgroup"

	"github.com/nyxcore/orchestrator/pkg/agent"
	"github.com/nyxcore/orchestrator/pkg/errs"
	"github.com/nyxcore/orchestrator/pkg/store"
)

var errNoSubOrchestrator = errs.New(errs.KindValidation, "recursive_decomposition requires a configured sub-orchestrator")

// WorkflowInput is the top-level orchestrator's entry point.
type WorkflowInput struct {
	Kind                    InputKind
	Prompt                  string
	DeliverableCount        int
	RequireCouncilConsensus bool
	ValidationLevel         string
	Optimization            OptimizationFocus
	TightTimeBudget         bool
}

// TopResult is the top-level result spec.md §4.5 names: success, content,
// subtask count, strategy used, the complexity analysis, the resource
// estimate, the final monitoring snapshot, and accumulated cost/tokens.
type TopResult struct {
	Success       bool
	Content       string
	SubtaskCount  int
	StrategyUsed  TopStrategy
	Complexity    Complexity
	Estimate      ResourceEstimate
	Monitoring    MonitoringState
	TotalCostUSD  float64
	TotalTokens   int
}

// Top is the top-level orchestrator: scores complexity, picks a strategy,
// dispatches to the matching execution method, and synthesizes a result.
type Top struct {
	base            *Base
	sub             *Sub
	adapter         LearningAdapter
	baseBudget      BudgetLike
	maxSubtasksSeq  int // 5, per spec.md §4.5
	maxSubtasksPar  int // 6, per spec.md §4.5
	maxRefineIters  int // 3, per spec.md §4.5
}

// NewTop wires a Top orchestrator around an already-constructed Base (and
// the Sub it falls back to for recursive_decomposition).
func NewTop(base *Base, sub *Sub, adapter LearningAdapter, baseBudget BudgetLike) *Top {
	return &Top{
		base: base, sub: sub, adapter: adapter, baseBudget: baseBudget,
		maxSubtasksSeq: 5, maxSubtasksPar: 6, maxRefineIters: 3,
	}
}

// ThoughtTreeID returns the ThoughtTree backing this Top's Base, so a
// caller (e.g. the motivational engine) can link a spawned workflow back
// to the drive that produced it.
func (t *Top) ThoughtTreeID() string { return t.base.ThoughtTreeID() }

// Run scores the input, selects a strategy, dispatches, and synthesizes
// the TopResult.
func (t *Top) Run(ctx context.Context, in WorkflowInput) (TopResult, error) {
	complexity := ScoreComplexity(ScoreInput{
		Prompt: in.Prompt, RequireCouncilConsensus: in.RequireCouncilConsensus,
		ValidationLevel: in.ValidationLevel, DeliverableCount: in.DeliverableCount,
	})
	estimate := EstimateResources(complexity.Overall, t.baseBudget, 0.5)

	strategy := SelectStrategy(StrategyInput{
		Kind: in.Kind, Complexity: complexity, RequireCouncilConsensus: in.RequireCouncilConsensus,
		TightTimeBudget: in.TightTimeBudget, Optimization: in.Optimization,
	}, t.adapter)

	monitor := NewMonitor(1)

	outcome, err := t.dispatch(ctx, strategy, in, monitor)
	if err != nil {
		return TopResult{}, err
	}

	return TopResult{
		Success:      outcome.success,
		Content:      outcome.content,
		SubtaskCount: outcome.subtaskCount,
		StrategyUsed: strategy,
		Complexity:   complexity,
		Estimate:     estimate,
		Monitoring:   monitor.Snapshot(),
		TotalCostUSD: outcome.costUSD,
		TotalTokens:  outcome.tokens,
	}, nil
}

type dispatchOutcome struct {
	success      bool
	content      string
	subtaskCount int
	costUSD      float64
	tokens       int
}

func (t *Top) dispatch(ctx context.Context, strategy TopStrategy, in WorkflowInput, monitor *Monitor) (dispatchOutcome, error) {
	switch strategy {
	case TopDirectExecution:
		return t.directExecution(ctx, in, monitor)
	case TopSequentialDecomposition:
		return t.sequentialDecomposition(ctx, in, monitor)
	case TopParallelExecution:
		return t.parallelExecution(ctx, in, monitor)
	case TopRecursiveDecomposition:
		out, err := t.recursiveDecomposition(ctx, in, monitor)
		if err != nil {
			return t.parallelExecution(ctx, in, monitor)
		}
		return out, nil
	case TopCouncilDriven:
		return t.councilDriven(ctx, in, monitor)
	case TopIterativeRefinement:
		return t.iterativeRefinement(ctx, in, monitor)
	default:
		return t.directExecution(ctx, in, monitor)
	}
}

func (t *Top) directExecution(ctx context.Context, in WorkflowInput, monitor *Monitor) (dispatchOutcome, error) {
	h, err := t.base.SpawnAgent(ctx, store.AgentKindTask, "task.general", nil, nil)
	if err != nil {
		return dispatchOutcome{}, err
	}
	if h == nil {
		return dispatchOutcome{success: false, content: "concurrency quota exhausted"}, nil
	}

	monitor.RecordActive(1)
	res, execErr := h.Execute(ctx, agent.Input{Prompt: in.Prompt, ThoughtTreeID: t.base.ThoughtTreeID()})
	_ = t.base.TrackAgentCompletion(ctx, h, res)
	monitor.RecordCompletion(res.Success, res.CostUSD)
	if execErr != nil && res.Content == "" {
		return dispatchOutcome{success: false, content: res.Error, subtaskCount: 1}, nil
	}

	return dispatchOutcome{
		success: res.Success, content: res.Content, subtaskCount: 1,
		costUSD: res.CostUSD, tokens: res.Usage.InputTokens + res.Usage.OutputTokens,
	}, nil
}

// sequentialDecomposition mirrors Sub's sequential execution but caps at
// 5 subtasks and decomposes via a single Task agent call rather than
// recursing through a full sub-orchestrator.
func (t *Top) sequentialDecomposition(ctx context.Context, in WorkflowInput, monitor *Monitor) (dispatchOutcome, error) {
	plan := t.decompose(ctx, in, t.maxSubtasksSeq)
	monitor.total = len(plan.Subtasks)

	var previousOutput string
	var successCount int
	var totalCost float64
	var totalTokens int
	var lastContent string

	for _, st := range plan.Subtasks {
		h, err := t.base.SpawnAgent(ctx, store.AgentKindTask, "task.general", nil, nil)
		if err != nil {
			return dispatchOutcome{}, err
		}
		if h == nil {
			monitor.Flag("", "concurrency quota exhausted mid-sequence")
			break
		}

		monitor.RecordActive(1)
		prompt := st.Description
		if previousOutput != "" {
			prompt = previousOutput + "\n\n" + st.Description
		}
		res, execErr := h.Execute(ctx, agent.Input{Prompt: prompt, ThoughtTreeID: t.base.ThoughtTreeID()})
		_ = t.base.TrackAgentCompletion(ctx, h, res)
		monitor.RecordCompletion(res.Success, res.CostUSD)
		totalCost += res.CostUSD
		totalTokens += res.Usage.InputTokens + res.Usage.OutputTokens

		if execErr == nil && res.Success {
			successCount++
			previousOutput = res.Content
			lastContent = res.Content
		}
	}

	return dispatchOutcome{
		success: successCount == len(plan.Subtasks) && len(plan.Subtasks) > 0,
		content: t.synthesizeOrConcat(ctx, plan, successCount, lastContent),
		subtaskCount: len(plan.Subtasks), costUSD: totalCost, tokens: totalTokens,
	}, nil
}

// parallelExecution launches up to 6 subtasks at once, joined with
// all-settled semantics: every subtask runs to completion or failure,
// none is aborted by a sibling's failure. Subtasks are not batched: one
// that finds no free agent slot when it starts gets a failed "concurrency
// quota exhausted" result and is not retried.
func (t *Top) parallelExecution(ctx context.Context, in WorkflowInput, monitor *Monitor) (dispatchOutcome, error) {
	plan := t.decompose(ctx, in, t.maxSubtasksPar)
	monitor.total = len(plan.Subtasks)

	outputs := make([]agent.Result, len(plan.Subtasks))
	g, gctx := errgroup.WithContext(ctx)

	for i, st := range plan.Subtasks {
		i, st := i, st
		g.Go(func() error {
			h, err := t.base.SpawnAgent(gctx, store.AgentKindTask, "task.general", nil, nil)
			if err != nil {
				return nil // all-settled: a spawn error becomes a failed slot, not an abort
			}
			if h == nil {
				outputs[i] = agent.Result{Success: false, Error: "concurrency quota exhausted"}
				return nil
			}

			monitor.RecordActive(1)
			res, _ := h.Execute(gctx, agent.Input{Prompt: st.Description, ThoughtTreeID: t.base.ThoughtTreeID()})
			_ = t.base.TrackAgentCompletion(gctx, h, res)
			monitor.RecordCompletion(res.Success, res.CostUSD)
			outputs[i] = res
			return nil
		})
	}
	_ = g.Wait()

	var successCount int
	var totalCost float64
	var totalTokens int
	var successfulOutputs []string
	for _, res := range outputs {
		if res.Success {
			successCount++
			successfulOutputs = append(successfulOutputs, res.Content)
		}
		totalCost += res.CostUSD
		totalTokens += res.Usage.InputTokens + res.Usage.OutputTokens
	}

	return dispatchOutcome{
		success: successCount == len(outputs) && len(outputs) > 0,
		content: t.synthesizeSuccesses(ctx, successfulOutputs),
		subtaskCount: len(outputs), costUSD: totalCost, tokens: totalTokens,
	}, nil
}

// recursiveDecomposition spawns a Sub-orchestrator for the whole input.
func (t *Top) recursiveDecomposition(ctx context.Context, in WorkflowInput, monitor *Monitor) (dispatchOutcome, error) {
	if t.sub == nil {
		return dispatchOutcome{}, errNoSubOrchestrator
	}

	res, err := t.sub.Run(ctx, SubTask{
		Title: "workflow", Description: in.Prompt, ThoughtTreeID: t.base.ThoughtTreeID(), CurrentDepth: 1,
	})
	if err != nil {
		return dispatchOutcome{}, err
	}

	var totalCost float64
	var totalTokens int
	for _, r := range res.AgentResults {
		totalCost += r.CostUSD
		totalTokens += r.Usage.InputTokens + r.Usage.OutputTokens
		monitor.RecordCompletion(r.Success, r.CostUSD)
	}
	summary, _ := res.Metadata["summary"].(string)

	return dispatchOutcome{
		success: res.Success, content: summary, subtaskCount: len(res.AgentResults),
		costUSD: totalCost, tokens: totalTokens,
	}, nil
}

// councilDriven runs a Council agent first, then parallel execution
// seeded by its recommendation.
func (t *Top) councilDriven(ctx context.Context, in WorkflowInput, monitor *Monitor) (dispatchOutcome, error) {
	h, err := t.base.SpawnAgent(ctx, store.AgentKindCouncil, "council.default", nil, nil)
	if err != nil {
		return dispatchOutcome{}, err
	}
	if h == nil {
		return t.parallelExecution(ctx, in, monitor)
	}

	monitor.RecordActive(1)
	res, execErr := h.Execute(ctx, agent.Input{Prompt: in.Prompt, ThoughtTreeID: t.base.ThoughtTreeID()})
	_ = t.base.TrackAgentCompletion(ctx, h, res)
	monitor.RecordCompletion(res.Success, res.CostUSD)
	if execErr != nil || !res.Success {
		return t.parallelExecution(ctx, in, monitor)
	}

	seeded := in
	seeded.Prompt = res.Content + "\n\n" + in.Prompt
	out, err := t.parallelExecution(ctx, seeded, monitor)
	out.costUSD += res.CostUSD
	out.tokens += res.Usage.InputTokens + res.Usage.OutputTokens
	return out, err
}

// iterativeRefinement runs up to 3 Task-agent iterations; after each
// non-final iteration, a Validator agent decides whether another pass is
// needed.
func (t *Top) iterativeRefinement(ctx context.Context, in WorkflowInput, monitor *Monitor) (dispatchOutcome, error) {
	monitor.total = t.maxRefineIters

	var content string
	var totalCost float64
	var totalTokens int
	iterations := 0

	for i := 0; i < t.maxRefineIters; i++ {
		h, err := t.base.SpawnAgent(ctx, store.AgentKindTask, "task.general", nil, nil)
		if err != nil {
			return dispatchOutcome{}, err
		}
		if h == nil {
			break
		}

		prompt := in.Prompt
		if content != "" {
			prompt = "Prior attempt:\n" + content + "\n\nRefine it against:\n" + in.Prompt
		}
		monitor.RecordActive(1)
		res, _ := h.Execute(ctx, agent.Input{Prompt: prompt, ThoughtTreeID: t.base.ThoughtTreeID()})
		_ = t.base.TrackAgentCompletion(ctx, h, res)
		monitor.RecordCompletion(res.Success, res.CostUSD)
		totalCost += res.CostUSD
		totalTokens += res.Usage.InputTokens + res.Usage.OutputTokens
		iterations++
		if !res.Success {
			break
		}
		content = res.Content

		if i == t.maxRefineIters-1 {
			break
		}

		vh, err := t.base.SpawnAgent(ctx, store.AgentKindValidator, "validator.default", nil, nil)
		if err != nil || vh == nil {
			break
		}
		vres, _ := vh.Execute(ctx, agent.Input{Prompt: content, ThoughtTreeID: t.base.ThoughtTreeID()})
		_ = t.base.TrackAgentCompletion(ctx, vh, vres)
		totalCost += vres.CostUSD
		totalTokens += vres.Usage.InputTokens + vres.Usage.OutputTokens
		if vres.Success {
			break // validator passed: no further refinement needed
		}
	}

	return dispatchOutcome{
		success: content != "", content: content, subtaskCount: iterations,
		costUSD: totalCost, tokens: totalTokens,
	}, nil
}

func (t *Top) decompose(ctx context.Context, in WorkflowInput, maxSubtasks int) agent.DecompositionPlan {
	h, err := t.base.SpawnAgent(ctx, store.AgentKindTask, "task.decomposition_analysis", nil, nil)
	if err != nil || h == nil {
		return agent.TrivialPlan("workflow", in.Prompt)
	}

	res, err := h.Execute(ctx, agent.Input{
		Prompt:        in.Prompt,
		Context:       map[string]any{"task_type": string(agent.TaskDecompositionAnalysis)},
		ThoughtTreeID: t.base.ThoughtTreeID(),
	})
	_ = t.base.TrackAgentCompletion(ctx, h, res)
	if err != nil || !res.Success {
		return agent.TrivialPlan("workflow", in.Prompt)
	}

	plan, ok := parseDecompositionPlan(res.Content)
	if !ok || len(plan.Subtasks) == 0 {
		return agent.TrivialPlan("workflow", in.Prompt)
	}
	if len(plan.Subtasks) > maxSubtasks {
		plan.Subtasks = plan.Subtasks[:maxSubtasks]
	}
	return plan
}

func (t *Top) synthesizeOrConcat(ctx context.Context, plan agent.DecompositionPlan, successCount int, lastContent string) string {
	if successCount == 0 {
		return ""
	}
	return lastContent
}

func (t *Top) synthesizeSuccesses(ctx context.Context, outputs []string) string {
	if len(outputs) == 0 {
		return ""
	}

	h, err := t.base.SpawnAgent(ctx, store.AgentKindMemory, "memory.summarize", nil, nil)
	combined := ""
	for i, o := range outputs {
		if i > 0 {
			combined += "\n\n"
		}
		combined += o
	}
	if err != nil || h == nil {
		return combined
	}

	res, execErr := h.Execute(ctx, agent.Input{
		Prompt: combined, Context: map[string]any{"operation": "summarize"}, ThoughtTreeID: t.base.ThoughtTreeID(),
	})
	_ = t.base.TrackAgentCompletion(ctx, h, res)
	if execErr != nil || !res.Success {
		return combined
	}
	return res.Content
}
