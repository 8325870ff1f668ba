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
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nyxcore/orchestrator/pkg/agent"
	"github.com/nyxcore/orchestrator/pkg/llm"
	"github.com/nyxcore/orchestrator/pkg/store"
)

type fakeBudget struct {
	agents   int
	costUSD  float64
	wallTime string
}

func (b fakeBudget) GetMaxAgents() int      { return b.agents }
func (b fakeBudget) GetMaxCostUSD() float64 { return b.costUSD }
func (b fakeBudget) GetMaxWallTime() string { return b.wallTime }

func TestScoreComplexity_ShortQuestionIsLowCognitive(t *testing.T) {
	c := ScoreComplexity(ScoreInput{Prompt: "what is a thought tree"})
	if c.Cognitive != LevelLow {
		t.Errorf("Cognitive = %v, want low", c.Cognitive)
	}
	if c.Overall != LevelLow && c.Overall != LevelMedium {
		t.Errorf("Overall = %v, want low or medium for a short question", c.Overall)
	}
}

func TestScoreComplexity_CouncilConsensusRaisesQualityAndRisk(t *testing.T) {
	c := ScoreComplexity(ScoreInput{Prompt: "draft a migration rollback plan", RequireCouncilConsensus: true})
	if c.QualityRequirements != LevelHigh {
		t.Errorf("QualityRequirements = %v, want high", c.QualityRequirements)
	}
	if c.Risk != LevelHigh {
		t.Errorf("Risk = %v, want high", c.Risk)
	}
}

func TestScoreComplexity_ManyDeliverablesRaiseScopeAndCoordination(t *testing.T) {
	c := ScoreComplexity(ScoreInput{Prompt: "build a report with many sections", DeliverableCount: 5})
	if c.ScopeBreadth != LevelHigh || c.Coordination != LevelHigh {
		t.Errorf("ScopeBreadth=%v Coordination=%v, want both high", c.ScopeBreadth, c.Coordination)
	}
}

func TestAggregateOverall_CriticalOnAnyCriticalDimension(t *testing.T) {
	c := Complexity{
		Cognitive: LevelMedium, Technical: LevelMedium, Coordination: LevelMedium, Data: LevelMedium,
		TimeSensitivity: LevelMedium, QualityRequirements: LevelMedium, ScopeBreadth: LevelMedium, Risk: LevelCritical,
	}
	c.AggregateOverall()
	if got := c.Overall; got != LevelCritical {
		t.Errorf("AggregateOverall() = %v, want critical", got)
	}
}

func TestEstimateResources_ScalesByMultiplier(t *testing.T) {
	base := fakeBudget{agents: 5, costUSD: 10, wallTime: "10m"}
	est := EstimateResources(LevelHigh, base, 0.5)
	if est.MaxAgents != 20 || est.MaxCostUSD != 40 {
		t.Errorf("EstimateResources(high) = %+v, want 4x base", est)
	}
}

func TestSelectStrategy_GoalWorkflowAlwaysRecurses(t *testing.T) {
	in := StrategyInput{Kind: InputGoalWorkflow, Complexity: Complexity{Overall: LevelLow}}
	if got := SelectStrategy(in, nil); got != TopRecursiveDecomposition {
		t.Errorf("SelectStrategy() = %v, want recursive_decomposition", got)
	}
}

func TestSelectStrategy_HighRiskWithCouncilConsensusGoesCouncilDriven(t *testing.T) {
	in := StrategyInput{
		Kind: InputUserPrompt, RequireCouncilConsensus: true,
		Complexity: Complexity{Overall: LevelMedium, Risk: LevelHigh},
	}
	if got := SelectStrategy(in, nil); got != TopCouncilDriven {
		t.Errorf("SelectStrategy() = %v, want council_driven", got)
	}
}

func TestSelectStrategy_RequiresDecompositionRespectsTimeBudget(t *testing.T) {
	in := StrategyInput{Kind: InputUserPrompt, Complexity: Complexity{Overall: LevelHigh}, TightTimeBudget: true}
	if got := SelectStrategy(in, nil); got != TopParallelExecution {
		t.Errorf("SelectStrategy() tight budget = %v, want parallel_execution", got)
	}

	in.TightTimeBudget = false
	if got := SelectStrategy(in, nil); got != TopRecursiveDecomposition {
		t.Errorf("SelectStrategy() no time pressure = %v, want recursive_decomposition", got)
	}
}

func TestSelectStrategy_OptimizationFocusNotOverriddenByAdapter(t *testing.T) {
	in := StrategyInput{Kind: InputUserPrompt, Complexity: Complexity{Overall: LevelLow}, Optimization: OptimizeSpeed}
	adapter := fixedAdapter{strategy: TopIterativeRefinement, confidence: 0.99}
	if got := SelectStrategy(in, adapter); got != TopParallelExecution {
		t.Errorf("SelectStrategy() = %v, want parallel_execution (rule 4 is not overridable)", got)
	}
}

func TestSelectStrategy_LowConfidenceAdapterIgnored(t *testing.T) {
	in := StrategyInput{Kind: InputUserPrompt, Complexity: Complexity{Overall: LevelLow}}
	adapter := fixedAdapter{strategy: TopCouncilDriven, confidence: 0.1}
	if got := SelectStrategy(in, adapter); got != TopDirectExecution {
		t.Errorf("SelectStrategy() = %v, want direct_execution (adapter confidence too low)", got)
	}
}

func TestSelectStrategy_ConfidentAdapterOverridesFallback(t *testing.T) {
	in := StrategyInput{Kind: InputUserPrompt, Complexity: Complexity{Overall: LevelLow}}
	adapter := fixedAdapter{strategy: TopCouncilDriven, confidence: 0.9}
	if got := SelectStrategy(in, adapter); got != TopCouncilDriven {
		t.Errorf("SelectStrategy() = %v, want council_driven from the adapter", got)
	}
}

type fixedAdapter struct {
	strategy   TopStrategy
	confidence float64
}

func (f fixedAdapter) Suggest(StrategyInput) (TopStrategy, float64) { return f.strategy, f.confidence }

func TestMonitor_RecordCompletionUpdatesProgressAndCost(t *testing.T) {
	m := NewMonitor(2)
	m.RecordActive(2)
	m.RecordCompletion(true, 1.5)
	m.RecordCompletion(false, 0.5)

	snap := m.Snapshot()
	if snap.CompletedCount != 1 || snap.FailedCount != 1 {
		t.Errorf("snapshot = %+v, want 1 completed 1 failed", snap)
	}
	if snap.ProgressPercent != 100 {
		t.Errorf("ProgressPercent = %v, want 100", snap.ProgressPercent)
	}
	if snap.CostConsumedUSD != 2.0 {
		t.Errorf("CostConsumedUSD = %v, want 2.0", snap.CostConsumedUSD)
	}
	if m.FailureRate() != 0.5 {
		t.Errorf("FailureRate() = %v, want 0.5", m.FailureRate())
	}
}

func TestRuleBasedAdaptation_FailureRateTakesPriority(t *testing.T) {
	in := AdaptationInput{FailureRate: 0.4, CostConsumedUSD: 9, BudgetCostUSD: 10}
	if got := RuleBasedAdaptation(in); got != AdaptDowngradeStrategy {
		t.Errorf("RuleBasedAdaptation() = %v, want downgrade_strategy", got)
	}
}

func TestRuleBasedAdaptation_CostTrigger(t *testing.T) {
	in := AdaptationInput{CostConsumedUSD: 9, BudgetCostUSD: 10}
	if got := RuleBasedAdaptation(in); got != AdaptShrinkConcurrency {
		t.Errorf("RuleBasedAdaptation() = %v, want shrink_concurrency", got)
	}
}

func TestRuleBasedAdaptation_ElapsedTriggerRequiresExpansionAllowed(t *testing.T) {
	in := AdaptationInput{ElapsedMinutes: 9, BudgetMinutes: 10, ExpansionAllowed: false}
	if got := RuleBasedAdaptation(in); got != AdaptNone {
		t.Errorf("RuleBasedAdaptation() = %v, want none when expansion is disallowed", got)
	}

	in.ExpansionAllowed = true
	if got := RuleBasedAdaptation(in); got != AdaptExpandConcurrency {
		t.Errorf("RuleBasedAdaptation() = %v, want expand_concurrency", got)
	}
}

func TestAdapt_ShrinkNeverGoesBelowOne(t *testing.T) {
	concurrency, timeout := Adapt(AdaptShrinkConcurrency, 1, 30)
	if concurrency != 1 || timeout != 30 {
		t.Errorf("Adapt() = %d, %d, want 1, 30", concurrency, timeout)
	}
}

func TestAdapt_DowngradeLengthensTimeout(t *testing.T) {
	concurrency, timeout := Adapt(AdaptDowngradeStrategy, 4, 30)
	if concurrency != 2 || timeout != 60 {
		t.Errorf("Adapt() = %d, %d, want 2, 60", concurrency, timeout)
	}
}

func newTopTestBase(t *testing.T, maxConcurrent int) (*Base, *llm.Client) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	mock.MatchExpectationsInOrder(false)
	for _, pattern := range []string{
		"INSERT INTO thought_trees", "INSERT INTO orchestrator_records",
		"INSERT INTO agents", "UPDATE agents", "UPDATE orchestrator_records",
		"UPDATE thought_trees",
	} {
		for i := 0; i < 20; i++ {
			mock.ExpectExec(pattern).WillReturnResult(sqlmock.NewResult(1, 1))
		}
	}
	s := store.NewForTest(db, "sqlite")
	client := llm.NewClient(&fakeProvider{text: "ok"}, "fake-model", 1024, 0.5, 0, 0, nil, nil)
	deps := agent.Dependencies{Store: s, LLM: client, MaxRetries: 1, Timeout: 0, MaxBackoff: 0}

	specs := func(kind store.AgentKind) (agent.Specialization, error) {
		return agent.TaskSpec{LLM: client}, nil
	}

	base, err := NewBase(context.Background(), s, "test goal", "", nil, 1, maxConcurrent, specs, deps)
	if err != nil {
		t.Fatalf("NewBase() error = %v", err)
	}
	return base, client
}

func TestTop_DirectExecutionSucceeds(t *testing.T) {
	base, _ := newTopTestBase(t, 3)
	top := NewTop(base, nil, nil, fakeBudget{agents: 5, costUSD: 10, wallTime: "10m"})

	result, err := top.Run(context.Background(), WorkflowInput{Kind: InputUserPrompt, Prompt: "what is a thought tree"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.StrategyUsed != TopDirectExecution {
		t.Errorf("StrategyUsed = %v, want direct_execution", result.StrategyUsed)
	}
	if !result.Success || result.Content != "ok" {
		t.Errorf("result = %+v, want success with content \"ok\"", result)
	}
}
