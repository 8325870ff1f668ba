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
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nyxcore/orchestrator/pkg/agent"
	"github.com/nyxcore/orchestrator/pkg/llm"
	"github.com/nyxcore/orchestrator/pkg/store"
)

type fakeProvider struct{ text string }

func (f *fakeProvider) Name() string         { return "fake" }
func (f *fakeProvider) SupportsCaching() bool { return false }
func (f *fakeProvider) Call(ctx context.Context, req llm.CallRequest) (llm.Response, error) {
	return llm.Response{Text: f.text}, nil
}

func newTestBase(t *testing.T, maxConcurrent int) *Base {
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
		for i := 0; i < 10; i++ {
			mock.ExpectExec(pattern).WillReturnResult(sqlmock.NewResult(1, 1))
		}
	}
	s := store.NewForTest(db, "sqlite")

	client := llm.NewClient(&fakeProvider{text: "ok"}, "fake-model", 1024, 0.5, 0, 0, nil, nil)
	deps := agent.Dependencies{Store: s, LLM: client, MaxRetries: 1, Timeout: time.Second, MaxBackoff: 10 * time.Millisecond}

	specs := func(kind store.AgentKind) (agent.Specialization, error) {
		return agent.TaskSpec{LLM: client}, nil
	}

	base, err := NewBase(context.Background(), s, "test goal", "", nil, 1, maxConcurrent, specs, deps)
	if err != nil {
		t.Fatalf("NewBase() error = %v", err)
	}
	return base
}

func TestBase_SpawnAgentRefusesPastQuota(t *testing.T) {
	base := newTestBase(t, 1)
	ctx := context.Background()

	h1, err := base.SpawnAgent(ctx, store.AgentKindTask, "task.general", nil, nil)
	if err != nil {
		t.Fatalf("first SpawnAgent() error = %v", err)
	}
	if h1 == nil {
		t.Fatal("first SpawnAgent() = nil, want a handle")
	}

	h2, err := base.SpawnAgent(ctx, store.AgentKindTask, "task.general", nil, nil)
	if err != nil {
		t.Fatalf("second SpawnAgent() error = %v", err)
	}
	if h2 != nil {
		t.Fatal("second SpawnAgent() should return nil once the quota is exhausted")
	}
}

func TestBase_TrackAgentCompletionFreesSlot(t *testing.T) {
	base := newTestBase(t, 1)
	ctx := context.Background()

	h1, err := base.SpawnAgent(ctx, store.AgentKindTask, "task.general", nil, nil)
	if err != nil || h1 == nil {
		t.Fatalf("SpawnAgent() = %v, %v", h1, err)
	}

	if err := base.TrackAgentCompletion(ctx, h1, agent.Result{Success: true}); err != nil {
		t.Fatalf("TrackAgentCompletion() error = %v", err)
	}

	h2, err := base.SpawnAgent(ctx, store.AgentKindTask, "task.general", nil, nil)
	if err != nil {
		t.Fatalf("SpawnAgent() after completion error = %v", err)
	}
	if h2 == nil {
		t.Fatal("SpawnAgent() after completion should succeed once the slot is freed")
	}
}

func TestPickStrategy(t *testing.T) {
	cases := []struct {
		name string
		plan agent.DecompositionPlan
		want Strategy
	}{
		{"single subtask", agent.DecompositionPlan{Subtasks: []agent.Subtask{{ID: "1"}}}, StrategySequential},
		{"two subtasks no deps", agent.DecompositionPlan{Subtasks: []agent.Subtask{{ID: "1"}, {ID: "2"}}}, StrategySequential},
		{"three subtasks no deps", agent.DecompositionPlan{Subtasks: []agent.Subtask{{ID: "1"}, {ID: "2"}, {ID: "3"}}}, StrategyParallel},
		{"declares a dependency", agent.DecompositionPlan{Subtasks: []agent.Subtask{{ID: "1"}, {ID: "2", Dependencies: []string{"1"}}}}, StrategyDependencyOrdered},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := pickStrategy(c.plan); got != c.want {
				t.Errorf("pickStrategy() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestParseDecompositionPlan_ValidJSON(t *testing.T) {
	text := `[{"id":"1","title":"a","description":"do a","dependencies":[],"estimated_complexity":"low","required_agent_kinds":["task"]}]`
	plan, ok := parseDecompositionPlan(text)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if len(plan.Subtasks) != 1 || plan.Subtasks[0].Title != "a" {
		t.Errorf("unexpected plan: %+v", plan)
	}
}

func TestParseDecompositionPlan_InvalidJSONFallsBack(t *testing.T) {
	_, ok := parseDecompositionPlan("not json")
	if ok {
		t.Fatal("expected parse to fail on non-JSON input")
	}
}

func TestParseDecompositionPlan_ToolCallRoundTripsIntoSubtaskContext(t *testing.T) {
	text := `[{"id":"1","title":"a","description":"read config.yaml","tool_call":{"name":"read_file","parameters":{"path":"config.yaml"}}}]`
	plan, ok := parseDecompositionPlan(text)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if len(plan.Subtasks) != 1 {
		t.Fatalf("unexpected plan: %+v", plan)
	}

	st := plan.Subtasks[0]
	if st.ToolCall == nil || st.ToolCall["name"] != "read_file" {
		t.Errorf("expected tool_call to parse, got %+v", st.ToolCall)
	}

	ctx := subtaskContext(st)
	toolCall, ok := ctx["tool_call"].(map[string]any)
	if !ok || toolCall["name"] != "read_file" {
		t.Errorf("subtaskContext() did not carry tool_call through: %+v", ctx)
	}
}

func TestSubtaskContext_NilWhenNoToolCall(t *testing.T) {
	if ctx := subtaskContext(agent.Subtask{ID: "1"}); ctx != nil {
		t.Errorf("expected nil context for a subtask with no tool_call, got %+v", ctx)
	}
}

func TestSub_RunRefusesAtMaxDepth(t *testing.T) {
	base := newTestBase(t, 5)
	sub := NewSub(base, 2, 6)

	_, err := sub.Run(context.Background(), SubTask{
		Title: "x", Description: "y", ThoughtTreeID: base.ThoughtTreeID(), CurrentDepth: 2,
	})
	if err == nil {
		t.Fatal("expected an error when current depth has reached max depth")
	}
}
