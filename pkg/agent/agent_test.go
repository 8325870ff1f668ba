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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nyxcore/orchestrator/pkg/llm"
	"github.com/nyxcore/orchestrator/pkg/store"
)

// fakeProvider is a Provider stub letting tests script success/failure
// sequences without touching the network.
type fakeProvider struct {
	responses []llm.Response
	errs      []error
	call      int
}

func (f *fakeProvider) Name() string         { return "fake" }
func (f *fakeProvider) SupportsCaching() bool { return false }
func (f *fakeProvider) Call(ctx context.Context, req llm.CallRequest) (llm.Response, error) {
	i := f.call
	f.call++
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.responses[i], err
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	mock.MatchExpectationsInOrder(false)
	mock.ExpectExec("INSERT INTO agents").WillReturnResult(sqlmock.NewResult(1, 1))
	for i := 0; i < 4; i++ {
		mock.ExpectExec("UPDATE agents").WillReturnResult(sqlmock.NewResult(1, 1))
	}
	return store.NewForTest(db, "sqlite")
}

func newTestHandle(t *testing.T, spec Specialization, provider *fakeProvider) *Handle {
	t.Helper()
	s := newTestStore(t)
	client := llm.NewClient(provider, "fake-model", 1024, 0.5, 0, 0, nil, nil)
	h, err := New(context.Background(), "tt-1", "test", nil, spec, Dependencies{
		Store:      s,
		LLM:        client,
		MaxRetries: 2,
		Timeout:    time.Second,
		MaxBackoff: 10 * time.Millisecond,
	}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return h
}

func TestHandle_InitializeTransitionsSpawnedToActive(t *testing.T) {
	h := newTestHandle(t, TaskSpec{}, &fakeProvider{responses: []llm.Response{{Text: "ok"}}})
	ok, err := h.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if !ok {
		t.Fatal("Initialize() = false, want true")
	}
	if h.State() != store.AgentActive {
		t.Errorf("State() = %v, want %v", h.State(), store.AgentActive)
	}
}

func TestHandle_InitializeTwiceReturnsFalse(t *testing.T) {
	h := newTestHandle(t, TaskSpec{}, &fakeProvider{responses: []llm.Response{{Text: "ok"}}})
	ctx := context.Background()
	if _, err := h.Initialize(ctx); err != nil {
		t.Fatalf("first Initialize() error = %v", err)
	}
	ok, err := h.Initialize(ctx)
	if err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}
	if ok {
		t.Error("second Initialize() = true, want false")
	}
}

func TestHandle_ExecuteSucceedsAndCompletes(t *testing.T) {
	provider := &fakeProvider{responses: []llm.Response{{Text: "done", Usage: llm.Usage{InputTokens: 10, OutputTokens: 5}}}}
	h := newTestHandle(t, TaskSpec{LLM: nil}, provider)
	h.spec = TaskSpec{LLM: h.deps.LLM}
	ctx := context.Background()
	if _, err := h.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	res, err := h.Execute(ctx, Input{Prompt: "do the thing"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.Success {
		t.Error("Execute() result not successful")
	}
	if h.State() != store.AgentCompleted {
		t.Errorf("State() = %v, want %v", h.State(), store.AgentCompleted)
	}
	tokensUsed, _ := h.Statistics()
	if tokensUsed != 15 {
		t.Errorf("tokensUsed = %d, want 15", tokensUsed)
	}
}

func TestHandle_ExecuteFromSpawnedFails(t *testing.T) {
	h := newTestHandle(t, TaskSpec{}, &fakeProvider{responses: []llm.Response{{Text: "ok"}}})
	_, err := h.Execute(context.Background(), Input{Prompt: "x"})
	if err == nil {
		t.Fatal("expected an error executing from the spawned state")
	}
}

func TestValidatorSpec_CriticalFailureFlipsOverall(t *testing.T) {
	v := ValidatorSpec{Rules: DefaultRuleBank(), Level: SeverityCritical}
	h := newTestHandle(t, v, &fakeProvider{responses: []llm.Response{{Text: "ok"}}})
	h.spec = v

	res, err := v.Run(context.Background(), h, Input{Prompt: "here is a key: BEGIN PRIVATE KEY"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Success {
		t.Error("expected overall failure on a critical rule violation")
	}
}

func TestValidatorSpec_BasicLevelSkipsHigherSeverityRules(t *testing.T) {
	v := ValidatorSpec{Rules: DefaultRuleBank(), Level: SeverityBasic}
	h := newTestHandle(t, v, &fakeProvider{responses: []llm.Response{{Text: "ok"}}})

	res, err := v.Run(context.Background(), h, Input{Prompt: "TODO: fill this in"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Success {
		t.Error("expected a standard-severity rule to be skipped at the basic level")
	}
}

func TestParseRecommendation_SplitsLabeledSections(t *testing.T) {
	text := "Recommendation:\nShip it.\n\nRisks:\n- cost overrun\n- delay\n\nRoadmap:\n- week 1\n\nMonitoring:\n- error rate"
	rec := parseRecommendation(text)
	if rec.Recommendation != "Ship it." {
		t.Errorf("Recommendation = %q, want %q", rec.Recommendation, "Ship it.")
	}
	if len(rec.Risks) != 2 {
		t.Errorf("len(Risks) = %d, want 2", len(rec.Risks))
	}
	if len(rec.Roadmap) != 1 || len(rec.Monitoring) != 1 {
		t.Errorf("Roadmap/Monitoring not parsed: %+v", rec)
	}
}

func TestValidTransitionRejectsSkippingActive(t *testing.T) {
	if store.ValidTransition(store.AgentSpawned, store.AgentWaiting) {
		t.Error("spawned -> waiting should be illegal; must pass through active")
	}
}
