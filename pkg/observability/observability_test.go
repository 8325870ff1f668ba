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

package observability

import (
	"testing"
	"time"
)

func newTestRegistry(t *testing.T) *PrometheusRegistry {
	t.Helper()
	m, err := NewMetrics(&MetricsConfig{Enabled: true, Namespace: "test_" + t.Name()})
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func TestPrometheusRegistryAgentMetrics(t *testing.T) {
	m := newTestRegistry(t)

	m.RecordAgentCall("task", "task", 100*time.Millisecond)
	m.RecordAgentError("task", "task", "timeout")
	m.IncAgentActiveRuns("task")
	m.DecAgentActiveRuns("task")
}

func TestPrometheusRegistryToolMetrics(t *testing.T) {
	m := newTestRegistry(t)

	m.RecordToolCall("read_file", 50*time.Millisecond)
	m.RecordToolError("read_file", "not_found")
}

func TestPrometheusRegistryLLMMetrics(t *testing.T) {
	m := newTestRegistry(t)

	m.RecordLLMCall("claude-sonnet", "anthropic", 500*time.Millisecond)
	m.RecordLLMTokens("claude-sonnet", "anthropic", 100, 50)
	m.RecordLLMError("claude-sonnet", "anthropic", "rate_limited")
}

func TestNoopMetricsSatisfiesRecorder(t *testing.T) {
	var r Recorder = NoopMetrics{}

	r.RecordAgentCall("x", "x", time.Millisecond)
	r.RecordToolCall("x", time.Millisecond)
	r.RecordLLMCall("x", "x", time.Millisecond)

	if r.Handler() == nil {
		t.Error("NoopMetrics.Handler() returned nil")
	}
}

func TestGlobalRecorder(t *testing.T) {
	if _, ok := GetGlobalRecorder().(NoopMetrics); !ok {
		t.Error("expected default global recorder to be NoopMetrics when unset")
	}

	m := newTestRegistry(t)
	SetGlobalRecorder(m)
	defer SetGlobalRecorder(nil)

	if GetGlobalRecorder() != Recorder(m) {
		t.Error("GetGlobalRecorder did not return the recorder set by SetGlobalRecorder")
	}
}

func BenchmarkPrometheusRegistryRecordAgentCall(b *testing.B) {
	m, err := NewMetrics(&MetricsConfig{Enabled: true, Namespace: "bench"})
	if err != nil {
		b.Fatalf("NewMetrics: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.RecordAgentCall("task", "task", 100*time.Millisecond)
	}
}
