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
	"sync"
	"time"
)

// MonitoringState is updated at every phase boundary and on every agent
// completion, per spec.md §4.5's live monitoring requirement.
type MonitoringState struct {
	ProgressPercent float64
	ActiveCount     int
	CompletedCount  int
	FailedCount     int
	CostConsumedUSD float64
	WallClockMinutes float64
	RiskFactors     []string
	Bottlenecks     []string
}

// Monitor tracks a MonitoringState across a workflow run, safe for
// concurrent updates from parallel subtask goroutines.
type Monitor struct {
	mu        sync.Mutex
	state     MonitoringState
	startedAt time.Time
	total     int
}

// NewMonitor starts a Monitor for a workflow with the given subtask count.
func NewMonitor(total int) *Monitor {
	return &Monitor{startedAt: time.Now(), total: total}
}

// RecordActive increments the active-agent count at a phase boundary.
func (m *Monitor) RecordActive(delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.ActiveCount += delta
	m.refreshLocked()
}

// RecordCompletion records one subtask finishing, successfully or not, and
// recomputes progress and wall-clock elapsed.
func (m *Monitor) RecordCompletion(success bool, costUSD float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.ActiveCount > 0 {
		m.state.ActiveCount--
	}
	if success {
		m.state.CompletedCount++
	} else {
		m.state.FailedCount++
	}
	m.state.CostConsumedUSD += costUSD
	m.refreshLocked()
}

// Flag appends a risk factor or bottleneck observation.
func (m *Monitor) Flag(risk, bottleneck string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if risk != "" {
		m.state.RiskFactors = append(m.state.RiskFactors, risk)
	}
	if bottleneck != "" {
		m.state.Bottlenecks = append(m.state.Bottlenecks, bottleneck)
	}
}

func (m *Monitor) refreshLocked() {
	if m.total > 0 {
		m.state.ProgressPercent = 100 * float64(m.state.CompletedCount+m.state.FailedCount) / float64(m.total)
	}
	m.state.WallClockMinutes = time.Since(m.startedAt).Minutes()
}

// Snapshot returns a copy of the current state.
func (m *Monitor) Snapshot() MonitoringState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshLocked()
	snap := m.state
	snap.RiskFactors = append([]string(nil), m.state.RiskFactors...)
	snap.Bottlenecks = append([]string(nil), m.state.Bottlenecks...)
	return snap
}

// FailureRate returns the fraction of finished subtasks that failed, 0
// when nothing has finished yet.
func (m *Monitor) FailureRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := m.state.CompletedCount + m.state.FailedCount
	if total == 0 {
		return 0
	}
	return float64(m.state.FailedCount) / float64(total)
}
