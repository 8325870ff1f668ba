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

package llm

import (
	"sync"
	"time"
)

// CircuitState is the process-global breaker state (§5: state transitions
// must be serialized; one CircuitBreaker is shared by every Client call).
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
)

func (s CircuitState) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

// CircuitBreaker opens after a run of consecutive failures and fails fast
// for a cool-down window before allowing calls through again. There is no
// half-open probe state in this design: the next call after the cool-down
// window elapses is simply allowed through, and either resets the breaker
// (on success) or re-opens it (on failure) like any other call.
type CircuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	cooldown         time.Duration

	state           CircuitState
	consecutiveFail int
	openedAt        time.Time
}

// NewCircuitBreaker builds a breaker that opens after failureThreshold
// consecutive failures and stays open for cooldown.
func NewCircuitBreaker(failureThreshold int, cooldown time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if cooldown <= 0 {
		cooldown = 300 * time.Second
	}
	return &CircuitBreaker{failureThreshold: failureThreshold, cooldown: cooldown}
}

// Allow reports whether a call may proceed. It transitions Open→Closed once
// the cool-down window has elapsed, so the caller does not need a separate
// half-open poll.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateClosed {
		return true
	}
	if time.Since(b.openedAt) >= b.cooldown {
		b.state = StateClosed
		b.consecutiveFail = 0
		return true
	}
	return false
}

// RecordSuccess resets the consecutive-failure count and closes the breaker.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFail = 0
	b.state = StateClosed
}

// RecordFailure bumps the consecutive-failure count, opening the breaker
// once it reaches the threshold.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFail++
	if b.consecutiveFail >= b.failureThreshold && b.state == StateClosed {
		b.state = StateOpen
		b.openedAt = time.Now()
	}
}

// State returns the current state for status/metrics reporting.
func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
