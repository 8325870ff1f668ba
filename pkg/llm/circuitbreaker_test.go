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
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := NewCircuitBreaker(3, 50*time.Millisecond)

	for i := 0; i < 2; i++ {
		if !b.Allow() {
			t.Fatalf("breaker should stay closed before threshold, call %d", i)
		}
		b.RecordFailure()
	}

	if b.State() != StateClosed {
		t.Fatal("breaker should still be closed after 2 of 3 failures")
	}

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatal("breaker should open after the 3rd consecutive failure")
	}
	if b.Allow() {
		t.Fatal("breaker should fail fast while open")
	}
}

func TestCircuitBreaker_ClosesAfterCooldown(t *testing.T) {
	b := NewCircuitBreaker(1, 20*time.Millisecond)

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatal("breaker should open on first failure with threshold=1")
	}
	if b.Allow() {
		t.Fatal("breaker should not allow calls immediately after opening")
	}

	time.Sleep(30 * time.Millisecond)

	if !b.Allow() {
		t.Fatal("breaker should allow a call once the cool-down window elapses")
	}
	if b.State() != StateClosed {
		t.Fatal("breaker should have transitioned back to closed")
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewCircuitBreaker(3, time.Second)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	if b.State() != StateClosed {
		t.Fatal("breaker should remain closed: success should have reset the consecutive count")
	}
}
