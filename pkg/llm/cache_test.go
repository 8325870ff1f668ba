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
	"strings"
	"testing"
)

func blocks(texts ...string) []ContentBlock {
	out := make([]ContentBlock, len(texts))
	for i, t := range texts {
		out[i] = ContentBlock{Text: t}
	}
	return out
}

func TestBreakpointPolicy_AnnotatesOnlyAboveMinimum(t *testing.T) {
	policy := NewBreakpointPolicy(1024, 4, nil)

	short := strings.Repeat("a", 100)
	long := strings.Repeat("a", 5000) // ~1250 tokens at chars/4

	system, user := policy.Annotate(blocks(short), blocks(long), false)

	if system[0].CacheControl {
		t.Error("short system block should not be annotated")
	}
	if !user[0].CacheControl {
		t.Error("long user block should be annotated")
	}
}

func TestBreakpointPolicy_CapsAtMaxBreakpoints(t *testing.T) {
	policy := NewBreakpointPolicy(10, 2, nil) // low min so every block qualifies

	long := strings.Repeat("a", 200)
	system, user := policy.Annotate(blocks(long, long), blocks(long, long), false)

	annotated := 0
	for _, b := range append(system, user...) {
		if b.CacheControl {
			annotated++
		}
	}
	if annotated != 2 {
		t.Errorf("expected exactly 2 annotated blocks (budget cap), got %d", annotated)
	}
}

func TestBreakpointPolicy_SharedContextForcesFirstSystemBlock(t *testing.T) {
	policy := NewBreakpointPolicy(999999, 4, nil) // unreachable minimum

	system, _ := policy.Annotate(blocks("tiny"), blocks("tiny"), true)

	if !system[0].CacheControl {
		t.Error("shared context system block must be cacheable regardless of size")
	}
}

func TestBreakpointPolicy_BudgetExhaustedLeavesLaterBlocksUnannotated(t *testing.T) {
	policy := NewBreakpointPolicy(10, 1, nil)

	long := strings.Repeat("a", 200)
	system, user := policy.Annotate(blocks(long), blocks(long), false)

	if !system[0].CacheControl {
		t.Fatal("first qualifying block should be annotated")
	}
	if user[0].CacheControl {
		t.Error("second block should be skipped once the breakpoint budget is exhausted")
	}
}
