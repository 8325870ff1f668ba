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
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeCost_NoCache(t *testing.T) {
	u := Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	actual, withoutCache := computeCost("claude-sonnet-4-20250514", u)

	wantActual := 3.00 + 15.00
	if !almostEqual(actual, wantActual) {
		t.Errorf("actual cost = %v, want %v", actual, wantActual)
	}
	if !almostEqual(actual, withoutCache) {
		t.Errorf("with no cache activity, actual (%v) should equal withoutCache (%v)", actual, withoutCache)
	}
}

func TestComputeCost_CacheReadCheaperThanWithoutCache(t *testing.T) {
	u := Usage{InputTokens: 0, OutputTokens: 1_000_000, CacheReadInputTokens: 1_000_000}
	actual, withoutCache := computeCost("claude-sonnet-4-20250514", u)

	if actual >= withoutCache {
		t.Errorf("cache read should be cheaper than an equivalent fresh input: actual=%v withoutCache=%v", actual, withoutCache)
	}

	wantWithoutCache := 3.00 + 15.00
	if !almostEqual(withoutCache, wantWithoutCache) {
		t.Errorf("withoutCache = %v, want %v", withoutCache, wantWithoutCache)
	}
}

func TestComputeCost_UnknownModelFallsBackToDefaultRate(t *testing.T) {
	u := Usage{InputTokens: 1_000_000}
	actual, _ := computeCost("some-future-model-nobody-has-priced-yet", u)
	if actual != defaultRate.InputPerMillion {
		t.Errorf("unknown model should use the default rate, got %v want %v", actual, defaultRate.InputPerMillion)
	}
}

func TestCacheStats_RecordsHitsAndSavings(t *testing.T) {
	stats := NewCacheStats()

	stats.Record(Usage{CacheReadInputTokens: 0}, 1.0, 1.0)
	stats.Record(Usage{CacheReadInputTokens: 100}, 0.5, 1.0)

	snap := stats.Snapshot()
	if snap.TotalCalls != 2 {
		t.Errorf("TotalCalls = %d, want 2", snap.TotalCalls)
	}
	if snap.CacheHits != 1 {
		t.Errorf("CacheHits = %d, want 1", snap.CacheHits)
	}
	if !almostEqual(snap.TotalCostUSD, 1.5) {
		t.Errorf("TotalCostUSD = %v, want 1.5", snap.TotalCostUSD)
	}
	if !almostEqual(snap.SavedCostUSD, 0.5) {
		t.Errorf("SavedCostUSD = %v, want 0.5", snap.SavedCostUSD)
	}
}
