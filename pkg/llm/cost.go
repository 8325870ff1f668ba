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
	"sync/atomic"
)

// modelRate is a per-model price, in USD per million tokens. Cache writes
// cost more than a fresh input token; cache reads cost a fraction of one.
// These are static catalogue data, not logic, so they are carried as a plain
// table rather than reached for a pricing library.
type modelRate struct {
	InputPerMillion      float64
	OutputPerMillion     float64
	CacheWritePerMillion float64
	CacheReadPerMillion  float64
}

var modelRates = map[string]modelRate{
	"claude-sonnet-4-20250514": {InputPerMillion: 3.00, OutputPerMillion: 15.00, CacheWritePerMillion: 3.75, CacheReadPerMillion: 0.30},
	"claude-opus-4-20250514":   {InputPerMillion: 15.00, OutputPerMillion: 75.00, CacheWritePerMillion: 18.75, CacheReadPerMillion: 1.50},
	"claude-haiku-4-20250514":  {InputPerMillion: 0.80, OutputPerMillion: 4.00, CacheWritePerMillion: 1.00, CacheReadPerMillion: 0.08},
	"gpt-4o":                   {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-mini":              {InputPerMillion: 0.15, OutputPerMillion: 0.60},
}

// defaultRate is used for an unrecognized model so cost ledgers keep
// accumulating (approximately) instead of silently reporting zero.
var defaultRate = modelRate{InputPerMillion: 3.00, OutputPerMillion: 15.00, CacheWritePerMillion: 3.75, CacheReadPerMillion: 0.30}

func rateFor(model string) modelRate {
	if r, ok := modelRates[model]; ok {
		return r
	}
	return defaultRate
}

// computeCost returns the actual cost given the provider's reported usage,
// and the hypothetical cost had caching not been used at all (every cached
// token re-priced as a fresh input token), to quantify savings.
func computeCost(model string, u Usage) (actual, withoutCache float64) {
	r := rateFor(model)
	million := 1_000_000.0

	actual = float64(u.InputTokens)*r.InputPerMillion/million +
		float64(u.OutputTokens)*r.OutputPerMillion/million +
		float64(u.CacheCreationInputTokens)*r.CacheWritePerMillion/million +
		float64(u.CacheReadInputTokens)*r.CacheReadPerMillion/million

	withoutCacheInputTokens := u.InputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens
	withoutCache = float64(withoutCacheInputTokens)*r.InputPerMillion/million +
		float64(u.OutputTokens)*r.OutputPerMillion/million

	return actual, withoutCache
}

// CacheStats is the process-global prompt-cache statistics block (§5:
// updates are atomic and commutative). One instance is shared by every
// Client built in a process.
type CacheStats struct {
	totalCalls   int64
	cacheHits    int64
	totalCostUSD atomicFloat
	savedCostUSD atomicFloat
}

// NewCacheStats returns a zeroed CacheStats.
func NewCacheStats() *CacheStats { return &CacheStats{} }

// Record folds one call's outcome into the running totals.
func (s *CacheStats) Record(u Usage, actualCost, withoutCacheCost float64) {
	atomic.AddInt64(&s.totalCalls, 1)
	if u.CacheHit() {
		atomic.AddInt64(&s.cacheHits, 1)
	}
	s.totalCostUSD.add(actualCost)
	s.savedCostUSD.add(withoutCacheCost - actualCost)
}

// Snapshot is a point-in-time read of the cache statistics.
type Snapshot struct {
	TotalCalls   int64
	CacheHits    int64
	TotalCostUSD float64
	SavedCostUSD float64
}

func (s *CacheStats) Snapshot() Snapshot {
	return Snapshot{
		TotalCalls:   atomic.LoadInt64(&s.totalCalls),
		CacheHits:    atomic.LoadInt64(&s.cacheHits),
		TotalCostUSD: s.totalCostUSD.load(),
		SavedCostUSD: s.savedCostUSD.load(),
	}
}

// atomicFloat is a lock-free running total for a float64, implemented as a
// compare-and-swap loop over its bit pattern since the standard library has
// no atomic float64 primitive.
type atomicFloat struct {
	bits uint64
}

func (f *atomicFloat) add(delta float64) {
	for {
		old := atomic.LoadUint64(&f.bits)
		newVal := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(&f.bits, old, math.Float64bits(newVal)) {
			return
		}
	}
}

func (f *atomicFloat) load() float64 {
	return math.Float64frombits(atomic.LoadUint64(&f.bits))
}
