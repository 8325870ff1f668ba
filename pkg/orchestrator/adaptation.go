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

// AdaptationAction is what the rule triggers (or a learning adapter)
// recommend doing mid-run.
type AdaptationAction string

const (
	AdaptNone              AdaptationAction = "none"
	AdaptShrinkConcurrency AdaptationAction = "shrink_concurrency"
	AdaptExpandConcurrency AdaptationAction = "expand_concurrency"
	AdaptDowngradeStrategy AdaptationAction = "downgrade_strategy"
)

// AdaptationInput is the state the rule triggers from spec.md §4.5 read.
type AdaptationInput struct {
	CostConsumedUSD  float64
	BudgetCostUSD    float64
	ElapsedMinutes   float64
	BudgetMinutes    float64
	FailureRate      float64
	ExpansionAllowed bool
}

// RuleBasedAdaptation applies the fixed triggers used when no learning
// adapter is configured: cost > 0.8x budget shrinks concurrency; elapsed
// > 0.8x time budget expands concurrency if allowed; failure rate > 0.3
// downgrades to a more conservative strategy.
func RuleBasedAdaptation(in AdaptationInput) AdaptationAction {
	if in.FailureRate > 0.3 {
		return AdaptDowngradeStrategy
	}
	if in.BudgetCostUSD > 0 && in.CostConsumedUSD > 0.8*in.BudgetCostUSD {
		return AdaptShrinkConcurrency
	}
	if in.BudgetMinutes > 0 && in.ElapsedMinutes > 0.8*in.BudgetMinutes && in.ExpansionAllowed {
		return AdaptExpandConcurrency
	}
	return AdaptNone
}

// Adapt applies an AdaptationAction to a concurrency/timeout pair,
// returning the adjusted values. Concurrency never drops below 1;
// timeouts only ever lengthen, never shrink, under downgrade.
func Adapt(action AdaptationAction, concurrency int, timeoutSeconds int) (newConcurrency, newTimeoutSeconds int) {
	switch action {
	case AdaptShrinkConcurrency:
		newConcurrency = concurrency / 2
		if newConcurrency < 1 {
			newConcurrency = 1
		}
		return newConcurrency, timeoutSeconds
	case AdaptExpandConcurrency:
		return concurrency * 2, timeoutSeconds
	case AdaptDowngradeStrategy:
		newConcurrency = concurrency / 2
		if newConcurrency < 1 {
			newConcurrency = 1
		}
		return newConcurrency, timeoutSeconds * 2
	default:
		return concurrency, timeoutSeconds
	}
}
