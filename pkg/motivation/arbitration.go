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

package motivation

import (
	"time"

	"github.com/nyxcore/orchestrator/pkg/config"
	"github.com/nyxcore/orchestrator/pkg/store"
)

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// agePenalty grows with time since the drive last triggered, normalized to
// [0,1) via a half-life curve: a drive triggered an hour ago penalizes
// less than one untouched for a day. A drive that has never triggered
// returns 0 (nothing to penalize yet).
func agePenalty(lastTriggered *time.Time, now time.Time) float64 {
	if lastTriggered == nil {
		return 0
	}
	elapsed := now.Sub(*lastTriggered)
	if elapsed < 0 {
		return 0
	}
	hours := elapsed.Hours()
	return hours / (hours + 24)
}

// score computes spec.md §4.6's arbitration formula:
// w_u*urgency + w_s*(1-satisfaction) + w_r*success_rate - w_a*age_penalty.
func score(ms *store.MotivationalState, weights config.ArbitrationWeights, now time.Time) float64 {
	return weights.Urgency*ms.Urgency +
		weights.Satisfaction*(1-ms.Satisfaction) +
		weights.SuccessRate*ms.SuccessRate -
		weights.AgePenalty*agePenalty(ms.LastTriggeredAt, now)
}

// decay applies the per-tick urgency/satisfaction decay over the elapsed
// time since the drive was last ticked.
func decay(ms *store.MotivationalState, elapsed time.Duration, satisfactionEpsilon float64) {
	ms.Urgency = clamp01(ms.Urgency * (1 - ms.DecayRate*elapsed.Seconds()/60))
	ms.Satisfaction = clamp01(ms.Satisfaction - satisfactionEpsilon)
}

// boostIfTriggered raises urgency by the drive's boost factor when its
// trigger predicate fires on this tick.
func boostIfTriggered(ms *store.MotivationalState) bool {
	if !evaluateTrigger(ms) {
		return false
	}
	ms.Urgency = clamp01(ms.Urgency + ms.BoostFactor)
	return true
}
