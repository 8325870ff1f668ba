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
	"fmt"

	"github.com/nyxcore/orchestrator/pkg/store"
)

// promptTemplates maps a drive kind to the prompt template handed to the
// top-level orchestrator when that drive wins arbitration. A kind with no
// entry falls back to defaultPromptTemplate.
var promptTemplates = map[string]string{
	"monitor_social_network": "Check the configured social feeds for anything worth responding to or escalating, and act on it.",
	"review_recent_errors":   "Review recent error and failure logs across the system and summarize anything that needs attention.",
	"consolidate_memory":     "Consolidate and prune stale entries in long-lived memory scopes.",
}

const defaultPromptTemplate = "Act on the standing intent %q: satisfaction is low and this drive is due for attention."

// promptForDrive renders the WorkflowInput prompt for a winning drive.
func promptForDrive(ms *store.MotivationalState) string {
	if tmpl, ok := promptTemplates[ms.Kind]; ok {
		return tmpl
	}
	return fmt.Sprintf(defaultPromptTemplate, ms.Kind)
}

// evaluateTrigger reads a drive's trigger-condition predicate (a small
// fixed JSON grammar, not a general expression language) and reports
// whether it fires on this tick.
//
// Supported shapes:
//   - {"always": true}                    always fires
//   - {"min_cycles_since_last_post": n}    fires once the drive's own
//     cycles_since_last_post metadata counter reaches n
func evaluateTrigger(ms *store.MotivationalState) bool {
	cond := ms.TriggerCondition
	if always, ok := cond["always"].(bool); ok && always {
		return true
	}
	if minCycles, ok := cond["min_cycles_since_last_post"].(float64); ok {
		cycles, _ := ms.Metadata["cycles_since_last_post"].(float64)
		return cycles >= minCycles
	}
	return false
}
