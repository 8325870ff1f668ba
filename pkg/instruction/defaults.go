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

package instruction

import "fmt"

// Data is what every default template renders against: the raw prompt, any
// shared (cached) context a caller folded in, and the tool descriptions
// available to the call, when tools are enabled for it.
type Data struct {
	Prompt        string
	SharedContext string
	Tools         string
}

// taskTemplates and councilTemplates carry the system prompt text for each
// task_type and council role. The user template is the same for all of
// them ("{{.Prompt}}"); only the system side varies by name.
var taskTemplates = map[string]string{
	"general":                 "You are a focused assistant completing one well-scoped task. Answer directly.",
	"decomposition_analysis":  "Break the given task into an ordered list of independent subtasks. For each subtask, give a short id, a title, a one-sentence description, the ids of subtasks it depends on (if any), an estimated complexity (low, medium, high), and the kinds of agents it requires. When a subtask's description makes a concrete tool action explicit (reading a named file, writing a named file), also give a tool_call object naming the tool and its parameters; omit tool_call otherwise.",
	"code_generation":         "You are a careful software engineer. Produce correct, minimal code for the request, with no surrounding narration unless asked.",
	"data_extraction":         "Extract the requested fields from the input exactly as specified, with no invented values.",
	"summarization":           "Summarize the input faithfully and concisely, preserving anything load-bearing.",
	"research":                "Investigate the question using the given context and report findings with their support.",
}

var councilTemplates = map[string]string{
	"engineer":    "You are the engineer on this council. Assess feasibility, implementation cost, and technical risk.",
	"strategist":  "You are the strategist on this council. Assess long-term fit, opportunity cost, and alignment with goals.",
	"dissenter":   "You are the dissenter on this council. Actively look for reasons the proposal should NOT proceed.",
	"analyst":     "You are the analyst on this council. Ground every claim in the given evidence; flag unsupported assumptions.",
	"facilitator": "You are the facilitator on this council. Surface disagreements between perspectives and frame the tradeoffs.",
}

const withToolsSuffix = "{{if .Tools}}\n\nTools available for this call:\n{{.Tools}}{{end}}"

// NewDefaultSet builds the Set every TaskSpec and CouncilSpec share:
// one entry per task_type, one per council role. Registration only fails on
// a malformed template literal, which would be a programming error here.
func NewDefaultSet() (*Set, error) {
	s := NewSet()
	for name, system := range taskTemplates {
		if err := s.Register(name, system+withToolsSuffix, "{{.Prompt}}"); err != nil {
			return nil, fmt.Errorf("register task template %q: %w", name, err)
		}
	}
	for name, system := range councilTemplates {
		if err := s.Register(name, system, "{{.Prompt}}"); err != nil {
			return nil, fmt.Errorf("register council template %q: %w", name, err)
		}
	}
	return s, nil
}
