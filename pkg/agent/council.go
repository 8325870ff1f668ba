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

package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nyxcore/orchestrator/pkg/instruction"
	"github.com/nyxcore/orchestrator/pkg/llm"
	"github.com/nyxcore/orchestrator/pkg/store"
)

// CouncilRole is a perspective the council deliberates from.
type CouncilRole string

const (
	RoleEngineer    CouncilRole = "engineer"
	RoleStrategist  CouncilRole = "strategist"
	RoleDissenter   CouncilRole = "dissenter"
	RoleAnalyst     CouncilRole = "analyst"
	RoleFacilitator CouncilRole = "facilitator"
)

// DefaultCouncilRoles is used when a caller does not configure its own set.
var DefaultCouncilRoles = []CouncilRole{RoleEngineer, RoleStrategist, RoleDissenter}

// fallbackRolePrompts is used when a CouncilSpec carries no Instructions
// set, so the council still runs with a sane prompt per role.
var fallbackRolePrompts = map[CouncilRole]string{
	RoleEngineer:    "You are the engineer on this council. Assess feasibility, implementation cost, and technical risk.",
	RoleStrategist:  "You are the strategist on this council. Assess long-term fit, opportunity cost, and alignment with goals.",
	RoleDissenter:   "You are the dissenter on this council. Actively look for reasons the proposal should NOT proceed.",
	RoleAnalyst:     "You are the analyst on this council. Ground every claim in the given evidence; flag unsupported assumptions.",
	RoleFacilitator: "You are the facilitator on this council. Surface disagreements between perspectives and frame the tradeoffs.",
}

// Recommendation is the council's final output shape.
type Recommendation struct {
	Recommendation string
	Risks          []string
	Roadmap        []string
	Monitoring     []string
}

// CouncilSpec is the Council agent: four phases — independent per-role
// perspectives over a shared cached context, collaborative analysis,
// consensus synthesis, and a final structured Recommendation. Token and
// cost usage aggregate across every phase.
type CouncilSpec struct {
	LLM          *llm.Client
	Roles        []CouncilRole
	Instructions *instruction.Set
}

// Kind identifies this specialization for persistence.
func (CouncilSpec) Kind() store.AgentKind { return store.AgentKindCouncil }

func (c CouncilSpec) roles() []CouncilRole {
	if len(c.Roles) > 0 {
		return c.Roles
	}
	return DefaultCouncilRoles
}

// rolePrompt resolves a role's system prompt from the Instructions set when
// configured, falling back to the built-in prompt otherwise.
func (c CouncilSpec) rolePrompt(role CouncilRole) string {
	if c.Instructions != nil {
		if pair, err := c.Instructions.Render(string(role), instruction.Data{}); err == nil {
			return pair.System
		}
	}
	return fallbackRolePrompts[role]
}

// Run executes the four-phase deliberation.
func (c CouncilSpec) Run(ctx context.Context, h *Handle, input Input) (Result, error) {
	var total Result
	total.Metadata = map[string]any{}

	sharedCtx := llm.ContentBlock{Text: input.Prompt, CacheControl: true}

	perspectives, err := c.independentPerspectives(ctx, h, input, sharedCtx, &total)
	if err != nil {
		return total, err
	}

	analysis, err := c.collaborativeAnalysis(ctx, h, input, sharedCtx, perspectives, &total)
	if err != nil {
		return total, err
	}

	consensus, err := c.consensusSynthesis(ctx, h, input, sharedCtx, analysis, &total)
	if err != nil {
		return total, err
	}

	rec, err := c.finalRecommendation(ctx, h, input, sharedCtx, consensus, &total)
	if err != nil {
		return total, err
	}

	total.Success = true
	total.Content = rec.Recommendation
	total.Metadata["recommendation"] = rec.Recommendation
	total.Metadata["risks"] = rec.Risks
	total.Metadata["roadmap"] = rec.Roadmap
	total.Metadata["monitoring"] = rec.Monitoring
	return total, nil
}

type roleOutput struct {
	role CouncilRole
	text string
}

func (c CouncilSpec) independentPerspectives(ctx context.Context, h *Handle, input Input, sharedCtx llm.ContentBlock, total *Result) ([]roleOutput, error) {
	roles := c.roles()
	out := make([]roleOutput, len(roles))
	errCh := make(chan error, len(roles))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i, role := range roles {
		wg.Add(1)
		go func(i int, role CouncilRole) {
			defer wg.Done()
			resp, err := c.LLM.Call(ctx, llm.CallRequest{
				System:        []llm.ContentBlock{{Text: c.rolePrompt(role)}, sharedCtx},
				User:          []llm.ContentBlock{{Text: input.Prompt}},
				Temperature:   0.6,
				MaxTokens:     2048,
				ThoughtTreeID: input.ThoughtTreeID,
				AgentID:       h.ID(),
				UseCache:      true,
				SharedContext: true,
			})
			mu.Lock()
			accumulate(total, resp.Usage, resp.CostUSD)
			mu.Unlock()
			if err != nil {
				errCh <- err
				return
			}
			out[i] = roleOutput{role: role, text: resp.Text}
		}(i, role)
	}
	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		return nil, err
	}
	return out, nil
}

func (c CouncilSpec) collaborativeAnalysis(ctx context.Context, h *Handle, input Input, sharedCtx llm.ContentBlock, perspectives []roleOutput, total *Result) (string, error) {
	var sb strings.Builder
	for _, p := range perspectives {
		fmt.Fprintf(&sb, "[%s]\n%s\n\n", p.role, p.text)
	}

	resp, err := c.LLM.Call(ctx, llm.CallRequest{
		System:        []llm.ContentBlock{{Text: "Identify agreements, tensions, and gaps across the following perspectives."}, sharedCtx},
		User:          []llm.ContentBlock{{Text: sb.String()}},
		Temperature:   0.5,
		MaxTokens:     2048,
		ThoughtTreeID: input.ThoughtTreeID,
		AgentID:       h.ID(),
		UseCache:      true,
		SharedContext: true,
	})
	accumulate(total, resp.Usage, resp.CostUSD)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (c CouncilSpec) consensusSynthesis(ctx context.Context, h *Handle, input Input, sharedCtx llm.ContentBlock, analysis string, total *Result) (string, error) {
	resp, err := c.LLM.Call(ctx, llm.CallRequest{
		System:        []llm.ContentBlock{{Text: "Reconcile the analysis into a single consensus position, noting any compromise made."}, sharedCtx},
		User:          []llm.ContentBlock{{Text: analysis}},
		Temperature:   0.4,
		MaxTokens:     2048,
		ThoughtTreeID: input.ThoughtTreeID,
		AgentID:       h.ID(),
		UseCache:      true,
		SharedContext: true,
	})
	accumulate(total, resp.Usage, resp.CostUSD)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (c CouncilSpec) finalRecommendation(ctx context.Context, h *Handle, input Input, sharedCtx llm.ContentBlock, consensus string, total *Result) (Recommendation, error) {
	resp, err := c.LLM.Call(ctx, llm.CallRequest{
		System: []llm.ContentBlock{{Text: "Produce a final recommendation from the consensus. Structure the reply in four labeled sections: Recommendation, Risks, Roadmap, Monitoring. Each of Risks, Roadmap, and Monitoring is a bullet list."}, sharedCtx},
		User:          []llm.ContentBlock{{Text: consensus}},
		Temperature:   0.3,
		MaxTokens:     2048,
		ThoughtTreeID: input.ThoughtTreeID,
		AgentID:       h.ID(),
		UseCache:      true,
		SharedContext: true,
	})
	accumulate(total, resp.Usage, resp.CostUSD)
	if err != nil {
		return Recommendation{}, err
	}
	return parseRecommendation(resp.Text), nil
}

func accumulate(total *Result, usage llm.Usage, costUSD float64) {
	total.Usage.InputTokens += usage.InputTokens
	total.Usage.OutputTokens += usage.OutputTokens
	total.Usage.CacheCreationInputTokens += usage.CacheCreationInputTokens
	total.Usage.CacheReadInputTokens += usage.CacheReadInputTokens
	total.CostUSD += costUSD
}

// parseRecommendation splits the four labeled sections out of the model's
// free-text reply. Section headers are matched case-insensitively; an
// unlabeled reply collapses everything into Recommendation.
func parseRecommendation(text string) Recommendation {
	sections := map[string][]string{}
	current := "recommendation"
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(strings.TrimSuffix(trimmed, ":"))
		switch lower {
		case "recommendation", "risks", "roadmap", "monitoring":
			current = lower
			continue
		}
		if trimmed == "" {
			continue
		}
		sections[current] = append(sections[current], strings.TrimPrefix(strings.TrimPrefix(trimmed, "-"), "*"))
	}

	return Recommendation{
		Recommendation: strings.TrimSpace(strings.Join(sections["recommendation"], " ")),
		Risks:          trimAll(sections["risks"]),
		Roadmap:        trimAll(sections["roadmap"]),
		Monitoring:     trimAll(sections["monitoring"]),
	}
}

func trimAll(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if v := strings.TrimSpace(l); v != "" {
			out = append(out, v)
		}
	}
	return out
}
