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

import "github.com/nyxcore/orchestrator/pkg/tokens"

// BreakpointPolicy decides which of a request's content blocks get an
// ephemeral cache-control marker. A block is cacheable when its estimated
// token length (chars/4, or an exact tiktoken count when one is available)
// meets minCacheableTokens, or when forceShared is set (council sessions
// always mark their shared context cacheable regardless of size). The
// number of annotated blocks is capped at maxBreakpoints, matching the
// provider's hard limit of 4; once the cap is reached, later candidate
// blocks are left unannotated rather than erroring.
type BreakpointPolicy struct {
	MinCacheableTokens int
	MaxBreakpoints     int
	counter            *tokens.Counter
}

// NewBreakpointPolicy builds a policy for a model. counter may be nil, in
// which case the chars/4 estimate is used for every block.
func NewBreakpointPolicy(minCacheableTokens, maxBreakpoints int, counter *tokens.Counter) *BreakpointPolicy {
	if maxBreakpoints <= 0 || maxBreakpoints > 4 {
		maxBreakpoints = 4
	}
	return &BreakpointPolicy{
		MinCacheableTokens: minCacheableTokens,
		MaxBreakpoints:     maxBreakpoints,
		counter:            counter,
	}
}

func (p *BreakpointPolicy) estimate(text string) int {
	if p.counter != nil {
		return p.counter.Count(text)
	}
	return tokens.Estimate(text)
}

// Annotate marks system and user blocks cacheable in place, respecting the
// breakpoint budget. sharedContext forces the first system block cacheable
// regardless of size (the council shared-context rule); it still counts
// against the budget.
func (p *BreakpointPolicy) Annotate(system, user []ContentBlock, sharedContext bool) ([]ContentBlock, []ContentBlock) {
	budget := p.MaxBreakpoints
	annotate := func(blocks []ContentBlock, forceFirst bool) []ContentBlock {
		out := make([]ContentBlock, len(blocks))
		for i, b := range blocks {
			out[i] = b
			if budget <= 0 {
				continue
			}
			cacheable := p.estimate(b.Text) >= p.MinCacheableTokens
			if forceFirst && i == 0 {
				cacheable = true
			}
			if cacheable {
				out[i].CacheControl = true
				budget--
			}
		}
		return out
	}

	return annotate(system, sharedContext), annotate(user, false)
}
