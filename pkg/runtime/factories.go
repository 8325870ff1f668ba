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

package runtime

import (
	"github.com/nyxcore/orchestrator/pkg/agent"
	"github.com/nyxcore/orchestrator/pkg/embedder"
	"github.com/nyxcore/orchestrator/pkg/errs"
	"github.com/nyxcore/orchestrator/pkg/instruction"
	"github.com/nyxcore/orchestrator/pkg/llm"
	"github.com/nyxcore/orchestrator/pkg/ratelimit"
	"github.com/nyxcore/orchestrator/pkg/store"
	"github.com/nyxcore/orchestrator/pkg/tools"
	"github.com/nyxcore/orchestrator/pkg/vector"
)

// SpecDeps bundles the shared collaborators every Specialization factory
// closes over: the one LLM client, the one Store, the shared instruction
// template set, the optional tool registry, and the optional memory-agent
// backing (vector index + embedder) and social-agent backing (rate
// limiter, feed client, poster) a deployment may or may not have
// configured.
type SpecDeps struct {
	LLM          *llm.Client
	Store        *store.Store
	Instructions *instruction.Set
	Tools        *tools.ToolRegistry
	Vector       vector.Provider
	Embedder     embedder.Embedder
	RateLimiter  ratelimit.RateLimiter
	Feed         agent.FeedClient
	Poster       agent.Poster
}

// DefaultSpecFactory builds the orchestrator.SpecFactory every Base uses to
// turn a requested AgentKind into a ready Specialization. One closure, one
// switch: spawning an unrecognized or unconfigured kind fails fast with a
// validation error rather than the caller discovering a nil interface at
// Run time.
func DefaultSpecFactory(deps SpecDeps) func(kind store.AgentKind) (agent.Specialization, error) {
	return func(kind store.AgentKind) (agent.Specialization, error) {
		switch kind {
		case store.AgentKindTask:
			return agent.TaskSpec{LLM: deps.LLM, Instructions: deps.Instructions, Tools: deps.Tools}, nil
		case store.AgentKindCouncil:
			return agent.CouncilSpec{LLM: deps.LLM, Instructions: deps.Instructions}, nil
		case store.AgentKindValidator:
			return agent.ValidatorSpec{LLM: deps.LLM, HolisticCheck: true}, nil
		case store.AgentKindMemory:
			return &agent.MemorySpec{LLM: deps.LLM, Vector: deps.Vector, Embedder: deps.Embedder}, nil
		case store.AgentKindSocial:
			if deps.Feed == nil || deps.Poster == nil {
				return nil, errs.New(errs.KindValidation, "social agent requires a configured feed client and poster")
			}
			return agent.SocialSpec{
				LLM: deps.LLM, Store: deps.Store, RateLimiter: deps.RateLimiter,
				Feed: deps.Feed, Poster: deps.Poster,
			}, nil
		default:
			return nil, errs.New(errs.KindValidation, "unsupported agent kind: "+string(kind))
		}
	}
}
