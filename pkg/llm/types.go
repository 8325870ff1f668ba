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

// Package llm is the cached call path to a reasoning model provider. It
// wraps a single Provider (Anthropic or OpenAI) with cache-breakpoint
// annotation, retry/backoff, a process-global circuit breaker, and
// asynchronous cost/usage accounting.
package llm

import (
	"context"
	"time"
)

// ContentBlock is one segment of a system or user message. A block with
// CacheControl set is annotated with the provider's ephemeral cache-control
// marker when the provider supports caching.
type ContentBlock struct {
	Text         string
	CacheControl bool
}

// CallRequest is the cached call path's public contract.
type CallRequest struct {
	System []ContentBlock
	User   []ContentBlock

	// Model overrides the client's configured default model when non-empty.
	Model       string
	MaxTokens   int
	Temperature float64

	ThoughtTreeID string
	AgentID       string

	// UseCache requests cache-breakpoint annotation. SharedContext forces
	// the shared segment to be cacheable regardless of its estimated size,
	// for council sessions where the context is reused across roles.
	UseCache      bool
	SharedContext bool
}

// Usage carries the provider's reported token accounting for a single call.
type Usage struct {
	InputTokens              int
	OutputTokens             int
	CacheCreationInputTokens int
	CacheReadInputTokens     int
}

// CacheHit reports whether the provider served this call, at least in part,
// from its prompt cache.
func (u Usage) CacheHit() bool { return u.CacheReadInputTokens > 0 }

// Response is the result of a successful Call.
type Response struct {
	Text  string
	Model string
	Usage Usage

	CostUSD             float64
	CostWithoutCacheUSD float64

	RetryCount int
	Duration   time.Duration
}

// Provider is a single reasoning-model backend. AnthropicProvider and
// OpenAIProvider are the only two implementations; new providers plug in
// behind this interface without touching Client.
type Provider interface {
	Name() string

	// SupportsCaching reports whether the provider honors cache-control
	// annotations. OpenAI's chat completions API does not, so its provider
	// always returns false and the client skips breakpoint annotation.
	SupportsCaching() bool

	// Call issues one request and returns the provider's raw usage. The
	// caller (Client) is responsible for retry, circuit breaking, and cost
	// accounting; the provider only speaks the wire protocol.
	Call(ctx context.Context, req CallRequest) (Response, error)
}

// InteractionRecord is what the client hands to a LogSink after every call,
// success or failure. Fields mirror the LLMInteraction persisted entity.
type InteractionRecord struct {
	ThoughtTreeID string
	AgentID       string
	Model         string
	Provider      string

	Success bool
	ErrorKind string

	Usage               Usage
	CostUSD             float64
	CostWithoutCacheUSD float64
	RetryCount          int
	Duration            time.Duration
}

// LogSink receives interaction records asynchronously. Implementations must
// not block the caller; Client.Call always returns before the sink finishes
// (or even starts) writing. A failing sink must never fail the call that
// produced the record.
type LogSink interface {
	LogInteraction(ctx context.Context, rec InteractionRecord)
}

// NopLogSink discards every record. Used when no persistence layer is wired.
type NopLogSink struct{}

func (NopLogSink) LogInteraction(context.Context, InteractionRecord) {}
