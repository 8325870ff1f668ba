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
	"fmt"

	"github.com/nyxcore/orchestrator/pkg/config"
)

// NewClientFromConfig builds a Client from an LLMConfig, wiring it to the
// process-global breaker and cache statistics so that every agent sharing
// one Runtime observes the same circuit state and cache savings ledger.
func NewClientFromConfig(cfg config.LLMConfig, breaker *CircuitBreaker, stats *CacheStats, sink LogSink) (*Client, error) {
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}

	temperature := 0.7
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}

	opts := []Option{}
	if sink != nil {
		opts = append(opts, WithSink(sink))
	}

	return NewClient(
		provider,
		cfg.Model,
		cfg.MaxTokens,
		temperature,
		cfg.MinCacheableTokens,
		cfg.MaxCacheBreakpoints,
		breaker,
		stats,
		opts...,
	), nil
}

func newProvider(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case config.LLMProviderAnthropic:
		return NewAnthropicProvider(cfg.APIKey, cfg.BaseURL), nil
	case config.LLMProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
