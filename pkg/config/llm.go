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

package config

import (
	"fmt"
	"os"
)

// LLMProvider identifies a model provider. The core only ever speaks the
// Anthropic-shaped cache_control wire contract; OpenAI is wired for
// embeddings, not for cached chat completions.
type LLMProvider string

const (
	LLMProviderAnthropic LLMProvider = "anthropic"
	LLMProviderOpenAI    LLMProvider = "openai"
)

// LLMConfig configures the model used for agent reasoning calls.
type LLMConfig struct {
	Provider LLMProvider `yaml:"provider,omitempty"`
	Model    string      `yaml:"model,omitempty"`
	APIKey   string      `yaml:"api_key,omitempty"`
	BaseURL  string      `yaml:"base_url,omitempty"`

	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   int      `yaml:"max_tokens,omitempty"`

	// MinCacheableTokens is the provider-and-model-dependent floor below
	// which a prompt segment is not worth annotating with cache_control
	// (Claude requires roughly 1024-2048 tokens depending on model tier).
	MinCacheableTokens int `yaml:"min_cacheable_tokens,omitempty"`

	// MaxCacheBreakpoints caps the number of cache_control annotations per
	// request; Anthropic enforces a hard limit of 4.
	MaxCacheBreakpoints int `yaml:"max_cache_breakpoints,omitempty"`
}

// EmbeddingConfig configures the embedding model used by the memory agent's
// vector index. Kept separate from LLMConfig because embeddings are always
// OpenAI in this deployment regardless of which provider serves reasoning.
type EmbeddingConfig struct {
	Model  string `yaml:"model,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`
}

// SetDefaults applies default values to the LLM configuration.
func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = detectProviderFromEnv()
	}

	if c.Model == "" {
		switch c.Provider {
		case LLMProviderAnthropic:
			c.Model = "claude-sonnet-4-20250514"
		case LLMProviderOpenAI:
			c.Model = "gpt-4o"
		}
	}

	if c.APIKey == "" {
		c.APIKey = getAPIKeyFromEnv(c.Provider)
	}

	if c.Temperature == nil {
		temp := 0.7
		c.Temperature = &temp
	}

	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}

	if c.MinCacheableTokens == 0 {
		c.MinCacheableTokens = 1024
	}

	if c.MaxCacheBreakpoints == 0 {
		c.MaxCacheBreakpoints = 4
	}
}

// SetDefaults applies default values to the embedding configuration.
func (c *EmbeddingConfig) SetDefaults() {
	if c.Model == "" {
		c.Model = "text-embedding-3-small"
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// Validate checks the LLM configuration.
func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case LLMProviderAnthropic, LLMProviderOpenAI:
	default:
		return fmt.Errorf("invalid provider %q (valid: anthropic, openai)", c.Provider)
	}

	if c.APIKey == "" {
		return fmt.Errorf("api_key is required for provider %q", c.Provider)
	}

	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}

	if c.MaxCacheBreakpoints > 4 {
		return fmt.Errorf("max_cache_breakpoints cannot exceed the provider limit of 4")
	}

	return nil
}

// Validate checks the embedding configuration.
func (c *EmbeddingConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required for the embedding provider")
	}
	return nil
}

func detectProviderFromEnv() LLMProvider {
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return LLMProviderAnthropic
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return LLMProviderOpenAI
	}
	return LLMProviderAnthropic
}

func getAPIKeyFromEnv(provider LLMProvider) string {
	switch provider {
	case LLMProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case LLMProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	default:
		return ""
	}
}
