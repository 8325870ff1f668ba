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

	"github.com/nyxcore/orchestrator/pkg/observability"
)

// BoolPtr returns a pointer to the given bool, for optional yaml fields
// that must distinguish "unset" from "false".
func BoolPtr(b bool) *bool { return &b }

// Config is the root configuration for the orchestrator runtime. It is
// assembled from a YAML file, then overlaid with environment variables
// via Load.
type Config struct {
	Server       ServerConfig        `yaml:"server,omitempty"`
	Logger       LoggerConfig        `yaml:"logger,omitempty"`
	Database     DatabaseConfig      `yaml:"database,omitempty"`
	LLM          LLMConfig           `yaml:"llm,omitempty"`
	Embedding    EmbeddingConfig     `yaml:"embedding,omitempty"`
	Orchestrator OrchestratorConfig  `yaml:"orchestrator,omitempty"`
	Motivational MotivationalConfig  `yaml:"motivational,omitempty"`
	RateLimit    RateLimitConfig     `yaml:"rate_limit,omitempty"`
	Tools        ToolsConfig         `yaml:"tools,omitempty"`
	Observability observability.Config `yaml:"observability,omitempty"`
}

// OrchestratorConfig bounds the agent hierarchy: how deep sub-orchestrators
// may recurse, how many agents may run concurrently, and the default
// resource budgets used for estimation and adaptation triggers.
type OrchestratorConfig struct {
	// MaxConcurrentAgents caps simultaneously active agents tracked by the
	// base orchestrator. SpawnAgent refuses once this is reached.
	MaxConcurrentAgents int `yaml:"max_concurrent_agents,omitempty"`

	// MaxDepth caps sub-orchestrator recursion. A sub-orchestrator asked to
	// initialize at depth == MaxDepth refuses.
	MaxDepth int `yaml:"max_depth,omitempty"`

	// DefaultBudget is the base resource budget multiplied by {1,2,4} for
	// {low,medium,high} complexity when estimating a workflow's cost.
	DefaultBudget BudgetConfig `yaml:"default_budget,omitempty"`

	// AdaptationEnabled turns on the rule-based adaptation triggers
	// (concurrency shrink/expand, strategy downgrade) when no learning
	// adapter is configured.
	AdaptationEnabled *bool `yaml:"adaptation_enabled,omitempty"`
}

// BudgetConfig is a resource ceiling: max agents, max spend, max wall-clock.
type BudgetConfig struct {
	MaxAgents   int     `yaml:"max_agents,omitempty"`
	MaxCostUSD  float64 `yaml:"max_cost_usd,omitempty"`
	MaxWallTime string  `yaml:"max_wall_time,omitempty"` // parsed with time.ParseDuration
}

// GetMaxAgents returns MaxAgents, satisfying pkg/orchestrator's BudgetLike.
func (b BudgetConfig) GetMaxAgents() int { return b.MaxAgents }

// GetMaxCostUSD returns MaxCostUSD, satisfying pkg/orchestrator's BudgetLike.
func (b BudgetConfig) GetMaxCostUSD() float64 { return b.MaxCostUSD }

// GetMaxWallTime returns MaxWallTime, satisfying pkg/orchestrator's BudgetLike.
func (b BudgetConfig) GetMaxWallTime() string { return b.MaxWallTime }

// MotivationalConfig configures the motivational engine's tick cadence and
// arbitration weights.
type MotivationalConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`

	// TickInterval is how often the engine runs decay/boost/arbitration.
	TickInterval string `yaml:"tick_interval,omitempty"`

	// MinArbitrationThreshold is the minimum score a drive must reach to
	// win arbitration on a given tick.
	MinArbitrationThreshold float64 `yaml:"min_arbitration_threshold,omitempty"`

	// MaxConcurrentTasksPerDrive caps in-flight MotivationalTasks spawned
	// from the same drive.
	MaxConcurrentTasksPerDrive int `yaml:"max_concurrent_tasks_per_drive,omitempty"`

	// ArbitrationWeights are w_u, w_s, w_r, w_a from the scoring formula.
	ArbitrationWeights ArbitrationWeights `yaml:"arbitration_weights,omitempty"`

	// SatisfactionDecayEpsilon is the per-tick satisfaction decay ε.
	SatisfactionDecayEpsilon float64 `yaml:"satisfaction_decay_epsilon,omitempty"`

	// SafetyGate turns on per-hour rate limiting for guarded operations
	// (e.g. posting on an external network) regardless of arbitration.
	SafetyGate *bool `yaml:"safety_gate,omitempty"`
}

// ArbitrationWeights holds the four weights from the arbitration formula:
// score = w_u*urgency + w_s*(1-satisfaction) + w_r*success_rate - w_a*age_penalty.
type ArbitrationWeights struct {
	Urgency        float64 `yaml:"urgency,omitempty"`
	Satisfaction   float64 `yaml:"satisfaction,omitempty"`
	SuccessRate    float64 `yaml:"success_rate,omitempty"`
	AgePenalty     float64 `yaml:"age_penalty,omitempty"`
}

// ToolsConfig gates which tool categories are available to agents.
type ToolsConfig struct {
	// WriteEnabled gates file-write and shell-execution tool operations
	// behind an explicit operator opt-in.
	WriteEnabled *bool `yaml:"write_enabled,omitempty"`

	// AllowedShellCommands restricts the shell tool to an allow-list when
	// non-empty; empty means the shell tool is disabled entirely.
	AllowedShellCommands []string `yaml:"allowed_shell_commands,omitempty"`

	// WorkDir is the sandbox root for file tool operations.
	WorkDir string `yaml:"work_dir,omitempty"`

	// PluginProcesses names fixed external tool binaries the operator has
	// vetted and wants agents to be able to invoke. Each entry launches its
	// own subprocess over hashicorp/go-plugin's handshake; there is no
	// mechanism here for an agent or model to supply or choose the binary.
	PluginProcesses []PluginProcessConfig `yaml:"plugin_processes,omitempty"`
}

// PluginProcessConfig describes one plugin-process tool: an operator-vetted
// external binary exposed to agents under Name.
type PluginProcessConfig struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Path        string   `yaml:"path"`
	Args        []string `yaml:"args,omitempty"`
}

// SetDefaults applies default values across the whole config tree.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Logger.SetDefaults()
	c.Database.SetDefaults()
	c.LLM.SetDefaults()
	c.Embedding.SetDefaults()
	c.RateLimit.SetDefaults()

	if c.Orchestrator.MaxConcurrentAgents == 0 {
		c.Orchestrator.MaxConcurrentAgents = 10
	}
	if c.Orchestrator.MaxDepth == 0 {
		c.Orchestrator.MaxDepth = 3
	}
	if c.Orchestrator.AdaptationEnabled == nil {
		c.Orchestrator.AdaptationEnabled = BoolPtr(true)
	}
	if c.Orchestrator.DefaultBudget.MaxAgents == 0 {
		c.Orchestrator.DefaultBudget.MaxAgents = 5
	}
	if c.Orchestrator.DefaultBudget.MaxCostUSD == 0 {
		c.Orchestrator.DefaultBudget.MaxCostUSD = 10
	}
	if c.Orchestrator.DefaultBudget.MaxWallTime == "" {
		c.Orchestrator.DefaultBudget.MaxWallTime = "10m"
	}

	if c.Motivational.Enabled == nil {
		c.Motivational.Enabled = BoolPtr(true)
	}
	if c.Motivational.TickInterval == "" {
		c.Motivational.TickInterval = "30s"
	}
	if c.Motivational.MinArbitrationThreshold == 0 {
		c.Motivational.MinArbitrationThreshold = 0.3
	}
	if c.Motivational.MaxConcurrentTasksPerDrive == 0 {
		c.Motivational.MaxConcurrentTasksPerDrive = 3
	}
	if c.Motivational.SatisfactionDecayEpsilon == 0 {
		c.Motivational.SatisfactionDecayEpsilon = 0.01
	}
	if c.Motivational.SafetyGate == nil {
		c.Motivational.SafetyGate = BoolPtr(true)
	}
	zw := c.Motivational.ArbitrationWeights
	if zw == (ArbitrationWeights{}) {
		c.Motivational.ArbitrationWeights = ArbitrationWeights{
			Urgency:      0.5,
			Satisfaction: 0.25,
			SuccessRate:  0.15,
			AgePenalty:   0.1,
		}
	}

	if c.Tools.WriteEnabled == nil {
		c.Tools.WriteEnabled = BoolPtr(false)
	}
	if c.Tools.WorkDir == "" {
		c.Tools.WorkDir = "."
	}

	c.Observability.SetDefaults()
}

// Validate validates the whole config tree.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Embedding.Validate(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate_limit: %w", err)
	}
	if c.Orchestrator.MaxConcurrentAgents <= 0 {
		return fmt.Errorf("orchestrator.max_concurrent_agents must be positive")
	}
	if c.Orchestrator.MaxDepth <= 0 {
		return fmt.Errorf("orchestrator.max_depth must be positive")
	}
	if c.Motivational.MinArbitrationThreshold < 0 || c.Motivational.MinArbitrationThreshold > 1 {
		return fmt.Errorf("motivational.min_arbitration_threshold must be in [0,1]")
	}
	for _, p := range c.Tools.PluginProcesses {
		if p.Name == "" {
			return fmt.Errorf("tools.plugin_processes: name is required")
		}
		if p.Path == "" {
			return fmt.Errorf("tools.plugin_processes[%s]: path is required", p.Name)
		}
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}
