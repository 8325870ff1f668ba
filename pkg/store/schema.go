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

package store

// createTableStatements is executed in order on every startup. Each
// statement is idempotent (IF NOT EXISTS) and portable across postgres,
// mysql, and sqlite, the same three dialects pkg/ratelimit's SQLStore
// targets.
var createTableStatements = []string{
	`CREATE TABLE IF NOT EXISTS thought_trees (
		id VARCHAR(36) PRIMARY KEY,
		goal TEXT NOT NULL,
		status VARCHAR(20) NOT NULL,
		depth INTEGER NOT NULL DEFAULT 1,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_thought_trees_status ON thought_trees(status)`,
	`CREATE INDEX IF NOT EXISTS idx_thought_trees_created_at ON thought_trees(created_at)`,

	`CREATE TABLE IF NOT EXISTS orchestrator_records (
		id VARCHAR(36) PRIMARY KEY,
		parent_orchestrator_id VARCHAR(36),
		thought_tree_id VARCHAR(36) NOT NULL,
		type VARCHAR(20) NOT NULL,
		status VARCHAR(20) NOT NULL,
		active_agent_count INTEGER NOT NULL DEFAULT 0,
		max_concurrent_agents INTEGER NOT NULL DEFAULT 0,
		global_context TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orchestrator_records_status ON orchestrator_records(status)`,
	`CREATE INDEX IF NOT EXISTS idx_orchestrator_records_thought_tree ON orchestrator_records(thought_tree_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orchestrator_records_created_at ON orchestrator_records(created_at)`,

	`CREATE TABLE IF NOT EXISTS agents (
		id VARCHAR(36) PRIMARY KEY,
		thought_tree_id VARCHAR(36) NOT NULL,
		kind VARCHAR(20) NOT NULL,
		impl_class VARCHAR(100) NOT NULL,
		state VARCHAR(20) NOT NULL,
		spawned_by VARCHAR(36),
		config_snapshot TEXT NOT NULL DEFAULT '{}',
		runtime_state TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agents_status ON agents(state)`,
	`CREATE INDEX IF NOT EXISTS idx_agents_created_at ON agents(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_agents_thought_tree ON agents(thought_tree_id)`,

	`CREATE TABLE IF NOT EXISTS llm_interactions (
		id VARCHAR(36) PRIMARY KEY,
		agent_id VARCHAR(36) NOT NULL,
		thought_tree_id VARCHAR(36) NOT NULL,
		provider VARCHAR(50) NOT NULL,
		model VARCHAR(100) NOT NULL,
		system_prompt TEXT NOT NULL DEFAULT '',
		user_prompt TEXT NOT NULL DEFAULT '',
		response_text TEXT NOT NULL DEFAULT '',
		requested_at TIMESTAMP NOT NULL,
		responded_at TIMESTAMP NOT NULL,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		cache_creation_input_tokens INTEGER NOT NULL DEFAULT 0,
		cache_read_input_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		cost_usd REAL NOT NULL DEFAULT 0,
		cost_without_cache_usd REAL NOT NULL DEFAULT 0,
		success INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		retry_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_llm_interactions_agent ON llm_interactions(agent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_llm_interactions_thought_tree ON llm_interactions(thought_tree_id)`,
	`CREATE INDEX IF NOT EXISTS idx_llm_interactions_created_at ON llm_interactions(created_at)`,

	`CREATE TABLE IF NOT EXISTS tool_executions (
		id VARCHAR(36) PRIMARY KEY,
		agent_id VARCHAR(36) NOT NULL REFERENCES agents(id),
		thought_tree_id VARCHAR(36) NOT NULL REFERENCES thought_trees(id),
		tool_name VARCHAR(100) NOT NULL,
		tool_class VARCHAR(100) NOT NULL,
		input_params TEXT NOT NULL DEFAULT '{}',
		output_result TEXT NOT NULL DEFAULT '',
		stdout TEXT NOT NULL DEFAULT '',
		stderr TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tool_executions_agent ON tool_executions(agent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tool_executions_thought_tree ON tool_executions(thought_tree_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tool_executions_created_at ON tool_executions(created_at)`,

	`CREATE TABLE IF NOT EXISTS motivational_states (
		kind VARCHAR(50) PRIMARY KEY,
		urgency REAL NOT NULL DEFAULT 0 CHECK (urgency >= 0 AND urgency <= 1),
		satisfaction REAL NOT NULL DEFAULT 0 CHECK (satisfaction >= 0 AND satisfaction <= 1),
		decay_rate REAL NOT NULL DEFAULT 0 CHECK (decay_rate >= 0 AND decay_rate <= 1),
		boost_factor REAL NOT NULL DEFAULT 0,
		trigger_condition TEXT NOT NULL DEFAULT '{}',
		last_triggered_at TIMESTAMP,
		last_satisfied_at TIMESTAMP,
		success_count INTEGER NOT NULL DEFAULT 0,
		failure_count INTEGER NOT NULL DEFAULT 0,
		success_rate REAL NOT NULL DEFAULT 0 CHECK (success_rate >= 0 AND success_rate <= 1),
		active INTEGER NOT NULL DEFAULT 1,
		metadata TEXT NOT NULL DEFAULT '{}',
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS motivational_tasks (
		id VARCHAR(36) PRIMARY KEY,
		motivation_type VARCHAR(50) NOT NULL,
		thought_tree_id VARCHAR(36),
		prompt TEXT NOT NULL DEFAULT '',
		priority REAL NOT NULL DEFAULT 0,
		arbitration_score REAL NOT NULL DEFAULT 0,
		status VARCHAR(20) NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		outcome_score REAL,
		satisfaction_gain REAL,
		cancel_reason VARCHAR(50)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_motivational_tasks_status ON motivational_tasks(status)`,
	`CREATE INDEX IF NOT EXISTS idx_motivational_tasks_motivation_type ON motivational_tasks(motivation_type)`,
	`CREATE INDEX IF NOT EXISTS idx_motivational_tasks_created_at ON motivational_tasks(created_at)`,

	// social_seen_posts backs the social drive's sort-strategy rotation: a
	// dedup ledger so the same feed item is never turned into two
	// MotivationalTasks across restarts.
	`CREATE TABLE IF NOT EXISTS social_seen_posts (
		source_platform VARCHAR(50) NOT NULL,
		source_post_id VARCHAR(255) NOT NULL,
		seen_at TIMESTAMP NOT NULL,
		PRIMARY KEY (source_platform, source_post_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_social_seen_posts_platform_post ON social_seen_posts(source_platform, source_post_id)`,
}
