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

// Package runtime assembles the process-wide orchestrator from
// configuration: one database pool, one LLM client sharing one circuit
// breaker and cache ledger, one rate limiter, one Specialization factory,
// and (when enabled) one motivational engine. It is the single place that
// wires pkg/config into the rest of the module, and owns the process's
// startup-cleanup and shutdown sequencing.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/nyxcore/orchestrator/pkg/agent"
	"github.com/nyxcore/orchestrator/pkg/config"
	"github.com/nyxcore/orchestrator/pkg/embedder"
	"github.com/nyxcore/orchestrator/pkg/errs"
	"github.com/nyxcore/orchestrator/pkg/instruction"
	"github.com/nyxcore/orchestrator/pkg/llm"
	"github.com/nyxcore/orchestrator/pkg/logger"
	"github.com/nyxcore/orchestrator/pkg/motivation"
	"github.com/nyxcore/orchestrator/pkg/observability"
	"github.com/nyxcore/orchestrator/pkg/orchestrator"
	"github.com/nyxcore/orchestrator/pkg/ratelimit"
	"github.com/nyxcore/orchestrator/pkg/store"
	"github.com/nyxcore/orchestrator/pkg/tools"
	"github.com/nyxcore/orchestrator/pkg/vector"
)

// circuitBreakerFailureThreshold and circuitBreakerCooldown bound the one
// process-global breaker every agent's LLM calls share: five consecutive
// provider failures trips it, and it stays open for a minute before
// probing again.
const (
	circuitBreakerFailureThreshold = 5
	circuitBreakerCooldown         = time.Minute
)

// Runtime holds every process-wide collaborator built from configuration.
// A Runtime is built once at process start; ExecuteWorkflow builds a fresh
// Base/Sub/Top per call, sharing the Runtime's store, LLM client, and
// Specialization factory.
type Runtime struct {
	cfg *config.Config

	dbPool *config.DBPool
	store  *store.Store

	llmClient  *llm.Client
	breaker    *llm.CircuitBreaker
	cacheStats *llm.CacheStats

	rateLimiter ratelimit.RateLimiter

	specs func(kind store.AgentKind) (agent.Specialization, error)
	deps  agent.Dependencies
	tools *tools.ToolRegistry

	motivation *motivation.Engine

	obs *observability.Manager

	log         *slog.Logger
	closeLogger func()

	mu                sync.Mutex
	lastThoughtTreeID string
}

// New builds a Runtime from a loaded, defaulted, validated Config. Callers
// that haven't already called cfg.SetDefaults()/cfg.Validate() should do so
// before calling New. New applies observability defaults to
// cfg.Observability in place and changes no other part of cfg.
func New(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	level, err := logger.ParseLevel(cfg.Logger.Level)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "parse log level", err)
	}
	logOutput, closeLog, err := logOutputFor(cfg.Logger.File)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "open log file", err)
	}
	logger.Init(level, logOutput, cfg.Logger.Format)
	log := logger.GetLogger()

	dbPool := config.NewDBPool()
	st, err := store.New(dbPool, &cfg.Database)
	if err != nil {
		closeLog()
		return nil, errs.Wrap(errs.KindDatabase, "open store", err)
	}

	rateLimiter, err := ratelimit.NewRateLimiterFromConfig(cfg, dbPool)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "build rate limiter", err)
	}

	breaker := llm.NewCircuitBreaker(circuitBreakerFailureThreshold, circuitBreakerCooldown)
	cacheStats := llm.NewCacheStats()
	llmClient, err := llm.NewClientFromConfig(cfg.LLM, breaker, cacheStats, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "build LLM client", err)
	}

	var emb embedder.Embedder
	if oaiEmb, embErr := embedder.NewOpenAIEmbedder(cfg.Embedding); embErr != nil {
		log.Warn("embedding provider unavailable, memory agent semantic search disabled", "error", embErr)
	} else {
		emb = oaiEmb
	}

	vectorProvider, err := vector.NewProvider(&vector.ProviderConfig{})
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "build vector provider", err)
	}

	instructions, err := instruction.NewDefaultSet()
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "build instruction set", err)
	}

	toolRegistry, err := tools.NewToolRegistryFromConfig(cfg.Tools)
	if err != nil {
		log.Warn("tool registry unavailable, task agents run without tool calls", "error", err)
		toolRegistry = nil
	}

	obs, err := observability.NewFromConfig(ctx, &cfg.Observability)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "build observability manager", err)
	}
	if obs.MetricsEnabled() {
		observability.SetGlobalRecorder(obs.Metrics())
	}

	deps := agent.Dependencies{Store: st, LLM: llmClient}
	specs := DefaultSpecFactory(SpecDeps{
		LLM: llmClient, Store: st, Instructions: instructions, Tools: toolRegistry,
		Vector: vectorProvider, Embedder: emb, RateLimiter: rateLimiter,
	})

	rt := &Runtime{
		cfg: cfg, dbPool: dbPool, store: st,
		llmClient: llmClient, breaker: breaker, cacheStats: cacheStats,
		rateLimiter: rateLimiter, specs: specs, deps: deps, tools: toolRegistry, obs: obs,
		log: log, closeLogger: closeLog,
	}

	if cfg.Motivational.Enabled != nil && *cfg.Motivational.Enabled {
		engine, err := motivation.NewEngine(st, rt, rateLimiter, cfg.Motivational)
		if err != nil {
			return nil, errs.Wrap(errs.KindValidation, "build motivational engine", err)
		}
		rt.motivation = engine
	}

	return rt, nil
}

func logOutputFor(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stderr, func() {}, nil
	}
	return logger.OpenLogFile(path)
}

// Store returns the shared persistence layer.
func (r *Runtime) Store() *store.Store { return r.store }

// Motivation returns the motivational engine, or nil when disabled.
func (r *Runtime) Motivation() *motivation.Engine { return r.motivation }

// CacheStats returns the process-global LLM cache savings ledger.
func (r *Runtime) CacheStats() *llm.CacheStats { return r.cacheStats }

// Observability returns the process-wide tracing/metrics manager, so HTTP
// and other transports can mount the same middleware the Runtime itself
// instruments agents, tools, and LLM calls with.
func (r *Runtime) Observability() *observability.Manager { return r.obs }

// NewForTest assembles a Runtime from already-built collaborators,
// skipping config loading and the database/LLM/breaker wiring New does.
// For use by other packages' handler-level tests (e.g. pkg/apiserver)
// that need a real Runtime to route requests against but want to choose
// their own store, observability manager, and motivational engine.
func NewForTest(st *store.Store, obs *observability.Manager, mot *motivation.Engine, cacheStats *llm.CacheStats) *Runtime {
	return &Runtime{
		store:      st,
		obs:        obs,
		motivation: mot,
		cacheStats: cacheStats,
		log:        logger.GetLogger(),
	}
}

// ExecuteWorkflow builds a fresh top-level orchestrator over the Runtime's
// shared store and LLM client and runs one workflow to completion. Each
// call gets its own ThoughtTree and Base/Sub/Top triple; only the
// database, LLM client, breaker, and cache ledger are shared across calls.
// The returned string is the workflow's ThoughtTree id, useful to callers
// that issue concurrent calls and cannot rely on ThoughtTreeID's
// last-call-wins bookkeeping.
func (r *Runtime) ExecuteWorkflow(ctx context.Context, in orchestrator.WorkflowInput) (orchestrator.TopResult, string, error) {
	goal := in.Prompt
	base, err := orchestrator.NewBase(ctx, r.store, goal, "", nil, 1, r.cfg.Orchestrator.MaxConcurrentAgents, r.specs, r.deps)
	if err != nil {
		return orchestrator.TopResult{}, "", errs.Wrap(errs.KindWorkflowExecution, "initialize orchestrator", err)
	}
	if err := base.Initialize(ctx); err != nil {
		return orchestrator.TopResult{}, "", errs.Wrap(errs.KindWorkflowExecution, "start orchestrator", err)
	}

	sub := orchestrator.NewSub(base, r.cfg.Orchestrator.MaxDepth, 0)
	top := orchestrator.NewTop(base, sub, nil, r.cfg.Orchestrator.DefaultBudget)
	workflowID := top.ThoughtTreeID()

	r.mu.Lock()
	r.lastThoughtTreeID = workflowID
	r.mu.Unlock()

	result, err := top.Run(ctx, in)
	if err != nil {
		return result, workflowID, errs.Wrap(errs.KindWorkflowExecution, "run workflow", err)
	}
	return result, workflowID, nil
}

// Run satisfies motivation.WorkflowRunner so the Runtime itself can be
// handed to the motivational engine as its workflow dispatcher.
func (r *Runtime) Run(ctx context.Context, in orchestrator.WorkflowInput) (orchestrator.TopResult, error) {
	result, _, err := r.ExecuteWorkflow(ctx, in)
	return result, err
}

// ThoughtTreeID satisfies motivation.WorkflowRunner, reporting the
// ThoughtTree of the most recently started ExecuteWorkflow call. The
// motivational engine's Tick runs one drive to completion before starting
// another, so by the time it reads this the value is its own workflow's.
func (r *Runtime) ThoughtTreeID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastThoughtTreeID
}

// startupCleanupReason is stamped onto every row this pass force-terminates,
// so a later read can tell an orphaned-on-crash row from one that actually
// ran to completion or was cancelled by a caller.
const startupCleanupReason = "startup_cleanup"

// StartupCleanup force-transitions every non-terminal Agent, ThoughtTree,
// OrchestratorRecord, and MotivationalTask to a terminated/cancelled state,
// stamping a startup_cleanup reason tag into each row's own metadata column
// in the same write. A process that crashed mid-workflow leaves rows
// claiming agents are still "active"; nothing will ever resume them, so the
// next launch must close them out before the API reports status against
// stale state. The returned count is the number of rows cleaned, across
// all four tables.
func (r *Runtime) StartupCleanup(ctx context.Context) (int, error) {
	cleaned := 0

	agents, err := r.store.Agents().ListNonTerminal(ctx)
	if err != nil {
		return cleaned, errs.Wrap(errs.KindDatabase, "list non-terminal agents", err)
	}
	for _, a := range agents {
		runtimeState := a.RuntimeState
		if runtimeState == nil {
			runtimeState = map[string]any{}
		}
		runtimeState["reason"] = startupCleanupReason
		if err := r.store.Agents().UpdateState(ctx, a.ID, store.AgentTerminated, runtimeState); err != nil {
			return cleaned, errs.Wrap(errs.KindDatabase, "terminate stale agent", err)
		}
		if err := r.store.Agents().Complete(ctx, a.ID, store.AgentTerminated); err != nil {
			return cleaned, errs.Wrap(errs.KindDatabase, "terminate stale agent", err)
		}
		r.log.Warn("terminated stale agent on startup", "agent_id", a.ID, "thought_tree_id", a.ThoughtTreeID)
		cleaned++
	}

	orchestrators, err := r.store.Orchestrators().ListNonTerminal(ctx)
	if err != nil {
		return cleaned, errs.Wrap(errs.KindDatabase, "list non-terminal orchestrators", err)
	}
	for _, o := range orchestrators {
		globalContext := o.GlobalContext
		if globalContext == nil {
			globalContext = map[string]any{}
		}
		globalContext["reason"] = startupCleanupReason
		if err := r.store.Orchestrators().UpdateStatusWithContext(ctx, o.ID, store.OrchestratorCancelled, globalContext); err != nil {
			return cleaned, errs.Wrap(errs.KindDatabase, "cancel stale orchestrator", err)
		}
		r.log.Warn("cancelled stale orchestrator on startup", "orchestrator_id", o.ID)
		cleaned++
	}

	trees, err := r.store.ThoughtTrees().ListNonTerminal(ctx)
	if err != nil {
		return cleaned, errs.Wrap(errs.KindDatabase, "list non-terminal thought trees", err)
	}
	for _, tt := range trees {
		metadata := tt.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata["reason"] = startupCleanupReason
		if err := r.store.ThoughtTrees().UpdateStatusWithMetadata(ctx, tt.ID, store.ThoughtTreeCancelled, metadata); err != nil {
			return cleaned, errs.Wrap(errs.KindDatabase, "cancel stale thought tree", err)
		}
		r.log.Warn("cancelled stale thought tree on startup", "thought_tree_id", tt.ID)
		cleaned++
	}

	tasks, err := r.store.MotivationalTasks().ListNonTerminal(ctx)
	if err != nil {
		return cleaned, errs.Wrap(errs.KindDatabase, "list non-terminal motivational tasks", err)
	}
	for _, mt := range tasks {
		if err := r.store.MotivationalTasks().CompleteWithReason(ctx, mt.ID, store.MotivationalTaskCancelled, 0, 0, startupCleanupReason); err != nil {
			return cleaned, errs.Wrap(errs.KindDatabase, "cancel stale motivational task", err)
		}
		r.log.Warn("cancelled stale motivational task on startup", "task_id", mt.ID)
		cleaned++
	}

	return cleaned, nil
}

// Shutdown stops the motivational engine (if running) and releases the
// database pool. The Store itself is a thin wrapper over the pool and has
// nothing of its own to release.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r.motivation != nil {
		r.motivation.Stop()
	}
	if r.tools != nil {
		r.tools.Close()
	}
	if err := r.obs.Shutdown(ctx); err != nil {
		r.log.Warn("observability shutdown", "error", err)
	}
	if err := r.dbPool.Close(); err != nil {
		return fmt.Errorf("close database pool: %w", err)
	}
	if r.closeLogger != nil {
		r.closeLogger()
	}
	return nil
}
