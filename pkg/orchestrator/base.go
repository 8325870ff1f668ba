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

// Package orchestrator drives the agent hierarchy: a base orchestrator
// spawns and tracks agents under a concurrency quota, and a sub-orchestrator
// recursively decomposes a task into a plan, executes it, and synthesizes
// the result.
package orchestrator

import (
	"context"
	"sync"

	"github.com/nyxcore/orchestrator/pkg/agent"
	"github.com/nyxcore/orchestrator/pkg/errs"
	"github.com/nyxcore/orchestrator/pkg/registry"
	"github.com/nyxcore/orchestrator/pkg/store"
)

// SpecFactory builds a Specialization for a requested AgentKind. The base
// orchestrator is agnostic to how each kind is wired (which LLM client,
// which rule bank, which feed client); that wiring is supplied by the
// caller at construction, one factory function per kind.
type SpecFactory func(kind store.AgentKind) (agent.Specialization, error)

// Base is the spawn/track/coordinate/terminate orchestrator from spec.md
// §4.3. It owns the quota gate (current_active_agents vs
// max_concurrent_agents) and the thought-tree this instance of the
// hierarchy belongs to.
type Base struct {
	mu sync.Mutex

	id                  string
	thoughtTreeID       string
	maxConcurrentAgents int
	activeCount         int

	store      *store.Store
	specs      SpecFactory
	deps       agent.Dependencies
	registry   *registry.BaseRegistry[*agent.Handle]
}

// NewBase creates a Base orchestrator. When thoughtTreeID is empty, a new
// ThoughtTree is created at the given depth; otherwise the existing
// ThoughtTree is assumed to already exist and is reused as-is.
func NewBase(ctx context.Context, s *store.Store, goal string, thoughtTreeID string, parentOrchestratorID *string, depth int, maxConcurrentAgents int, specs SpecFactory, deps agent.Dependencies) (*Base, error) {
	if thoughtTreeID == "" {
		tt, err := s.ThoughtTrees().Create(ctx, goal, depth, nil)
		if err != nil {
			return nil, err
		}
		thoughtTreeID = tt.ID
	}

	typ := store.OrchestratorTopLevel
	if parentOrchestratorID != nil {
		typ = store.OrchestratorSub
	}
	rec, err := s.Orchestrators().Create(ctx, parentOrchestratorID, thoughtTreeID, typ, maxConcurrentAgents, nil)
	if err != nil {
		return nil, err
	}

	return &Base{
		id:                  rec.ID,
		thoughtTreeID:       thoughtTreeID,
		maxConcurrentAgents: maxConcurrentAgents,
		store:               s,
		specs:               specs,
		deps:                deps,
		registry:            registry.NewBaseRegistry[*agent.Handle](),
	}, nil
}

// ID returns the persisted OrchestratorRecord id.
func (b *Base) ID() string { return b.id }

// ThoughtTreeID returns the workflow this orchestrator drives.
func (b *Base) ThoughtTreeID() string { return b.thoughtTreeID }

// Initialize marks the orchestrator's thought tree and own record
// in-progress.
func (b *Base) Initialize(ctx context.Context) error {
	if err := b.store.ThoughtTrees().UpdateStatus(ctx, b.thoughtTreeID, store.ThoughtTreeInProgress); err != nil {
		return err
	}
	return b.store.Orchestrators().UpdateStatus(ctx, b.id, store.OrchestratorInProgress)
}

// SpawnAgent creates and initializes an agent of the requested kind,
// gated by the concurrency quota. Returns nil, nil (not an error) when the
// quota is exhausted, matching spec.md §4.3's SpawnAgent contract.
func (b *Base) SpawnAgent(ctx context.Context, kind store.AgentKind, implClass string, parentAgentID *string, config map[string]any) (*agent.Handle, error) {
	b.mu.Lock()
	if b.activeCount >= b.maxConcurrentAgents {
		b.mu.Unlock()
		return nil, nil
	}
	b.activeCount++
	b.mu.Unlock()

	spec, err := b.specs(kind)
	if err != nil {
		b.releaseSlot()
		return nil, err
	}

	h, err := agent.New(ctx, b.thoughtTreeID, implClass, parentAgentID, spec, b.deps, config)
	if err != nil {
		b.releaseSlot()
		return nil, err
	}

	if err := b.store.Orchestrators().IncrementActiveAgents(ctx, b.id, 1); err != nil {
		b.releaseSlot()
		return nil, err
	}

	if _, err := h.Initialize(ctx); err != nil {
		b.releaseSlot()
		return nil, err
	}

	_ = b.registry.Register(h.ID(), h)
	return h, nil
}

func (b *Base) releaseSlot() {
	b.mu.Lock()
	b.activeCount--
	b.mu.Unlock()
}

// TrackAgentCompletion decrements the active-agent counter exactly once
// per agent, regardless of whether it succeeded, failed, or was
// terminated. Calling it twice for the same agent is a caller bug but is
// tolerated here as a no-op on the second call (the registry entry is
// removed on the first).
func (b *Base) TrackAgentCompletion(ctx context.Context, h *agent.Handle, _ agent.Result) error {
	if _, ok := b.registry.Get(h.ID()); !ok {
		return nil
	}
	_ = b.registry.Remove(h.ID())

	b.releaseSlot()
	return b.store.Orchestrators().IncrementActiveAgents(ctx, b.id, -1)
}

// Coordinate runs every agent's Execute concurrently and collects results
// in the same order as the input slice.
func (b *Base) Coordinate(ctx context.Context, handles []*agent.Handle, inputs []agent.Input) ([]agent.Result, error) {
	if len(handles) != len(inputs) {
		return nil, errs.New(errs.KindValidation, "Coordinate requires one input per handle")
	}

	results := make([]agent.Result, len(handles))
	errsOut := make([]error, len(handles))
	var wg sync.WaitGroup

	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := handles[i].Execute(ctx, inputs[i])
			results[i] = res
			errsOut[i] = err
			_ = b.TrackAgentCompletion(ctx, handles[i], res)
		}(i)
	}
	wg.Wait()

	for _, err := range errsOut {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// Status reports the orchestrator's current active-agent count and quota.
type Status struct {
	ActiveAgentCount    int
	MaxConcurrentAgents int
}

// Status returns the orchestrator's current load.
func (b *Base) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{ActiveAgentCount: b.activeCount, MaxConcurrentAgents: b.maxConcurrentAgents}
}

// Result is what Terminate (and a sub-orchestrator's Report stage)
// produces: the orchestrator-level summary of a workflow run.
type Result struct {
	Success       bool
	ThoughtTreeID string
	AgentResults  []agent.Result
	Metadata      map[string]any
}

// Terminate walks every still-tracked agent, forces it to a terminal
// state, and records a synthetic failed result for each one. Only after
// every tracked agent has been terminated are the orchestrator record and
// its thought tree marked cancelled.
func (b *Base) Terminate(ctx context.Context) (Result, error) {
	handles := b.registry.List()

	results := make([]agent.Result, 0, len(handles))
	for _, h := range handles {
		if err := h.Terminate(ctx); err != nil {
			return Result{}, err
		}
		results = append(results, agent.Result{Success: false, Error: "terminated by orchestrator shutdown"})
		_ = b.TrackAgentCompletion(ctx, h, results[len(results)-1])
	}

	if err := b.store.Orchestrators().UpdateStatus(ctx, b.id, store.OrchestratorCancelled); err != nil {
		return Result{}, err
	}
	if err := b.store.ThoughtTrees().UpdateStatus(ctx, b.thoughtTreeID, store.ThoughtTreeCancelled); err != nil {
		return Result{}, err
	}

	return Result{Success: false, ThoughtTreeID: b.thoughtTreeID, AgentResults: results}, nil
}

// Complete marks the orchestrator and its thought tree completed or
// failed, based on the aggregate AgentResults outcome.
func (b *Base) Complete(ctx context.Context, success bool) error {
	ttStatus := store.ThoughtTreeCompleted
	orchStatus := store.OrchestratorCompleted
	if !success {
		ttStatus = store.ThoughtTreeFailed
		orchStatus = store.OrchestratorFailed
	}
	if err := b.store.Orchestrators().UpdateStatus(ctx, b.id, orchStatus); err != nil {
		return err
	}
	return b.store.ThoughtTrees().UpdateStatus(ctx, b.thoughtTreeID, ttStatus)
}
