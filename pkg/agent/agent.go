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

// Package agent implements the executing worker: a lifecycle state machine
// wrapped around a specialization (task, council, validator, memory,
// social), persisted through pkg/store on every transition.
package agent

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/nyxcore/orchestrator/pkg/errs"
	"github.com/nyxcore/orchestrator/pkg/llm"
	"github.com/nyxcore/orchestrator/pkg/observability"
	"github.com/nyxcore/orchestrator/pkg/store"
)

// Input is what Execute is asked to do. Specializations interpret Context
// and Prompt according to their own contract (e.g. Task agent requires
// Context["task_type"]).
type Input struct {
	Prompt        string
	Context       map[string]any
	ThoughtTreeID string
}

// Result is what Execute produces, regardless of specialization.
type Result struct {
	Success  bool
	Content  string
	Usage    llm.Usage
	CostUSD  float64
	Error    string
	Metadata map[string]any
	Retries  int
}

// Specialization is the behavior a Handle delegates to. Implementations
// must be safe to call repeatedly (Execute retries on failure).
type Specialization interface {
	Kind() store.AgentKind
	Run(ctx context.Context, h *Handle, input Input) (Result, error)
}

// Dependencies bundles the shared, process-wide collaborators every Handle
// needs: persistence, the LLM client, and the lifecycle tuning knobs.
type Dependencies struct {
	Store       *store.Store
	LLM         *llm.Client
	MaxRetries  int           // default 3
	Timeout     time.Duration // default 300s, per Execute's timeout wrap
	MaxBackoff  time.Duration // default 30s cap on retry backoff
}

func (d Dependencies) withDefaults() Dependencies {
	if d.MaxRetries == 0 {
		d.MaxRetries = 3
	}
	if d.Timeout == 0 {
		d.Timeout = 300 * time.Second
	}
	if d.MaxBackoff == 0 {
		d.MaxBackoff = 30 * time.Second
	}
	return d
}

// Handle is the runtime state machine around a Specialization: spawned ->
// active -> {completed|failed|terminated}, with waiting <-> coordinating
// sub-states while delegating to children. Every transition and every
// completed Execute call is persisted via pkg/store.
type Handle struct {
	mu sync.Mutex

	id            string
	thoughtTreeID string
	kind          store.AgentKind
	state         store.AgentState
	spawnedBy     *string

	spec Specialization
	deps Dependencies

	tokensUsed int
	costUSD    float64
}

// New creates a Handle around a Specialization and persists the owning
// Agent row in the spawned state.
func New(ctx context.Context, thoughtTreeID string, implClass string, spawnedBy *string, spec Specialization, deps Dependencies, config map[string]any) (*Handle, error) {
	deps = deps.withDefaults()

	row, err := deps.Store.Agents().Create(ctx, thoughtTreeID, spec.Kind(), implClass, spawnedBy, config)
	if err != nil {
		return nil, err
	}

	return &Handle{
		id:            row.ID,
		thoughtTreeID: thoughtTreeID,
		kind:          spec.Kind(),
		state:         store.AgentSpawned,
		spawnedBy:     spawnedBy,
		spec:          spec,
		deps:          deps,
	}, nil
}

// ID returns the persisted Agent id.
func (h *Handle) ID() string { return h.id }

// ThoughtTreeID returns the owning workflow's id.
func (h *Handle) ThoughtTreeID() string { return h.thoughtTreeID }

// State returns the current lifecycle state.
func (h *Handle) State() store.AgentState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Initialize transitions spawned -> active. Returns false if the agent was
// not in the spawned state.
func (h *Handle) Initialize(ctx context.Context) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != store.AgentSpawned {
		return false, nil
	}
	if err := h.transitionLocked(ctx, store.AgentActive, nil); err != nil {
		return false, err
	}
	return true, nil
}

// TransitionToWaiting moves active -> waiting, for when the agent delegates
// to children and has nothing more to do until they report.
func (h *Handle) TransitionToWaiting(ctx context.Context) error {
	return h.transition(ctx, store.AgentWaiting)
}

// TransitionToCoordinating moves waiting -> coordinating, for when children
// have reported and the agent is reconciling their results.
func (h *Handle) TransitionToCoordinating(ctx context.Context) error {
	return h.transition(ctx, store.AgentCoordinating)
}

// ReturnToActive moves coordinating -> active, to resume the agent's own
// work after reconciling children.
func (h *Handle) ReturnToActive(ctx context.Context) error {
	return h.transition(ctx, store.AgentActive)
}

// Terminate forces a terminal transition regardless of current state,
// issued by an owning orchestrator on shutdown.
func (h *Handle) Terminate(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if isTerminal(h.state) {
		return nil
	}
	return h.completeLocked(ctx, store.AgentTerminated)
}

// Statistics reports cumulative token/cost usage across every Execute call
// (and every retry within each call).
func (h *Handle) Statistics() (tokensUsed int, costUSD float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tokensUsed, h.costUSD
}

func (h *Handle) transition(ctx context.Context, to store.AgentState) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.transitionLocked(ctx, to, nil)
}

func (h *Handle) transitionLocked(ctx context.Context, to store.AgentState, runtimeState map[string]any) error {
	if !store.ValidTransition(h.state, to) {
		return errs.New(errs.KindValidation, "illegal agent transition "+string(h.state)+" -> "+string(to))
	}
	if err := h.deps.Store.Agents().UpdateState(ctx, h.id, to, runtimeState); err != nil {
		return err
	}
	h.state = to
	return nil
}

func (h *Handle) completeLocked(ctx context.Context, to store.AgentState) error {
	if err := h.deps.Store.Agents().Complete(ctx, h.id, to); err != nil {
		return err
	}
	h.state = to
	return nil
}

// errorKindLabel extracts the errs.Kind from err for metric labeling,
// falling back to a generic label for errors outside the errs taxonomy.
func errorKindLabel(err error) string {
	var e *errs.Error
	if errors.As(err, &e) {
		return string(e.Kind)
	}
	return "unknown"
}

func isTerminal(s store.AgentState) bool {
	return s == store.AgentCompleted || s == store.AgentFailed || s == store.AgentTerminated
}

// Execute validates the agent is runnable, delegates to the specialization
// with retry-with-backoff and a per-attempt timeout, accumulates usage
// across every attempt, and drives the agent to its terminal state.
func (h *Handle) Execute(ctx context.Context, input Input) (res Result, err error) {
	start := time.Now()
	defer func() {
		recorder := observability.GetGlobalRecorder()
		recorder.RecordAgentCall(string(h.kind), string(h.kind), time.Since(start))
		if err != nil {
			recorder.RecordAgentError(string(h.kind), string(h.kind), errorKindLabel(err))
		}
	}()

	h.mu.Lock()
	state := h.state
	h.mu.Unlock()

	if state != store.AgentActive && state != store.AgentWaiting && state != store.AgentCoordinating {
		return Result{}, errs.New(errs.KindValidation, "Execute is only valid from active, waiting, or coordinating")
	}
	if input.ThoughtTreeID == "" {
		input.ThoughtTreeID = h.thoughtTreeID
	}

	var last Result
	var lastErr error

	for attempt := 0; attempt <= h.deps.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoff(attempt, h.deps.MaxBackoff)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return h.fail(ctx, last, ctx.Err())
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, h.deps.Timeout)
		attemptRes, attemptErr := h.spec.Run(attemptCtx, h, input)
		cancel()

		h.mu.Lock()
		h.tokensUsed += attemptRes.Usage.InputTokens + attemptRes.Usage.OutputTokens
		h.costUSD += attemptRes.CostUSD
		h.mu.Unlock()

		attemptRes.Retries = attempt
		if attemptErr == nil && attemptRes.Success {
			h.mu.Lock()
			completeErr := h.completeLocked(ctx, store.AgentCompleted)
			h.mu.Unlock()
			if completeErr != nil {
				return attemptRes, completeErr
			}
			return attemptRes, nil
		}

		last, lastErr = attemptRes, attemptErr
	}

	return h.fail(ctx, last, lastErr)
}

func (h *Handle) fail(ctx context.Context, res Result, err error) (Result, error) {
	res.Success = false
	if err != nil {
		res.Error = err.Error()
	}
	h.mu.Lock()
	completeErr := h.completeLocked(ctx, store.AgentFailed)
	h.mu.Unlock()
	if completeErr != nil {
		return res, completeErr
	}
	return res, err
}

// backoff doubles from 1s up to cap, then adds up to 20% jitter (never
// subtracted, and added after the cap). pkg/httpclient and pkg/llm use the
// same doubling shape with up to 10% added jitter.
func backoff(attempt int, cap time.Duration) time.Duration {
	base := time.Second
	d := base * time.Duration(1<<uint(attempt-1))
	if d > cap {
		d = cap
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 5))
	return d + jitter
}
