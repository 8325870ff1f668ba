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

// Package motivation implements the standing-intent arbitration loop:
// a periodic tick decays and boosts a table of named drives, scores them,
// converts the winner into a workflow handed to the top-level
// orchestrator, and folds the outcome back into the drive's satisfaction
// and success rate.
package motivation

import (
	"context"
	"sync"
	"time"

	"github.com/nyxcore/orchestrator/pkg/config"
	"github.com/nyxcore/orchestrator/pkg/errs"
	"github.com/nyxcore/orchestrator/pkg/orchestrator"
	"github.com/nyxcore/orchestrator/pkg/ratelimit"
	"github.com/nyxcore/orchestrator/pkg/store"
)

// WorkflowRunner is the top-level orchestrator's surface the engine needs:
// run a workflow, and report which ThoughtTree it ran under so the
// spawned MotivationalTask can be linked to it.
type WorkflowRunner interface {
	Run(ctx context.Context, in orchestrator.WorkflowInput) (orchestrator.TopResult, error)
	ThoughtTreeID() string
}

const defaultMaxConcurrentTasksPerDrive = 3

// Engine runs the periodic arbitration tick against a drive-state table
// persisted in pkg/store, spawning workflows through a WorkflowRunner.
type Engine struct {
	store       *store.Store
	runner      WorkflowRunner
	rateLimiter ratelimit.RateLimiter

	weights                config.ArbitrationWeights
	minThreshold           float64
	maxConcurrentPerDrive  int
	satisfactionEpsilon    float64
	safetyGateEnabled      bool
	tickInterval           time.Duration

	mu       sync.Mutex
	lastTick time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewEngine builds an Engine from configuration. rateLimiter may be nil
// when the safety gate is disabled.
func NewEngine(s *store.Store, runner WorkflowRunner, rateLimiter ratelimit.RateLimiter, cfg config.MotivationalConfig) (*Engine, error) {
	interval, err := time.ParseDuration(cfg.TickInterval)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "parse motivational tick interval", err)
	}

	maxConcurrent := cfg.MaxConcurrentTasksPerDrive
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentTasksPerDrive
	}

	safetyGate := cfg.SafetyGate == nil || *cfg.SafetyGate

	return &Engine{
		store: s, runner: runner, rateLimiter: rateLimiter,
		weights: cfg.ArbitrationWeights, minThreshold: cfg.MinArbitrationThreshold,
		maxConcurrentPerDrive: maxConcurrent, satisfactionEpsilon: cfg.SatisfactionDecayEpsilon,
		safetyGateEnabled: safetyGate, tickInterval: interval,
		lastTick: time.Now().UTC(),
	}, nil
}

// Start runs the periodic tick loop until ctx is cancelled or Stop is
// called. It returns immediately; the loop runs in its own goroutine.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	e.lastTick = time.Now().UTC()
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	stopCh, doneCh := e.stopCh, e.doneCh
	e.mu.Unlock()

	go func() {
		defer close(doneCh)
		defer func() {
			e.mu.Lock()
			if e.stopCh == stopCh {
				e.stopCh = nil
			}
			e.mu.Unlock()
		}()
		ticker := time.NewTicker(e.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-ticker.C:
				_ = e.Tick(ctx)
			}
		}
	}()
}

// Stop signals the tick loop to exit and waits for it to do so.
func (e *Engine) Stop() {
	e.mu.Lock()
	stopCh, doneCh := e.stopCh, e.doneCh
	e.mu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh
}

// Tick runs one full decay/boost/arbitration/spawn/feedback cycle. It is
// exported so tests can drive it without waiting on the ticker.
func (e *Engine) Tick(ctx context.Context) error {
	now := time.Now().UTC()

	e.mu.Lock()
	elapsed := now.Sub(e.lastTick)
	if elapsed <= 0 {
		elapsed = e.tickInterval
	}
	e.lastTick = now
	e.mu.Unlock()

	drives, err := e.store.MotivationalStates().List(ctx)
	if err != nil {
		return err
	}

	var best *store.MotivationalState
	var bestScore float64

	for _, ms := range drives {
		if !ms.Active {
			continue
		}
		decay(ms, elapsed, e.satisfactionEpsilon)
		boostIfTriggered(ms)
		if err := e.store.MotivationalStates().Upsert(ctx, ms); err != nil {
			return err
		}

		s := score(ms, e.weights, now)
		if s < e.minThreshold {
			continue
		}
		if best == nil || s > bestScore {
			best, bestScore = ms, s
		}
	}

	if best == nil {
		return nil
	}

	eligible, err := e.eligible(ctx, best)
	if err != nil {
		return err
	}
	if !eligible {
		return nil
	}

	return e.spawn(ctx, best, bestScore)
}

func (e *Engine) eligible(ctx context.Context, ms *store.MotivationalState) (bool, error) {
	count, err := e.concurrentTaskCount(ctx, ms.Kind)
	if err != nil {
		return false, err
	}
	if count >= e.maxConcurrentPerDrive {
		return false, nil
	}

	if !e.safetyGateEnabled || e.rateLimiter == nil {
		return true, nil
	}
	result, err := e.rateLimiter.CheckAndRecord(ctx, ratelimit.ScopeUser, "motivation:"+ms.Kind, 0, 1)
	if err != nil {
		return false, err
	}
	return result.Allowed, nil
}

func (e *Engine) concurrentTaskCount(ctx context.Context, kind string) (int, error) {
	count := 0
	for _, status := range []store.MotivationalTaskStatus{
		store.MotivationalTaskGenerated, store.MotivationalTaskQueued,
		store.MotivationalTaskSpawned, store.MotivationalTaskActive,
	} {
		tasks, err := e.store.MotivationalTasks().ListByStatus(ctx, status)
		if err != nil {
			return 0, err
		}
		for _, t := range tasks {
			if t.MotivationType == kind {
				count++
			}
		}
	}
	return count, nil
}

// spawn converts the winning drive into a workflow, runs it, persists the
// MotivationalTask, and folds the outcome back into the drive.
func (e *Engine) spawn(ctx context.Context, ms *store.MotivationalState, arbitrationScore float64) error {
	prompt := promptForDrive(ms)

	task, err := e.store.MotivationalTasks().Create(ctx, ms.Kind, prompt, ms.Urgency, arbitrationScore)
	if err != nil {
		return err
	}

	result, runErr := e.runner.Run(ctx, orchestrator.WorkflowInput{Kind: orchestrator.InputUserPrompt, Prompt: prompt})

	if threadID := e.runner.ThoughtTreeID(); threadID != "" {
		if err := e.store.MotivationalTasks().AttachThoughtTree(ctx, task.ID, threadID); err != nil {
			return err
		}
	}

	status := store.MotivationalTaskCompleted
	outcomeScore := 1.0
	satisfactionGain := 0.3
	success := runErr == nil && result.Success
	if !success {
		status = store.MotivationalTaskFailed
		outcomeScore = 0.0
		satisfactionGain = 0.05 // a failed attempt still registers as "tried"
	}
	if err := e.store.MotivationalTasks().Complete(ctx, task.ID, status, outcomeScore, satisfactionGain); err != nil {
		return err
	}

	return e.feedback(ctx, ms.Kind, success, satisfactionGain, nowUTC())
}

// feedback applies spec.md §4.6 step 6: satisfaction rises by the gain,
// success/failure counts bump, success rate recomputes, and
// last-satisfied/last-triggered update.
func (e *Engine) feedback(ctx context.Context, kind string, success bool, satisfactionGain float64, at time.Time) error {
	ms, err := e.store.MotivationalStates().Get(ctx, kind)
	if err != nil {
		return err
	}

	ms.Satisfaction = clamp01(ms.Satisfaction + satisfactionGain)
	if success {
		ms.SuccessCount++
	} else {
		ms.FailureCount++
	}
	total := ms.SuccessCount + ms.FailureCount
	if total > 0 {
		ms.SuccessRate = float64(ms.SuccessCount) / float64(total)
	}
	ms.LastTriggeredAt = &at
	ms.LastSatisfiedAt = &at

	return e.store.MotivationalStates().Upsert(ctx, ms)
}

// Boost applies an operator-initiated urgency boost outside the normal
// tick cycle, per spec.md §4.6's Boost API.
func (e *Engine) Boost(ctx context.Context, motivationType string, amount float64, reason string, metadata map[string]any) error {
	ms, err := e.store.MotivationalStates().Get(ctx, motivationType)
	if err != nil {
		return err
	}

	ms.Urgency = clamp01(ms.Urgency + amount)
	if ms.Metadata == nil {
		ms.Metadata = map[string]any{}
	}
	ms.Metadata["last_boost_reason"] = reason
	ms.Metadata["last_boost_amount"] = amount
	for k, v := range metadata {
		ms.Metadata[k] = v
	}

	return e.store.MotivationalStates().Upsert(ctx, ms)
}

// Running reports whether the tick loop is currently active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopCh != nil
}

// LastTick reports when the most recent tick started, or when the engine
// was created or last started if no tick has run since.
func (e *Engine) LastTick() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastTick
}

// EngineConfig mirrors config.MotivationalConfig's tunables, returned by
// Config and accepted by UpdateConfig so callers never need to reach
// into unexported engine state to read or change the arbitration knobs.
type EngineConfig struct {
	TickInterval             string
	MinArbitrationThreshold  float64
	MaxConcurrentTasksPerDrive int
	SatisfactionDecayEpsilon float64
	SafetyGateEnabled        bool
	ArbitrationWeights       config.ArbitrationWeights
}

// Config returns the engine's current tunables.
func (e *Engine) Config() EngineConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EngineConfig{
		TickInterval:               e.tickInterval.String(),
		MinArbitrationThreshold:    e.minThreshold,
		MaxConcurrentTasksPerDrive: e.maxConcurrentPerDrive,
		SatisfactionDecayEpsilon:   e.satisfactionEpsilon,
		SafetyGateEnabled:          e.safetyGateEnabled,
		ArbitrationWeights:         e.weights,
	}
}

// UpdateConfig applies new arbitration tunables. A changed TickInterval
// only takes effect on the next Start (the running ticker keeps its
// existing period), since retiming a live time.Ticker from another
// goroutine would race the tick loop.
func (e *Engine) UpdateConfig(cfg config.MotivationalConfig) error {
	interval, err := time.ParseDuration(cfg.TickInterval)
	if err != nil {
		return errs.Wrap(errs.KindValidation, "parse motivational tick interval", err)
	}

	maxConcurrent := cfg.MaxConcurrentTasksPerDrive
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentTasksPerDrive
	}
	safetyGate := cfg.SafetyGate == nil || *cfg.SafetyGate

	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickInterval = interval
	e.minThreshold = cfg.MinArbitrationThreshold
	e.maxConcurrentPerDrive = maxConcurrent
	e.satisfactionEpsilon = cfg.SatisfactionDecayEpsilon
	e.safetyGateEnabled = safetyGate
	e.weights = cfg.ArbitrationWeights
	return nil
}

func nowUTC() time.Time { return time.Now().UTC() }
