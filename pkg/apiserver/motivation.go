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

package apiserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nyxcore/orchestrator/pkg/config"
	"github.com/nyxcore/orchestrator/pkg/errs"
)

func (s *Server) engineOrErr(w http.ResponseWriter, r *http.Request) bool {
	if s.rt.Motivation() == nil {
		writeError(w, r, errs.New(errs.KindMotivationalEngine, "motivational engine is disabled"))
		return false
	}
	return true
}

func (s *Server) handleEngineStart(w http.ResponseWriter, r *http.Request) {
	if !s.engineOrErr(w, r) {
		return
	}
	s.rt.Motivation().Start(context.Background())
	writeJSON(w, http.StatusOK, map[string]any{"running": true})
}

func (s *Server) handleEngineStop(w http.ResponseWriter, r *http.Request) {
	if !s.engineOrErr(w, r) {
		return
	}
	s.rt.Motivation().Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": false})
}

func (s *Server) handleEngineStatus(w http.ResponseWriter, r *http.Request) {
	if !s.engineOrErr(w, r) {
		return
	}
	eng := s.rt.Motivation()
	writeJSON(w, http.StatusOK, map[string]any{
		"running":   eng.Running(),
		"last_tick": eng.LastTick(),
		"config":    eng.Config(),
	})
}

type engineConfigRequest struct {
	TickInterval               string                    `json:"tick_interval"`
	MinArbitrationThreshold    float64                   `json:"min_arbitration_threshold"`
	MaxConcurrentTasksPerDrive int                       `json:"max_concurrent_tasks_per_drive"`
	ArbitrationWeights         config.ArbitrationWeights `json:"arbitration_weights"`
	SatisfactionDecayEpsilon   float64                   `json:"satisfaction_decay_epsilon"`
	SafetyGateEnabled          bool                      `json:"safety_gate_enabled"`
}

func (s *Server) handleEngineConfig(w http.ResponseWriter, r *http.Request) {
	if !s.engineOrErr(w, r) {
		return
	}

	var req engineConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	cfg := config.MotivationalConfig{
		TickInterval:               req.TickInterval,
		MinArbitrationThreshold:    req.MinArbitrationThreshold,
		MaxConcurrentTasksPerDrive: req.MaxConcurrentTasksPerDrive,
		ArbitrationWeights:         req.ArbitrationWeights,
		SatisfactionDecayEpsilon:   req.SatisfactionDecayEpsilon,
		SafetyGate:                 config.BoolPtr(req.SafetyGateEnabled),
	}

	if err := s.rt.Motivation().UpdateConfig(cfg); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, s.rt.Motivation().Config())
}

func (s *Server) handleListStates(w http.ResponseWriter, r *http.Request) {
	states, err := s.rt.Store().MotivationalStates().List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"states": states})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "type")

	state, err := s.rt.Store().MotivationalStates().Get(r.Context(), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type boostRequest struct {
	Amount   float64        `json:"amount"`
	Reason   string         `json:"reason"`
	Metadata map[string]any `json:"metadata"`
}

func (s *Server) handleBoostState(w http.ResponseWriter, r *http.Request) {
	if !s.engineOrErr(w, r) {
		return
	}
	kind := chi.URLParam(r, "type")

	var req boostRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.rt.Motivation().Boost(r.Context(), kind, req.Amount, req.Reason, req.Metadata); err != nil {
		writeError(w, r, err)
		return
	}

	state, err := s.rt.Store().MotivationalStates().Get(r.Context(), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}
