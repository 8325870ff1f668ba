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
	"net/http"
	"time"

	"github.com/nyxcore/orchestrator/pkg/llm"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "timestamp": time.Now().UTC()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var snap llm.Snapshot
	if stats := s.rt.CacheStats(); stats != nil {
		snap = stats.Snapshot()
	}

	motivationRunning := false
	if eng := s.rt.Motivation(); eng != nil {
		motivationRunning = eng.Running()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":                "ok",
		"motivation_running":    motivationRunning,
		"cumulative_llm_calls":  snap.TotalCalls,
		"cumulative_cache_hits": snap.CacheHits,
		"cumulative_cost_usd":   snap.TotalCostUSD,
		"cumulative_saved_usd":  snap.SavedCostUSD,
		"timestamp":             time.Now().UTC(),
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      "nyx-orchestrator",
		"version":   s.version,
		"timestamp": time.Now().UTC(),
	})
}
