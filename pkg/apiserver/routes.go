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
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nyxcore/orchestrator/pkg/errs"
	"github.com/nyxcore/orchestrator/pkg/observability"
)

var errMissingBearerToken = errs.New(errs.KindValidation, "missing or invalid bearer token")

// router builds the chi router mounted under /api/v1, per spec.md §6.
func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	obs := s.rt.Observability()
	r.Use(observability.HTTPMiddleware(obs.Tracer(), obs.Metrics()))
	if s.bearerToken != "" {
		r.Use(s.requireBearer)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/orchestrator", func(o chi.Router) {
			o.Post("/workflows/execute", s.handleExecuteWorkflow)
			o.Get("/workflows/{id}/status", s.handleWorkflowStatus)
			o.Get("/workflows/active", s.handleActiveWorkflows)
			o.Get("/strategies", s.handleStrategies)
			o.Get("/input-types", s.handleInputTypes)
		})

		api.Route("/motivational", func(m chi.Router) {
			m.Post("/engine/start", s.handleEngineStart)
			m.Post("/engine/stop", s.handleEngineStop)
			m.Put("/engine/config", s.handleEngineConfig)
			m.Get("/engine/status", s.handleEngineStatus)
			m.Get("/states", s.handleListStates)
			m.Get("/states/{type}", s.handleGetState)
			m.Post("/states/{type}/boost", s.handleBoostState)
		})

		api.Route("/system", func(sys chi.Router) {
			sys.Get("/health", s.handleHealth)
			sys.Get("/status", s.handleStatus)
			sys.Get("/info", s.handleInfo)
		})
	})

	return r
}

// requireBearer enforces NYX_API_KEY-style bearer auth on every route it
// wraps, in constant time, per spec.md §6's Environment section.
func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		auth := r.Header.Get("Authorization")
		if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
			writeUnauthorized(w, r, errMissingBearerToken)
			return
		}
		token := auth[len(prefix):]
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.bearerToken)) != 1 {
			writeUnauthorized(w, r, errMissingBearerToken)
			return
		}
		next.ServeHTTP(w, r)
	})
}
