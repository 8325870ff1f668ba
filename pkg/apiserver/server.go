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

// Package apiserver implements the runtime's HTTP surface: workflow
// execution/status, motivational engine control, and system health,
// behind a uniform JSON error envelope.
package apiserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nyxcore/orchestrator/pkg/config"
	"github.com/nyxcore/orchestrator/pkg/errs"
	"github.com/nyxcore/orchestrator/pkg/runtime"
)

// Server is the orchestrator's HTTP control plane: one listener mounting
// the workflow, motivational-engine, and system routes over a shared
// Runtime. A Server owns no business state of its own; every handler
// reads or mutates the Runtime it was built with.
type Server struct {
	rt          *runtime.Runtime
	version     string
	bearerToken string

	httpServer *http.Server
	log        *slog.Logger

	doneCh chan struct{}
}

// New builds a Server bound to rt, listening per cfg.Server. version is
// surfaced verbatim by GET /api/v1/system/info.
func New(rt *runtime.Runtime, cfg *config.ServerConfig, version string) (*Server, error) {
	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "parse server read_timeout", err)
	}
	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "parse server write_timeout", err)
	}

	s := &Server{
		rt:          rt,
		version:     version,
		bearerToken: cfg.BearerToken,
		log:         slog.Default(),
		doneCh:      make(chan struct{}),
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	return s, nil
}

// Start begins serving in a background goroutine and returns immediately.
// A failed listener is reported by closing doneCh; callers should pair
// Start with Wait or Stop to observe it.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("api server starting", "addr", s.httpServer.Addr)

	go func() {
		defer close(s.doneCh)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("api server exited", "error", err)
		}
	}()

	return nil
}

// Wait blocks until the server's listener goroutine has exited, whether
// through Stop or an unrecoverable listener error.
func (s *Server) Wait() {
	<-s.doneCh
}

// Stop gracefully shuts down the HTTP listener, waiting up to ctx's
// deadline for in-flight requests to drain.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown api server: %w", err)
	}
	<-s.doneCh
	return nil
}
