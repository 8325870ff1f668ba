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

// Command orchestratord is the long-running daemon: it loads a config
// file, builds a Runtime, starts the motivational engine (if enabled),
// and serves the HTTP control plane until signaled to stop.
//
// Usage:
//
//	orchestratord --config config.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/nyxcore/orchestrator/pkg/apiserver"
	"github.com/nyxcore/orchestrator/pkg/config"
	"github.com/nyxcore/orchestrator/pkg/runtime"
)

// CLI defines orchestratord's command-line interface.
type CLI struct {
	Config string `short:"c" help:"Path to config file." type:"path" required:""`
	Watch  bool   `help:"Watch the config file and hot-reload motivational engine tunables on change."`
}

func version() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			return info.Main.Version
		}
	}
	return "dev"
}

func main() {
	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name("orchestratord"),
		kong.Description("Nyx autonomous agent orchestrator daemon."),
		kong.UsageOnError(),
	)
	kctx.FatalIfErrorf(run(cli))
}

func run(cli CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutdown signal received")
		cancel()
	}()

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := rt.Shutdown(shutdownCtx); err != nil {
			slog.Error("runtime shutdown", "error", err)
		}
	}()

	cleaned, err := rt.StartupCleanup(ctx)
	if err != nil {
		return fmt.Errorf("startup cleanup: %w", err)
	}
	if cleaned > 0 {
		slog.Warn("startup cleanup terminated stale rows", "count", cleaned)
	}

	if eng := rt.Motivation(); eng != nil {
		eng.Start(ctx)
		defer eng.Stop()
		slog.Info("motivational engine started")
	}

	srv, err := apiserver.New(rt, &cfg.Server, version())
	if err != nil {
		return fmt.Errorf("build api server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start api server: %w", err)
	}

	if cli.Watch {
		go watchConfig(ctx, cli.Config, rt)
	}

	slog.Info("orchestratord ready", "addr", cfg.Server.Addr())

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	return srv.Stop(stopCtx)
}

// watchConfig reloads the motivational engine's tunables when the config
// file on disk changes. It never rebuilds the Runtime itself: database
// connections, the LLM client, and in-flight workflows are left untouched
// by a reload.
func watchConfig(ctx context.Context, path string, rt *runtime.Runtime) {
	watcher, err := config.NewWatcher(path)
	if err != nil {
		slog.Warn("config watch disabled", "error", err)
		return
	}
	defer watcher.Close()

	changes, err := watcher.Watch(ctx)
	if err != nil {
		slog.Warn("config watch failed to start", "error", err)
		return
	}

	for range changes {
		cfg, err := config.Load(path)
		if err != nil {
			slog.Error("config reload failed, keeping previous", "error", err)
			continue
		}
		if eng := rt.Motivation(); eng != nil {
			if err := eng.UpdateConfig(cfg.Motivational); err != nil {
				slog.Error("motivational config reload failed", "error", err)
				continue
			}
		}
		slog.Info("config reloaded", "path", path)
	}
}
