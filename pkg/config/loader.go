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

package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Load reads a YAML config file, expands ${VAR} references against the
// environment, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		slog.Warn("failed to load .env files", "error", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var generic map[string]interface{}
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	expanded := ExpandEnvVarsInData(generic)

	reEncoded, err := yaml.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("re-encode expanded config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(reEncoded, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Watcher watches a config file for changes and signals reload candidates.
// It watches the file's directory and debounces events for the file.
type Watcher struct {
	path string

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// NewWatcher creates a Watcher for the config file at path.
func NewWatcher(path string) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	return &Watcher{path: absPath}, nil
}

// Watch starts watching the config file for writes/creates and emits on the
// returned channel (debounced, buffered) each time the file changes.
func (w *Watcher) Watch(ctx context.Context) (<-chan struct{}, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, fmt.Errorf("watcher is closed")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	w.watcher = fw

	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch directory %s: %w", dir, err)
	}

	ch := make(chan struct{}, 1)
	go w.loop(ctx, fw, file, ch)

	slog.Info("watching config file for changes", "path", w.path)
	return ch, nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, file string, ch chan<- struct{}) {
	defer close(ch)
	defer fw.Close()

	var debounce *time.Timer
	const delay = 150 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != file {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(delay, func() {
					select {
					case ch <- struct{}{}:
					default:
					}
				})
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", "error", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.watcher != nil {
		err := w.watcher.Close()
		w.watcher = nil
		return err
	}
	return nil
}
