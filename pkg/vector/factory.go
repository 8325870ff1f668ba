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

// Package vector provides an in-process vector store for the memory agent's
// semantic search index. Only the chromem-go backend is wired: this runtime
// has no distributed deployment story that would justify an external vector
// service, and chromem keeps the memory agent's storage entirely in-process
// like the rest of the agent runtime.
package vector

import (
	"context"
	"fmt"
)

// Result is a single vector search hit.
type Result struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]any
}

// Provider is a vector store: upsert, similarity search, delete.
type Provider interface {
	Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)
	SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error)
	Delete(ctx context.Context, collection string, id string) error
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error
	CreateCollection(ctx context.Context, collection string, vectorDimension int) error
	DeleteCollection(ctx context.Context, collection string) error
	Name() string
	Close() error
}

// NilProvider is a no-op Provider used when no vector store is configured;
// search always returns empty rather than failing so the memory agent can
// still answer `store`/`retrieve` without semantic `search`.
type NilProvider struct{}

func (NilProvider) Upsert(context.Context, string, string, []float32, map[string]any) error {
	return nil
}
func (NilProvider) Search(context.Context, string, []float32, int) ([]Result, error) {
	return nil, nil
}
func (NilProvider) SearchWithFilter(context.Context, string, []float32, int, map[string]any) ([]Result, error) {
	return nil, nil
}
func (NilProvider) Delete(context.Context, string, string) error            { return nil }
func (NilProvider) DeleteByFilter(context.Context, string, map[string]any) error { return nil }
func (NilProvider) CreateCollection(context.Context, string, int) error     { return nil }
func (NilProvider) DeleteCollection(context.Context, string) error          { return nil }
func (NilProvider) Name() string                                            { return "nil" }
func (NilProvider) Close() error                                            { return nil }

// ProviderConfig configures the memory agent's vector store.
type ProviderConfig struct {
	Chromem *ChromemConfig `yaml:"chromem,omitempty"`
}

// SetDefaults applies default values.
func (c *ProviderConfig) SetDefaults() {
	if c.Chromem == nil {
		c.Chromem = &ChromemConfig{}
	}
}

// NewProvider creates the configured vector provider, or NilProvider if cfg is nil.
func NewProvider(cfg *ProviderConfig) (Provider, error) {
	if cfg == nil {
		return NilProvider{}, nil
	}
	chromemCfg := ChromemConfig{}
	if cfg.Chromem != nil {
		chromemCfg = *cfg.Chromem
	}
	p, err := NewChromemProvider(chromemCfg)
	if err != nil {
		return nil, fmt.Errorf("create chromem provider: %w", err)
	}
	return p, nil
}
