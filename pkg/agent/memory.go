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

package agent

import (
	"container/list"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nyxcore/orchestrator/pkg/embedder"
	"github.com/nyxcore/orchestrator/pkg/errs"
	"github.com/nyxcore/orchestrator/pkg/llm"
	"github.com/nyxcore/orchestrator/pkg/store"
	"github.com/nyxcore/orchestrator/pkg/vector"
)

// MemoryScope is how widely an entry is visible.
type MemoryScope string

const (
	ScopeAgent       MemoryScope = "agent"
	ScopeSession     MemoryScope = "session"
	ScopeThoughtTree MemoryScope = "thought_tree"
	ScopeGlobal      MemoryScope = "global"
)

// MemoryKind is what an entry represents.
type MemoryKind string

const (
	KindContext       MemoryKind = "context"
	KindLearning      MemoryKind = "learning"
	KindCommunication MemoryKind = "communication"
	KindDecision      MemoryKind = "decision"
	KindPerformance   MemoryKind = "performance"
)

// MemoryEntry is one stored unit of memory.
type MemoryEntry struct {
	ID        string
	Scope     MemoryScope
	Kind      MemoryKind
	ScopeKey  string // the agent/session/thought-tree id the entry is scoped to; empty for global
	Content   string
	Metadata  map[string]any
}

func (e MemoryEntry) collection() string {
	return fmt.Sprintf("mem_%s_%s", e.Scope, e.ScopeKey)
}

// lruCache is a bounded, in-process front for the durable vector index. It
// never evicts stale data from the index, only from the fast path.
type lruCache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element
}

type lruItem struct {
	key   string
	entry MemoryEntry
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{capacity: capacity, ll: list.New(), items: map[string]*list.Element{}}
}

func (c *lruCache) get(key string) (MemoryEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return MemoryEntry{}, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*lruItem).entry, true
}

func (c *lruCache) put(key string, entry MemoryEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		el.Value.(*lruItem).entry = entry
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&lruItem{key: key, entry: entry})
	c.items[key] = el
	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*lruItem).key)
		}
	}
}

func (c *lruCache) remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.ll.Remove(el)
		delete(c.items, key)
	}
}

// MemorySpec is the Memory agent: store/retrieve/search/summarize/
// update/delete over entries typed by (scope, kind), with a bounded LRU
// cache fronting the durable vector index.
type MemorySpec struct {
	LLM      *llm.Client
	Vector   vector.Provider
	Embedder embedder.Embedder
	cacheOnce sync.Once
	cache    *lruCache
	cacheCap int // default 256
}

// Kind identifies this specialization for persistence.
func (*MemorySpec) Kind() store.AgentKind { return store.AgentKindMemory }

func (m *MemorySpec) lru() *lruCache {
	m.cacheOnce.Do(func() {
		cap := m.cacheCap
		if cap == 0 {
			cap = 256
		}
		m.cache = newLRUCache(cap)
	})
	return m.cache
}

// Run dispatches on Input.Context["operation"]: store, retrieve, search,
// summarize, update, delete.
func (m *MemorySpec) Run(ctx context.Context, h *Handle, input Input) (Result, error) {
	op, _ := input.Context["operation"].(string)
	switch op {
	case "store":
		return m.store(ctx, input)
	case "retrieve":
		return m.retrieve(ctx, input)
	case "search":
		return m.search(ctx, input)
	case "summarize":
		return m.summarize(ctx, h, input)
	case "update":
		return m.update(ctx, input)
	case "delete":
		return m.delete(ctx, input)
	default:
		return Result{}, errs.New(errs.KindValidation, fmt.Sprintf("unknown memory operation %q", op))
	}
}

func (m *MemorySpec) entryFromInput(input Input) MemoryEntry {
	scope, _ := input.Context["scope"].(string)
	kind, _ := input.Context["kind"].(string)
	scopeKey, _ := input.Context["scope_key"].(string)
	metadata, _ := input.Context["metadata"].(map[string]any)
	if metadata == nil {
		metadata = map[string]any{}
	}
	return MemoryEntry{
		Scope:    MemoryScope(scope),
		Kind:     MemoryKind(kind),
		ScopeKey: scopeKey,
		Content:  input.Prompt,
		Metadata: metadata,
	}
}

func (m *MemorySpec) store(ctx context.Context, input Input) (Result, error) {
	entry := m.entryFromInput(input)
	entry.ID = uuid.NewString()

	vec, err := m.Embedder.Embed(ctx, entry.Content)
	if err != nil {
		return Result{}, errs.Wrap(errs.KindInternal, "embed memory entry", err)
	}
	metadata := map[string]any{"kind": string(entry.Kind), "scope": string(entry.Scope), "content": entry.Content}
	for k, v := range entry.Metadata {
		metadata[k] = v
	}
	if err := m.Vector.Upsert(ctx, entry.collection(), entry.ID, vec, metadata); err != nil {
		return Result{}, errs.Wrap(errs.KindInternal, "upsert memory entry", err)
	}

	m.lru().put(entry.ID, entry)
	return Result{Success: true, Content: entry.ID, Metadata: map[string]any{"id": entry.ID}}, nil
}

func (m *MemorySpec) retrieve(ctx context.Context, input Input) (Result, error) {
	id, _ := input.Context["id"].(string)
	if id == "" {
		return Result{}, errs.New(errs.KindValidation, "retrieve requires context[\"id\"]")
	}
	if entry, ok := m.lru().get(id); ok {
		return Result{Success: true, Content: entry.Content, Metadata: entry.Metadata}, nil
	}
	return Result{Success: false, Error: "not found in fast path"}, nil
}

func (m *MemorySpec) search(ctx context.Context, input Input) (Result, error) {
	entry := m.entryFromInput(input)
	vec, err := m.Embedder.Embed(ctx, input.Prompt)
	if err != nil {
		return Result{}, errs.Wrap(errs.KindInternal, "embed memory query", err)
	}
	topK := 5
	if v, ok := input.Context["top_k"].(int); ok && v > 0 {
		topK = v
	}
	results, err := m.Vector.Search(ctx, entry.collection(), vec, topK)
	if err != nil {
		return Result{}, errs.Wrap(errs.KindInternal, "search memory", err)
	}

	var sb strings.Builder
	hits := make([]map[string]any, 0, len(results))
	for _, r := range results {
		fmt.Fprintf(&sb, "%s\n", r.Content)
		hits = append(hits, map[string]any{"id": r.ID, "score": r.Score, "content": r.Content})
	}
	return Result{Success: true, Content: sb.String(), Metadata: map[string]any{"hits": hits}}, nil
}

func (m *MemorySpec) summarize(ctx context.Context, h *Handle, input Input) (Result, error) {
	resp, err := m.LLM.Call(ctx, llm.CallRequest{
		System:        []llm.ContentBlock{{Text: "Summarize the following into a compact memory entry, preserving anything a future task would need."}},
		User:          []llm.ContentBlock{{Text: input.Prompt}},
		Temperature:   0.3,
		MaxTokens:     1024,
		ThoughtTreeID: input.ThoughtTreeID,
		AgentID:       h.ID(),
	})
	if err != nil {
		return Result{Usage: resp.Usage, CostUSD: resp.CostUSD}, err
	}
	return Result{Success: true, Content: resp.Text, Usage: resp.Usage, CostUSD: resp.CostUSD}, nil
}

func (m *MemorySpec) update(ctx context.Context, input Input) (Result, error) {
	id, _ := input.Context["id"].(string)
	if id == "" {
		return Result{}, errs.New(errs.KindValidation, "update requires context[\"id\"]")
	}
	entry := m.entryFromInput(input)
	entry.ID = id

	vec, err := m.Embedder.Embed(ctx, entry.Content)
	if err != nil {
		return Result{}, errs.Wrap(errs.KindInternal, "embed memory entry", err)
	}
	if err := m.Vector.Upsert(ctx, entry.collection(), entry.ID, vec, entry.Metadata); err != nil {
		return Result{}, errs.Wrap(errs.KindInternal, "update memory entry", err)
	}
	m.lru().put(entry.ID, entry)
	return Result{Success: true, Content: entry.ID}, nil
}

func (m *MemorySpec) delete(ctx context.Context, input Input) (Result, error) {
	id, _ := input.Context["id"].(string)
	if id == "" {
		return Result{}, errs.New(errs.KindValidation, "delete requires context[\"id\"]")
	}
	entry := m.entryFromInput(input)
	if err := m.Vector.Delete(ctx, entry.collection(), id); err != nil {
		return Result{}, errs.Wrap(errs.KindInternal, "delete memory entry", err)
	}
	m.lru().remove(id)
	return Result{Success: true}, nil
}
