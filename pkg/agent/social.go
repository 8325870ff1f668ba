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
	"context"
	"fmt"
	"strings"

	"github.com/nyxcore/orchestrator/pkg/errs"
	"github.com/nyxcore/orchestrator/pkg/llm"
	"github.com/nyxcore/orchestrator/pkg/ratelimit"
	"github.com/nyxcore/orchestrator/pkg/store"
)

// SortStrategy is one way a feed can be paged through. The social monitor
// rotates through these across ticks rather than always reading the same
// slice of the feed.
type SortStrategy string

const (
	SortHot    SortStrategy = "hot"
	SortNew    SortStrategy = "new"
	SortTop    SortStrategy = "top"
	SortRising SortStrategy = "rising"
)

// DefaultSortRotation is used when a caller does not configure its own.
var DefaultSortRotation = []SortStrategy{SortHot, SortNew, SortTop, SortRising}

// FeedItem is one post a feed page yields.
type FeedItem struct {
	ID       string
	Platform string
	Author   string
	Content  string
	Metadata map[string]any
}

// FeedClient fetches pages from a social platform's feed. cursor is
// opaque, platform-specific pagination state; an empty cursor means "start
// of the page".
type FeedClient interface {
	Fetch(ctx context.Context, platform string, strategy SortStrategy, cursor string) (items []FeedItem, nextCursor string, err error)
}

// Poster publishes a reply or post to a platform.
type Poster interface {
	Post(ctx context.Context, platform, content string) error
}

// SocialSpec is the Social monitor: a task-kind agent whose own control
// loop rotates sort strategies, dedups against SocialSeenPostRepo,
// evaluates candidates with a fixed-grammar LLM prompt, and posts subject
// to per-hour and per-run limits.
type SocialSpec struct {
	LLM         *llm.Client
	Store       *store.Store
	RateLimiter ratelimit.RateLimiter
	Feed        FeedClient
	Poster      Poster
	Strategies  []SortStrategy
	PerRunLimit int // default 3
}

// Kind identifies this specialization for persistence.
func (SocialSpec) Kind() store.AgentKind { return store.AgentKindSocial }

func (s SocialSpec) strategies() []SortStrategy {
	if len(s.Strategies) > 0 {
		return s.Strategies
	}
	return DefaultSortRotation
}

func (s SocialSpec) perRunLimit() int {
	if s.PerRunLimit > 0 {
		return s.PerRunLimit
	}
	return 3
}

// paginationState is persisted in the drive's metadata between ticks so
// the rotation survives a process restart.
type paginationState struct {
	StrategyIndex int
	Cursor        string
}

func loadPaginationState(raw map[string]any) paginationState {
	var ps paginationState
	if v, ok := raw["strategy_index"].(int); ok {
		ps.StrategyIndex = v
	} else if v, ok := raw["strategy_index"].(float64); ok {
		ps.StrategyIndex = int(v)
	}
	if v, ok := raw["cursor"].(string); ok {
		ps.Cursor = v
	}
	return ps
}

// Run executes one control-loop tick: fetch the next page in rotation,
// filter already-seen items, evaluate each candidate, and post the ones
// that clear evaluation and the rate limits.
func (s SocialSpec) Run(ctx context.Context, h *Handle, input Input) (Result, error) {
	platform, _ := input.Context["platform"].(string)
	if platform == "" {
		return Result{}, errs.New(errs.KindValidation, "social monitor requires context[\"platform\"]")
	}

	strategies := s.strategies()
	raw, _ := input.Context["pagination_state"].(map[string]any)
	ps := loadPaginationState(raw)
	if ps.StrategyIndex >= len(strategies) {
		ps.StrategyIndex = 0
	}
	strategy := strategies[ps.StrategyIndex]

	items, nextCursor, err := s.Feed.Fetch(ctx, platform, strategy, ps.Cursor)
	if err != nil {
		return Result{}, errs.Wrap(errs.KindToolExecution, "fetch feed page", err)
	}

	var usage llm.Usage
	var costUSD float64
	posted := 0
	var postedIDs []string

	for _, item := range items {
		if posted >= s.perRunLimit() {
			break
		}
		seen, err := s.Store.SocialSeenPosts().HasSeen(ctx, platform, item.ID)
		if err != nil {
			return Result{}, err
		}
		if seen {
			continue
		}

		verdict, vUsage, vCost, err := s.evaluate(ctx, h, input, item)
		usage = addUsage(usage, vUsage)
		costUSD += vCost
		if err != nil {
			return Result{Usage: usage, CostUSD: costUSD}, err
		}

		if err := s.Store.SocialSeenPosts().MarkSeen(ctx, platform, item.ID); err != nil {
			return Result{Usage: usage, CostUSD: costUSD}, err
		}
		if !verdict.shouldPost {
			continue
		}

		check, err := s.RateLimiter.CheckAndRecord(ctx, ratelimit.ScopeUser, "social:"+platform, 0, 1)
		if err != nil {
			return Result{Usage: usage, CostUSD: costUSD}, errs.Wrap(errs.KindToolExecution, "check social post rate limit", err)
		}
		if check.IsExceeded() {
			break
		}

		if err := s.Poster.Post(ctx, platform, verdict.reply); err != nil {
			return Result{Usage: usage, CostUSD: costUSD}, errs.Wrap(errs.KindToolExecution, "post reply", err)
		}
		posted++
		postedIDs = append(postedIDs, item.ID)
	}

	nextStrategyIndex := (ps.StrategyIndex + 1) % len(strategies)
	nextCursorForRotation := nextCursor
	if nextCursor == "" {
		// exhausted this strategy's pages; restart it next time it comes
		// up in the rotation
		nextCursorForRotation = ""
	}

	return Result{
		Success: true,
		Content: fmt.Sprintf("posted %d of %d candidates via %s", posted, len(items), strategy),
		Usage:   usage,
		CostUSD: costUSD,
		Metadata: map[string]any{
			"posted_ids": postedIDs,
			"pagination_state": map[string]any{
				"strategy_index": nextStrategyIndex,
				"cursor":         nextCursorForRotation,
			},
		},
	}, nil
}

type evaluationVerdict struct {
	shouldPost bool
	reply      string
}

// evaluate asks the model for a fixed-grammar verdict: POST or SKIP on the
// first line, followed by the reply text (when posting) or a one-line
// reason (when skipping).
func (s SocialSpec) evaluate(ctx context.Context, h *Handle, input Input, item FeedItem) (evaluationVerdict, llm.Usage, float64, error) {
	prompt, _ := input.Context["evaluation_prompt"].(string)
	if prompt == "" {
		prompt = "Decide whether to reply to this post. Reply with POST or SKIP on the first line. If POST, follow with the reply text. If SKIP, follow with a one-line reason."
	}

	resp, err := s.LLM.Call(ctx, llm.CallRequest{
		System:        []llm.ContentBlock{{Text: prompt}},
		User:          []llm.ContentBlock{{Text: fmt.Sprintf("[%s] %s", item.Author, item.Content)}},
		Temperature:   0.4,
		MaxTokens:     512,
		ThoughtTreeID: input.ThoughtTreeID,
		AgentID:       h.ID(),
	})
	if err != nil {
		return evaluationVerdict{}, resp.Usage, resp.CostUSD, err
	}

	lines := strings.SplitN(strings.TrimSpace(resp.Text), "\n", 2)
	verdict := evaluationVerdict{}
	if strings.HasPrefix(strings.ToUpper(lines[0]), "POST") {
		verdict.shouldPost = true
		if len(lines) > 1 {
			verdict.reply = strings.TrimSpace(lines[1])
		}
	}
	return verdict, resp.Usage, resp.CostUSD, nil
}

func addUsage(a, b llm.Usage) llm.Usage {
	return llm.Usage{
		InputTokens:              a.InputTokens + b.InputTokens,
		OutputTokens:             a.OutputTokens + b.OutputTokens,
		CacheCreationInputTokens: a.CacheCreationInputTokens + b.CacheCreationInputTokens,
		CacheReadInputTokens:     a.CacheReadInputTokens + b.CacheReadInputTokens,
	}
}
