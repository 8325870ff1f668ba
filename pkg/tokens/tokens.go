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

// Package tokens counts tokens for cost accounting and context-fitting.
// It prefers a real tiktoken encoding and falls back to a length/4 estimate
// when no encoding is available for a model, matching the estimate used to
// keep failed-call cost ledgers approximately consistent.
package tokens

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens for a specific model's encoding.
type Counter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// NewCounter returns a Counter for the given model, falling back to the
// cl100k_base encoding when the model has no registered tiktoken mapping.
func NewCounter(model string) (*Counter, error) {
	cacheMu.RLock()
	cached, ok := encodingCache[model]
	cacheMu.RUnlock()
	if ok {
		return &Counter{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = encoding
	cacheMu.Unlock()

	return &Counter{encoding: encoding, model: model}, nil
}

// Count returns the exact token count for text using the counter's encoding.
func (c *Counter) Count(text string) int {
	if c == nil || c.encoding == nil {
		return Estimate(text)
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// Model returns the model name this counter was built for.
func (c *Counter) Model() string { return c.model }

// Estimate provides the length/4 fallback used when no tiktoken encoding is
// available, or when a call fails before a real count can be taken.
func Estimate(text string) int {
	return len(text) / 4
}
