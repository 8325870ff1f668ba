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

// Package instruction renders the system/user prompt pairs agents send to
// the model. One template is registered per task_type (or council role)
// rather than building prompts through ad-hoc string concatenation.
package instruction

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"
)

// Pair is a rendered system/user prompt pair ready to hand to the LLM client.
type Pair struct {
	System string
	User   string
}

// Set holds named system/user template pairs, one per task_type or council
// role, and renders them against per-call data.
type Set struct {
	mu    sync.RWMutex
	pairs map[string]rawPair
}

type rawPair struct {
	system *template.Template
	user   *template.Template
}

// NewSet creates an empty template set.
func NewSet() *Set {
	return &Set{pairs: make(map[string]rawPair)}
}

// Register parses and stores a system/user template pair under name
// (a task_type like "research", or a council role like "risk_reviewer").
func (s *Set) Register(name, systemTemplate, userTemplate string) error {
	sysTmpl, err := template.New(name + ".system").Parse(systemTemplate)
	if err != nil {
		return fmt.Errorf("parse system template %q: %w", name, err)
	}
	userTmpl, err := template.New(name + ".user").Parse(userTemplate)
	if err != nil {
		return fmt.Errorf("parse user template %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairs[name] = rawPair{system: sysTmpl, user: userTmpl}
	return nil
}

// Render executes the named template pair against data, which is typically
// a struct or map carrying the task's title, description, prior context,
// and any council role briefing.
func (s *Set) Render(name string, data any) (Pair, error) {
	s.mu.RLock()
	pair, ok := s.pairs[name]
	s.mu.RUnlock()
	if !ok {
		return Pair{}, fmt.Errorf("no instruction template registered for %q", name)
	}

	var sysBuf, userBuf bytes.Buffer
	if err := pair.system.Execute(&sysBuf, data); err != nil {
		return Pair{}, fmt.Errorf("render system template %q: %w", name, err)
	}
	if err := pair.user.Execute(&userBuf, data); err != nil {
		return Pair{}, fmt.Errorf("render user template %q: %w", name, err)
	}

	return Pair{System: sysBuf.String(), User: userBuf.String()}, nil
}

// Names returns the registered template names.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.pairs))
	for name := range s.pairs {
		names = append(names, name)
	}
	return names
}
