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
	"regexp"
	"strings"

	"github.com/nyxcore/orchestrator/pkg/llm"
	"github.com/nyxcore/orchestrator/pkg/store"
)

// ValidationSeverity ranks how serious a Rule's failure is. Only rules at
// or below the configured validation level run.
type ValidationSeverity int

const (
	SeverityBasic ValidationSeverity = iota
	SeverityStandard
	SeverityStrict
	SeverityCritical
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityBasic:
		return "basic"
	case SeverityStandard:
		return "standard"
	case SeverityStrict:
		return "strict"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity maps a config string to a ValidationSeverity, defaulting to
// SeverityStandard for an unrecognized value.
func ParseSeverity(raw string) ValidationSeverity {
	switch strings.ToLower(raw) {
	case "basic":
		return SeverityBasic
	case "strict":
		return SeverityStrict
	case "critical":
		return SeverityCritical
	default:
		return SeverityStandard
	}
}

// RuleCategory groups rules by what aspect of the content they check.
type RuleCategory string

const (
	CategoryStructural  RuleCategory = "structural"
	CategoryContent     RuleCategory = "content"
	CategorySafety      RuleCategory = "safety"
	CategoryLogic       RuleCategory = "logic"
	CategoryCompleteness RuleCategory = "completeness"
)

// RuleResult is the outcome of running a single Rule.
type RuleResult struct {
	RuleName string
	Category RuleCategory
	Severity ValidationSeverity
	Passed   bool
	Detail   string
}

// Rule is one check the bank can run against a candidate's content.
type Rule interface {
	Name() string
	Category() RuleCategory
	Severity() ValidationSeverity
	Check(content string) RuleResult
}

type funcRule struct {
	name     string
	category RuleCategory
	severity ValidationSeverity
	check    func(string) RuleResult
}

func (r funcRule) Name() string                 { return r.name }
func (r funcRule) Category() RuleCategory        { return r.category }
func (r funcRule) Severity() ValidationSeverity  { return r.severity }
func (r funcRule) Check(content string) RuleResult { return r.check(content) }

// NewRule builds a Rule from a plain check function, for specs that want to
// register ad-hoc rules without a dedicated type.
func NewRule(name string, category RuleCategory, severity ValidationSeverity, check func(content string) (bool, string)) Rule {
	return funcRule{
		name: name, category: category, severity: severity,
		check: func(content string) RuleResult {
			ok, detail := check(content)
			return RuleResult{RuleName: name, Category: category, Severity: severity, Passed: ok, Detail: detail}
		},
	}
}

// promptInjectionPatterns are the phrasings an attacker uses to try to make
// an LLM discard its system prompt and follow instructions buried in
// content it was only asked to process.
var promptInjectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+previous\s+instructions`),
	regexp.MustCompile(`(?i)forget\s+everything\s+above`),
	regexp.MustCompile(`(?i)act\s+as\s+if\s+you\s+are`),
	regexp.MustCompile(`(?i)pretend\s+to\s+be`),
	regexp.MustCompile(`(?i)you\s+are\s+now`),
	regexp.MustCompile(`(?i)new\s+instructions:`),
	regexp.MustCompile(`(?i)system\s+prompt:`),
	regexp.MustCompile(`(?i)override\s+safety`),
}

// sensitiveDataPatterns catches the shapes of data that should never appear
// verbatim in generated content: emails, phone numbers, SSNs, credit card
// numbers, and long alphanumeric strings shaped like an API key, plus the
// literal secret-material markers a leaked credential carries.
var sensitiveDataPatterns = map[string]*regexp.Regexp{
	"email":             regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	"phone":             regexp.MustCompile(`\b\d{3}-\d{3}-\d{4}\b`),
	"ssn":               regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	"credit_card":       regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`),
	"api_key":           regexp.MustCompile(`[A-Za-z0-9]{32,}`),
	"private_key_block": regexp.MustCompile(`BEGIN (RSA |EC )?PRIVATE KEY`),
}

// literalSecretMarkers are vendor-specific key-prefix signatures, caught
// separately from the generic api_key regex so the detail message names
// the vendor rather than just "looks like a long random string".
var literalSecretMarkers = []string{"sk-", "AKIA"}

func newCompletenessRule(requiredSections []string) Rule {
	return NewRule("completeness_check", CategoryCompleteness, SeverityStandard, func(c string) (bool, string) {
		if len(requiredSections) == 0 {
			return true, "no required sections specified"
		}
		lower := strings.ToLower(c)
		var missing []string
		for _, section := range requiredSections {
			if !strings.Contains(lower, strings.ToLower(section)) {
				missing = append(missing, section)
			}
		}
		if len(missing) > 0 {
			return false, fmt.Sprintf("missing required sections: %v", missing)
		}
		return true, ""
	})
}

// DefaultRuleBank is the set of structural, content, safety, logic, and
// completeness checks every validator carries unless overridden.
func DefaultRuleBank() []Rule {
	return []Rule{
		NewRule("non_empty", CategoryStructural, SeverityBasic, func(c string) (bool, string) {
			if strings.TrimSpace(c) == "" {
				return false, "content is empty"
			}
			return true, ""
		}),
		NewRule("no_placeholder_markers", CategoryContent, SeverityStandard, func(c string) (bool, string) {
			for _, marker := range []string{"TODO", "FIXME", "[insert", "lorem ipsum"} {
				if strings.Contains(strings.ToLower(c), strings.ToLower(marker)) {
					return false, fmt.Sprintf("contains placeholder marker %q", marker)
				}
			}
			return true, ""
		}),
		NewRule("prompt_injection", CategorySafety, SeverityCritical, func(c string) (bool, string) {
			var detected []string
			for _, pattern := range promptInjectionPatterns {
				if pattern.MatchString(c) {
					detected = append(detected, pattern.String())
				}
			}
			if len(detected) > 0 {
				return false, fmt.Sprintf("potential prompt injection detected: %v", detected)
			}
			return true, ""
		}),
		NewRule("sensitive_data", CategorySafety, SeverityCritical, func(c string) (bool, string) {
			for _, marker := range literalSecretMarkers {
				if strings.Contains(c, marker) {
					return false, fmt.Sprintf("appears to echo a secret matching %q", marker)
				}
			}
			var detected []string
			for name, pattern := range sensitiveDataPatterns {
				if pattern.MatchString(c) {
					detected = append(detected, name)
				}
			}
			if len(detected) > 0 {
				return false, fmt.Sprintf("sensitive data detected: %v", detected)
			}
			return true, ""
		}),
		NewRule("consistency_check", CategoryLogic, SeverityStandard, func(c string) (bool, string) {
			return true, "basic consistency check passed"
		}),
		newCompletenessRule(nil),
	}
}

// ValidatorSpec is the Validator agent: runs every Rule at or below the
// configured level, then optionally an LLM holistic check.
type ValidatorSpec struct {
	LLM              *llm.Client
	Rules            []Rule
	Level            ValidationSeverity
	HolisticCheck    bool
	RequiredSections []string
}

// Kind identifies this specialization for persistence.
func (ValidatorSpec) Kind() store.AgentKind { return store.AgentKindValidator }

func (v ValidatorSpec) rules() []Rule {
	if len(v.Rules) > 0 {
		return v.Rules
	}
	bank := DefaultRuleBank()
	if len(v.RequiredSections) > 0 {
		for i, rule := range bank {
			if rule.Name() == "completeness_check" {
				bank[i] = newCompletenessRule(v.RequiredSections)
			}
		}
	}
	return bank
}

// Run checks the input's content (Input.Prompt) against every applicable
// rule. Overall pass requires every critical and strict rule to pass;
// basic/standard failures are reported but do not flip the overall verdict.
func (v ValidatorSpec) Run(ctx context.Context, h *Handle, input Input) (Result, error) {
	var results []RuleResult
	overall := true

	for _, rule := range v.rules() {
		if rule.Severity() > v.Level {
			continue
		}
		res := rule.Check(input.Prompt)
		results = append(results, res)
		if !res.Passed && (rule.Severity() == SeverityCritical || rule.Severity() == SeverityStrict) {
			overall = false
		}
	}

	var holistic string
	var usage llm.Usage
	var costUSD float64
	if v.HolisticCheck && v.LLM != nil {
		resp, err := v.LLM.Call(ctx, llm.CallRequest{
			System: []llm.ContentBlock{{Text: "Assess whether the following content is coherent, complete, and fit for purpose. Reply with PASS or FAIL on the first line, then a one-sentence reason."}},
			User:   []llm.ContentBlock{{Text: input.Prompt}},
			Temperature:   0,
			MaxTokens:     256,
			ThoughtTreeID: input.ThoughtTreeID,
			AgentID:       h.ID(),
		})
		usage, costUSD = resp.Usage, resp.CostUSD
		if err != nil {
			return Result{Usage: usage, CostUSD: costUSD}, err
		}
		holistic = resp.Text
		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(holistic)), "FAIL") {
			overall = false
		}
	}

	return Result{
		Success: overall,
		Content: summarizeRuleResults(results),
		Usage:   usage,
		CostUSD: costUSD,
		Metadata: map[string]any{
			"rule_results":   results,
			"level":          v.Level.String(),
			"holistic_check": holistic,
		},
	}, nil
}

func summarizeRuleResults(results []RuleResult) string {
	var sb strings.Builder
	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(&sb, "[%s] %s (%s/%s)", status, r.RuleName, r.Category, r.Severity)
		if r.Detail != "" {
			fmt.Fprintf(&sb, ": %s", r.Detail)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
