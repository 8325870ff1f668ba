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

package orchestrator

import "strings"

// Level is a {low, medium, high, critical} rating shared by every
// complexity dimension and the overall score.
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Complexity is the eight-dimension score from spec.md §4.5, plus the
// aggregated Overall level.
type Complexity struct {
	Cognitive          Level
	Technical          Level
	Coordination       Level
	Data               Level
	TimeSensitivity    Level
	QualityRequirements Level
	ScopeBreadth       Level
	Risk               Level
	Overall            Level
}

func (c Complexity) dimensions() [8]Level {
	return [8]Level{c.Cognitive, c.Technical, c.Coordination, c.Data, c.TimeSensitivity, c.QualityRequirements, c.ScopeBreadth, c.Risk}
}

// AggregateOverall applies spec.md §4.5's rule: critical if any dimension
// is critical or >= 4 are high; high if >= 2 high; medium if >= 1 high or
// >= 4 medium; else low.
func (c *Complexity) AggregateOverall() {
	var high, medium, critical int
	for _, d := range c.dimensions() {
		switch d {
		case LevelCritical:
			critical++
		case LevelHigh:
			high++
		case LevelMedium:
			medium++
		}
	}

	switch {
	case critical > 0 || high >= 4:
		c.Overall = LevelCritical
	case high >= 2:
		c.Overall = LevelHigh
	case high >= 1 || medium >= 4:
		c.Overall = LevelMedium
	default:
		c.Overall = LevelLow
	}
}

// ScoreInput is what heuristic scoring needs from a workflow request.
type ScoreInput struct {
	Prompt                  string
	RequireCouncilConsensus bool
	ValidationLevel         string
	DeliverableCount        int
}

var shortQuestionPrefixes = []string{"what is", "who is", "define"}

// ScoreComplexity applies the simple heuristics spec.md §4.5 names: a
// short "what is"/"who is"/"define" prompt pulls cognitive to low;
// council consensus or a critical validation level pulls quality/risk to
// high; many deliverables pull scope/coordination to high. Everything not
// named by a heuristic defaults to medium.
func ScoreComplexity(in ScoreInput) Complexity {
	c := Complexity{
		Cognitive: LevelMedium, Technical: LevelMedium, Coordination: LevelMedium,
		Data: LevelMedium, TimeSensitivity: LevelMedium, QualityRequirements: LevelMedium,
		ScopeBreadth: LevelMedium, Risk: LevelMedium,
	}

	lower := strings.ToLower(strings.TrimSpace(in.Prompt))
	for _, prefix := range shortQuestionPrefixes {
		if strings.HasPrefix(lower, prefix) && len(in.Prompt) < 80 {
			c.Cognitive = LevelLow
			break
		}
	}

	if in.RequireCouncilConsensus || in.ValidationLevel == "critical" {
		c.QualityRequirements = LevelHigh
		c.Risk = LevelHigh
	}

	if in.DeliverableCount >= 4 {
		c.ScopeBreadth = LevelHigh
		c.Coordination = LevelHigh
	}

	c.AggregateOverall()
	return c
}

// RequiresDecomposition reports whether the overall complexity is high
// enough that the top-level orchestrator should decompose rather than
// execute directly (spec.md §4.5's requires_decomposition()).
func (c Complexity) RequiresDecomposition() bool {
	return c.Overall == LevelHigh || c.Overall == LevelCritical
}

// ResourceEstimate is the base budget scaled by complexity.
type ResourceEstimate struct {
	MaxAgents   int
	MaxCostUSD  float64
	MaxWallTime string
	Confidence  float64
	Warnings    []string
}

func levelMultiplier(l Level) int {
	switch l {
	case LevelLow:
		return 1
	case LevelMedium:
		return 2
	default: // high, critical
		return 4
	}
}

// EstimateResources multiplies a base budget by {1,2,4} for {low,medium,
// high-or-critical} overall complexity, warning when the estimate
// approaches the configured caps.
func EstimateResources(overall Level, base BudgetLike, confidence float64) ResourceEstimate {
	mult := levelMultiplier(overall)
	est := ResourceEstimate{
		MaxAgents:   base.GetMaxAgents() * mult,
		MaxCostUSD:  base.GetMaxCostUSD() * float64(mult),
		MaxWallTime: base.GetMaxWallTime(),
		Confidence:  confidence,
	}

	if est.MaxCostUSD >= base.GetMaxCostUSD()*4*0.8 {
		est.Warnings = append(est.Warnings, "estimated cost approaches the configured budget cap")
	}
	return est
}

// BudgetLike decouples complexity estimation from config.BudgetConfig's
// concrete type, so this package does not need to import pkg/config.
type BudgetLike interface {
	GetMaxAgents() int
	GetMaxCostUSD() float64
	GetMaxWallTime() string
}
