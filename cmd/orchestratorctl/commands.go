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

package main

import "fmt"

// ExecuteCmd runs a workflow to completion.
type ExecuteCmd struct {
	Prompt       string `arg:"" help:"The goal or prompt to execute."`
	Kind         string `help:"Input kind (user_prompt, structured_task, goal_workflow, ...)." default:"user_prompt"`
	Optimization string `help:"Optimization focus (speed, quality)."`
	Deliverables int    `name:"deliverables" help:"Requested deliverable count."`
	Council      bool   `name:"council" help:"Require council consensus."`
}

func (c *ExecuteCmd) Run(cli *CLI) error {
	client := newAPIClient(cli)

	req := map[string]any{
		"kind":                      c.Kind,
		"prompt":                    c.Prompt,
		"deliverable_count":         c.Deliverables,
		"require_council_consensus": c.Council,
		"optimization":              c.Optimization,
	}

	var resp map[string]any
	if err := client.post("/orchestrator/workflows/execute", req, &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

// WorkflowCmd groups workflow introspection subcommands.
type WorkflowCmd struct {
	Status     WorkflowStatusCmd     `cmd:"" help:"Show a workflow's status by id."`
	Active     WorkflowActiveCmd     `cmd:"" help:"List active workflows."`
	Strategies WorkflowStrategiesCmd `cmd:"" help:"List available top-level strategies."`
	InputTypes WorkflowInputTypesCmd `cmd:"" name:"input-types" help:"List recognized input kinds."`
}

type WorkflowStatusCmd struct {
	ID string `arg:""`
}

func (c *WorkflowStatusCmd) Run(cli *CLI) error {
	client := newAPIClient(cli)
	var resp map[string]any
	if err := client.get(fmt.Sprintf("/orchestrator/workflows/%s/status", c.ID), &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

type WorkflowActiveCmd struct {
	Limit  int `default:"50"`
	Offset int
}

func (c *WorkflowActiveCmd) Run(cli *CLI) error {
	client := newAPIClient(cli)
	var resp map[string]any
	path := fmt.Sprintf("/orchestrator/workflows/active?limit=%d&offset=%d", c.Limit, c.Offset)
	if err := client.get(path, &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

type WorkflowStrategiesCmd struct{}

func (c *WorkflowStrategiesCmd) Run(cli *CLI) error {
	client := newAPIClient(cli)
	var resp map[string]any
	if err := client.get("/orchestrator/strategies", &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

type WorkflowInputTypesCmd struct{}

func (c *WorkflowInputTypesCmd) Run(cli *CLI) error {
	client := newAPIClient(cli)
	var resp map[string]any
	if err := client.get("/orchestrator/input-types", &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

// EngineCmd groups motivational engine control subcommands.
type EngineCmd struct {
	Start  EngineStartCmd  `cmd:""`
	Stop   EngineStopCmd   `cmd:""`
	Status EngineStatusCmd `cmd:""`
	Config EngineConfigCmd `cmd:""`
}

type EngineStartCmd struct{}

func (c *EngineStartCmd) Run(cli *CLI) error {
	client := newAPIClient(cli)
	var resp map[string]any
	if err := client.post("/motivational/engine/start", nil, &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

type EngineStopCmd struct{}

func (c *EngineStopCmd) Run(cli *CLI) error {
	client := newAPIClient(cli)
	var resp map[string]any
	if err := client.post("/motivational/engine/stop", nil, &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

type EngineStatusCmd struct{}

func (c *EngineStatusCmd) Run(cli *CLI) error {
	client := newAPIClient(cli)
	var resp map[string]any
	if err := client.get("/motivational/engine/status", &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

type EngineConfigCmd struct {
	TickInterval            string  `name:"tick-interval"`
	MinArbitrationThreshold float64 `name:"min-arbitration-threshold"`
	MaxConcurrentPerDrive   int     `name:"max-concurrent-per-drive"`
	SatisfactionEpsilon     float64 `name:"satisfaction-epsilon"`
	SafetyGate              bool    `name:"safety-gate" default:"true"`
}

func (c *EngineConfigCmd) Run(cli *CLI) error {
	client := newAPIClient(cli)
	req := map[string]any{
		"tick_interval":                  c.TickInterval,
		"min_arbitration_threshold":      c.MinArbitrationThreshold,
		"max_concurrent_tasks_per_drive": c.MaxConcurrentPerDrive,
		"satisfaction_decay_epsilon":     c.SatisfactionEpsilon,
		"safety_gate_enabled":            c.SafetyGate,
	}
	var resp map[string]any
	if err := client.put("/motivational/engine/config", req, &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

// DrivesCmd groups motivational-state inspection and boosting.
type DrivesCmd struct {
	List  DrivesListCmd  `cmd:""`
	Get   DrivesGetCmd   `cmd:""`
	Boost DrivesBoostCmd `cmd:""`
}

type DrivesListCmd struct{}

func (c *DrivesListCmd) Run(cli *CLI) error {
	client := newAPIClient(cli)
	var resp map[string]any
	if err := client.get("/motivational/states", &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

type DrivesGetCmd struct {
	Type string `arg:""`
}

func (c *DrivesGetCmd) Run(cli *CLI) error {
	client := newAPIClient(cli)
	var resp map[string]any
	if err := client.get("/motivational/states/"+c.Type, &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

type DrivesBoostCmd struct {
	Type   string  `arg:""`
	Amount float64 `help:"Urgency boost amount, 0 to 1."`
	Reason string  `help:"Why this drive is being boosted."`
}

func (c *DrivesBoostCmd) Run(cli *CLI) error {
	client := newAPIClient(cli)
	req := map[string]any{"amount": c.Amount, "reason": c.Reason}
	var resp map[string]any
	if err := client.post("/motivational/states/"+c.Type+"/boost", req, &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

// HealthCmd checks GET /system/health.
type HealthCmd struct{}

func (c *HealthCmd) Run(cli *CLI) error {
	client := newAPIClient(cli)
	var resp map[string]any
	if err := client.get("/system/health", &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

// StatusCmd checks GET /system/status.
type StatusCmd struct{}

func (c *StatusCmd) Run(cli *CLI) error {
	client := newAPIClient(cli)
	var resp map[string]any
	if err := client.get("/system/status", &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

// InfoCmd checks GET /system/info.
type InfoCmd struct{}

func (c *InfoCmd) Run(cli *CLI) error {
	client := newAPIClient(cli)
	var resp map[string]any
	if err := client.get("/system/info", &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}
