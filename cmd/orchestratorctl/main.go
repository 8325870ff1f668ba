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

// Command orchestratorctl is a thin HTTP client for a running
// orchestratord, talking the same JSON envelope pkg/apiserver serves.
//
// Usage:
//
//	orchestratorctl execute "draft the Q3 roadmap"
//	orchestratorctl workflow status <id>
//	orchestratorctl engine status
//	orchestratorctl drives boost exploration --amount 0.3 --reason manual
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

// CLI defines orchestratorctl's command-line interface.
type CLI struct {
	Server string `help:"Base URL of the orchestratord API." default:"http://localhost:8080" env:"NYX_SERVER"`
	Token  string `help:"Bearer token for the API." env:"NYX_API_KEY"`

	Execute  ExecuteCmd  `cmd:"" help:"Run a workflow to completion and print the result."`
	Workflow WorkflowCmd `cmd:"" help:"Inspect workflows." name:"workflow"`
	Engine   EngineCmd   `cmd:"" help:"Control the motivational engine."`
	Drives   DrivesCmd   `cmd:"" help:"Inspect or boost motivational drives."`
	Health   HealthCmd   `cmd:"" help:"Check daemon health."`
	Status   StatusCmd   `cmd:"" help:"Show daemon status and cumulative LLM spend."`
	Info     InfoCmd     `cmd:"" help:"Show daemon build info."`
}

func main() {
	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name("orchestratorctl"),
		kong.Description("Client for the Nyx autonomous agent orchestrator."),
		kong.UsageOnError(),
	)
	err := kctx.Run(&cli)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
