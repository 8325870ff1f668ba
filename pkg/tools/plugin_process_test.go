package tools

import (
	"context"
	"testing"

	"github.com/nyxcore/orchestrator/pkg/config"
)

func TestPluginProcessTool_GetInfo(t *testing.T) {
	tool := NewPluginProcessTool(config.PluginProcessConfig{
		Name:        "fetch_ticket",
		Description: "Look up a ticket in the issue tracker.",
		Path:        "/usr/local/bin/nyx-ticket-plugin",
	})

	if tool.GetName() != "fetch_ticket" {
		t.Errorf("GetName() = %q, want fetch_ticket", tool.GetName())
	}
	if tool.GetDescription() == "" {
		t.Error("GetDescription() returned empty string")
	}

	info := tool.GetInfo()
	if info.Name != "fetch_ticket" {
		t.Errorf("GetInfo().Name = %q, want fetch_ticket", info.Name)
	}
	if info.ServerURL != "plugin-process:/usr/local/bin/nyx-ticket-plugin" {
		t.Errorf("GetInfo().ServerURL = %q", info.ServerURL)
	}
}

func TestPluginProcessTool_ExecuteFailsForMissingBinary(t *testing.T) {
	tool := NewPluginProcessTool(config.PluginProcessConfig{
		Name: "broken_plugin",
		Path: "/nonexistent/path/to/a/plugin/binary",
	})
	defer tool.Close()

	result, err := tool.Execute(context.Background(), map[string]interface{}{"query": "anything"})
	if err == nil {
		t.Fatal("Execute() with a nonexistent plugin binary returned no error")
	}
	if result.Success {
		t.Error("Execute() result.Success = true, want false")
	}
	if result.ToolName != "broken_plugin" {
		t.Errorf("result.ToolName = %q, want broken_plugin", result.ToolName)
	}
}

func TestNewLocalToolSourceFromConfig_RegistersPluginProcesses(t *testing.T) {
	source, err := NewLocalToolSourceFromConfig(config.ToolsConfig{
		WorkDir: ".",
		PluginProcesses: []config.PluginProcessConfig{
			{Name: "custom_lookup", Description: "custom", Path: "/bin/true"},
		},
	})
	if err != nil {
		t.Fatalf("NewLocalToolSourceFromConfig() error = %v", err)
	}

	if _, ok := source.GetTool("custom_lookup"); !ok {
		t.Error("expected custom_lookup tool to be registered")
	}
}
