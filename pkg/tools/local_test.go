package tools

import (
	"context"
	"testing"

	"github.com/nyxcore/orchestrator/pkg/config"
)

func TestNewLocalToolSource(t *testing.T) {
	source := NewLocalToolSource("test-source")
	if source.GetName() != "test-source" {
		t.Errorf("GetName() = %v, want 'test-source'", source.GetName())
	}
	if source.GetType() != "local" {
		t.Errorf("GetType() = %v, want 'local'", source.GetType())
	}
}

func TestLocalToolSource_GetName(t *testing.T) {
	tests := []struct {
		name       string
		sourceName string
		expected   string
	}{
		{name: "custom name", sourceName: "my-tools", expected: "my-tools"},
		{name: "empty name", sourceName: "", expected: "local"},
		{name: "special characters", sourceName: "tools-v1.0", expected: "tools-v1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := NewLocalToolSource(tt.sourceName)
			if result := source.GetName(); result != tt.expected {
				t.Errorf("GetName() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestLocalToolSource_RegisterTool(t *testing.T) {
	source := NewLocalToolSource("test-source")

	tool := NewReadFileTool(".")
	if err := source.RegisterTool(tool); err != nil {
		t.Fatalf("RegisterTool() error = %v", err)
	}

	registeredTool, exists := source.GetTool("read_file")
	if !exists {
		t.Error("Expected tool to be registered")
	}
	if registeredTool != tool {
		t.Error("Expected registered tool to match")
	}

	if err := source.RegisterTool(NewWebRequestTool()); err != nil {
		t.Fatalf("RegisterTool() error = %v", err)
	}

	if tools := source.ListTools(); len(tools) != 2 {
		t.Errorf("Expected 2 tools, got %d", len(tools))
	}

	if err := source.RegisterTool(tool); err == nil {
		t.Error("Expected error when registering duplicate tool")
	}
}

func TestLocalToolSource_ListTools(t *testing.T) {
	source := NewLocalToolSource("test-source")

	if tools := source.ListTools(); len(tools) != 0 {
		t.Errorf("Expected 0 tools initially, got %d", len(tools))
	}

	source.RegisterTool(NewReadFileTool("."))
	source.RegisterTool(NewWebRequestTool())

	tools := source.ListTools()
	if len(tools) != 2 {
		t.Errorf("Expected 2 tools, got %d", len(tools))
	}

	toolNames := make(map[string]bool)
	for _, tool := range tools {
		toolNames[tool.Name] = true
		if tool.ServerURL != "test-source" {
			t.Errorf("Expected ServerURL 'test-source' for tool %s, got %s", tool.Name, tool.ServerURL)
		}
	}
	if !toolNames["read_file"] || !toolNames["web_request"] {
		t.Error("Expected read_file and web_request to be listed")
	}
}

func TestLocalToolSource_GetTool(t *testing.T) {
	source := NewLocalToolSource("test-source")

	if _, exists := source.GetTool("non-existent"); exists {
		t.Error("Expected false when getting non-existent tool")
	}

	tool := NewReadFileTool(".")
	source.RegisterTool(tool)

	registeredTool, exists := source.GetTool("read_file")
	if !exists || registeredTool != tool {
		t.Error("Expected returned tool to match registered tool")
	}

	if _, exists := source.GetTool("READ_FILE"); exists {
		t.Error("Expected false when getting tool with different case")
	}
}

func TestLocalToolSource_RemoveTool(t *testing.T) {
	source := NewLocalToolSource("test-source")

	if err := source.RemoveTool("non-existent"); err == nil {
		t.Error("Expected error when removing non-existent tool")
	}

	source.RegisterTool(NewReadFileTool("."))

	if err := source.RemoveTool("read_file"); err != nil {
		t.Fatalf("RemoveTool() error = %v", err)
	}
	if _, exists := source.GetTool("read_file"); exists {
		t.Error("Expected tool to be removed")
	}
	if tools := source.ListTools(); len(tools) != 0 {
		t.Errorf("Expected 0 tools after removal, got %d", len(tools))
	}
}

func TestLocalToolSource_DiscoverTools(t *testing.T) {
	source := NewLocalToolSource("test-source")
	if err := source.DiscoverTools(context.Background()); err != nil {
		t.Errorf("DiscoverTools() error = %v", err)
	}
}

func TestNewLocalToolSourceFromConfig_ReadOnlyByDefault(t *testing.T) {
	cfg := config.ToolsConfig{}
	cfg.WriteEnabled = config.BoolPtr(false)

	source, err := NewLocalToolSourceFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewLocalToolSourceFromConfig() error = %v", err)
	}

	tools := source.ListTools()
	if len(tools) != 2 {
		t.Fatalf("Expected 2 tools (read_file, web_request) by default, got %d", len(tools))
	}

	if _, exists := source.GetTool("write_file"); exists {
		t.Error("write_file should not be registered when write_enabled is false")
	}
	if _, exists := source.GetTool("execute_command"); exists {
		t.Error("execute_command should not be registered when write_enabled is false")
	}
}

func TestNewLocalToolSourceFromConfig_WriteEnabled(t *testing.T) {
	cfg := config.ToolsConfig{
		WriteEnabled:         config.BoolPtr(true),
		AllowedShellCommands: []string{"echo"},
	}

	source, err := NewLocalToolSourceFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewLocalToolSourceFromConfig() error = %v", err)
	}

	for _, name := range []string{"read_file", "web_request", "write_file", "execute_command"} {
		if _, exists := source.GetTool(name); !exists {
			t.Errorf("expected tool %q to be registered", name)
		}
	}
}

func TestNewLocalToolSourceFromConfig_WriteEnabledNoShellCommands(t *testing.T) {
	cfg := config.ToolsConfig{WriteEnabled: config.BoolPtr(true)}

	source, err := NewLocalToolSourceFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewLocalToolSourceFromConfig() error = %v", err)
	}

	if _, exists := source.GetTool("write_file"); !exists {
		t.Error("write_file should be registered when write_enabled is true")
	}
	if _, exists := source.GetTool("execute_command"); exists {
		t.Error("execute_command should stay disabled with no allowed_shell_commands")
	}
}
