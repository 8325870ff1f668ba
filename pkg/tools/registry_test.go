package tools

import (
	"context"
	"testing"

	"github.com/nyxcore/orchestrator/pkg/config"
)

// testTool is a minimal Tool used only to exercise the registry plumbing.
type testTool struct{ name string }

func (t *testTool) GetInfo() ToolInfo {
	return ToolInfo{Name: t.name, Description: "test tool"}
}
func (t *testTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	return ToolResult{Success: true, ToolName: t.name}, nil
}
func (t *testTool) GetName() string        { return t.name }
func (t *testTool) GetDescription() string { return "test tool" }

func newTestEntry(name string) ToolEntry {
	return ToolEntry{
		Tool:       &testTool{name: name},
		Source:     NewLocalToolSource("test-source"),
		SourceType: "local",
		Name:       name,
	}
}

func TestToolRegistry_Register(t *testing.T) {
	reg := NewToolRegistry()
	entry := newTestEntry("test-tool")

	if err := reg.Register("test-tool", entry); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	registeredEntry, exists := reg.Get("test-tool")
	if !exists {
		t.Error("Expected tool to be registered")
	}
	if registeredEntry.Tool.GetName() != "test-tool" {
		t.Error("Expected registered tool to match")
	}
}

func TestToolRegistry_Register_Duplicate(t *testing.T) {
	reg := NewToolRegistry()
	entry := newTestEntry("test-tool")

	if err := reg.Register("test-tool", entry); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := reg.Register("test-tool", entry); err == nil {
		t.Error("Expected error when registering duplicate tool")
	}
}

func TestToolRegistry_GetTool(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register("test-tool", newTestEntry("test-tool"))

	tool, err := reg.GetTool("test-tool")
	if err != nil {
		t.Fatalf("GetTool() error = %v", err)
	}
	if tool.GetName() != "test-tool" {
		t.Errorf("GetTool() name = %v, want 'test-tool'", tool.GetName())
	}

	if _, err := reg.GetTool("missing"); err == nil {
		t.Error("Expected error for missing tool")
	}
}

func TestToolRegistry_ListTools(t *testing.T) {
	reg := NewToolRegistry()
	if tools := reg.ListTools(); len(tools) != 0 {
		t.Errorf("Expected 0 tools initially, got %d", len(tools))
	}

	reg.Register("b-tool", newTestEntry("b-tool"))
	reg.Register("a-tool", newTestEntry("a-tool"))

	tools := reg.ListTools()
	if len(tools) != 2 {
		t.Fatalf("Expected 2 tools, got %d", len(tools))
	}
	if tools[0].Name != "a-tool" || tools[1].Name != "b-tool" {
		t.Errorf("Expected tools sorted by name, got %v, %v", tools[0].Name, tools[1].Name)
	}
}

func TestToolRegistry_RemoveSource(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register("test-tool", newTestEntry("test-tool"))

	if err := reg.RemoveSource("test-source"); err != nil {
		t.Fatalf("RemoveSource() error = %v", err)
	}
	if _, exists := reg.Get("test-tool"); exists {
		t.Error("Expected tool to be removed along with its source")
	}
}

func TestToolRegistry_ExecuteTool(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register("test-tool", newTestEntry("test-tool"))

	result, err := reg.ExecuteTool(context.Background(), "test-tool", nil)
	if err != nil {
		t.Fatalf("ExecuteTool() error = %v", err)
	}
	if !result.Success {
		t.Error("Expected successful execution")
	}

	if _, err := reg.ExecuteTool(context.Background(), "missing", nil); err == nil {
		t.Error("Expected error executing missing tool")
	}
}

func TestNewToolRegistryFromConfig(t *testing.T) {
	cfg := config.ToolsConfig{}
	cfg.WriteEnabled = config.BoolPtr(false)

	reg, err := NewToolRegistryFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewToolRegistryFromConfig() error = %v", err)
	}

	tools := reg.ListTools()
	if len(tools) != 2 {
		t.Errorf("Expected 2 read-only tools by default, got %d", len(tools))
	}
}
