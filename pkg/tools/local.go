package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/nyxcore/orchestrator/pkg/config"
)

// LocalToolSource holds in-process tool implementations, as opposed to a
// source backed by a remote protocol.
type LocalToolSource struct {
	name  string
	tools map[string]Tool
	mu    sync.RWMutex
}

// NewLocalToolSource creates an empty local tool source.
func NewLocalToolSource(name string) *LocalToolSource {
	if name == "" {
		name = "local"
	}
	return &LocalToolSource{name: name, tools: make(map[string]Tool)}
}

// NewLocalToolSourceFromConfig builds the standard local tool set: read_file
// and web_request are always available; write_file and execute_command are
// registered only when cfg.WriteEnabled is true, and execute_command further
// requires a non-empty AllowedShellCommands.
func NewLocalToolSourceFromConfig(cfg config.ToolsConfig) (*LocalToolSource, error) {
	source := NewLocalToolSource("local")

	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = "."
	}

	if err := source.RegisterTool(NewReadFileTool(workDir)); err != nil {
		return nil, err
	}
	if err := source.RegisterTool(NewWebRequestTool()); err != nil {
		return nil, err
	}

	writeEnabled := cfg.WriteEnabled != nil && *cfg.WriteEnabled
	if writeEnabled {
		if err := source.RegisterTool(NewFileWriterTool(workDir)); err != nil {
			return nil, err
		}
		if len(cfg.AllowedShellCommands) > 0 {
			if err := source.RegisterTool(NewCommandTool(workDir, cfg.AllowedShellCommands)); err != nil {
				return nil, err
			}
		}
	}

	for _, p := range cfg.PluginProcesses {
		if err := source.RegisterTool(NewPluginProcessTool(p)); err != nil {
			return nil, err
		}
	}

	return source, nil
}

func (r *LocalToolSource) GetName() string { return r.name }

func (r *LocalToolSource) GetType() string { return "local" }

func (r *LocalToolSource) RegisterTool(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.GetName()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered in source %s", name, r.name)
	}
	r.tools[name] = tool
	return nil
}

func (r *LocalToolSource) DiscoverTools(ctx context.Context) error {
	return nil
}

func (r *LocalToolSource) ListTools() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tools []ToolInfo
	for _, tool := range r.tools {
		info := tool.GetInfo()
		info.ServerURL = r.name
		tools = append(tools, info)
	}
	return tools
}

func (r *LocalToolSource) GetTool(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, exists := r.tools[name]
	return tool, exists
}

func (r *LocalToolSource) RemoveTool(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return fmt.Errorf("tool %s not found in source %s", name, r.name)
	}
	delete(r.tools, name)
	return nil
}
