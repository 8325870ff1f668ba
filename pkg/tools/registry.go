package tools

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nyxcore/orchestrator/pkg/config"
	"github.com/nyxcore/orchestrator/pkg/observability"
	"github.com/nyxcore/orchestrator/pkg/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ToolEntry pairs a registered Tool with the source that produced it.
type ToolEntry struct {
	Tool       Tool       `json:"tool"`
	Source     ToolSource `json:"source"`
	SourceType string     `json:"source_type"`
	Name       string     `json:"name"`
}

// ToolRegistryError carries the component/action context of a registry
// failure, so callers can log structured detail instead of a bare string.
type ToolRegistryError struct {
	Component string
	Action    string
	Message   string
	Err       error
}

func (e *ToolRegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Action, e.Message)
}

func NewToolRegistryError(component, action, message string, err error) *ToolRegistryError {
	return &ToolRegistryError{Component: component, Action: action, Message: message, Err: err}
}

// ToolRegistry is the set of tools available to the runtime's agents,
// discovered from one or more ToolSources and executed with tracing and
// metrics attached.
type ToolRegistry struct {
	*registry.BaseRegistry[ToolEntry]
}

// NewToolRegistry creates an empty tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{BaseRegistry: registry.NewBaseRegistry[ToolEntry]()}
}

// NewToolRegistryFromConfig builds a registry populated from the standard
// local tool source (read_file, web_request, and write_file/execute_command
// when write_enabled).
func NewToolRegistryFromConfig(cfg config.ToolsConfig) (*ToolRegistry, error) {
	r := NewToolRegistry()

	source, err := NewLocalToolSourceFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build local tool source: %w", err)
	}
	if err := r.RegisterSource(source); err != nil {
		return nil, fmt.Errorf("register local tool source: %w", err)
	}
	return r, nil
}

func (r *ToolRegistry) RegisterSource(source ToolSource) error {
	name := source.GetName()
	if name == "" {
		return NewToolRegistryError("ToolRegistry", "RegisterSource", "source name cannot be empty", nil)
	}

	if err := source.DiscoverTools(context.Background()); err != nil {
		return NewToolRegistryError("ToolRegistry", "RegisterSource",
			fmt.Sprintf("failed to discover tools from source %s", name), err)
	}

	for _, toolInfo := range source.ListTools() {
		tool, exists := source.GetTool(toolInfo.Name)
		if !exists {
			continue
		}

		entry := ToolEntry{
			Tool:       tool,
			Source:     source,
			SourceType: source.GetType(),
			Name:       toolInfo.Name,
		}

		if err := r.Register(toolInfo.Name, entry); err != nil {
			return NewToolRegistryError("ToolRegistry", "RegisterSource",
				fmt.Sprintf("failed to register tool %s", toolInfo.Name), err)
		}
	}

	return nil
}

func (r *ToolRegistry) GetTool(name string) (Tool, error) {
	entry, exists := r.Get(name)
	if !exists {
		return nil, NewToolRegistryError("ToolRegistry", "GetTool", fmt.Sprintf("tool %s not found", name), nil)
	}
	return entry.Tool, nil
}

func (r *ToolRegistry) ListTools() []ToolInfo {
	var tools []ToolInfo
	for _, entry := range r.List() {
		info := entry.Tool.GetInfo()
		info.ServerURL = entry.Source.GetName()
		tools = append(tools, info)
	}

	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

func (r *ToolRegistry) ListToolsBySource() map[string][]ToolInfo {
	result := make(map[string][]ToolInfo)
	for _, entry := range r.List() {
		repoName := entry.Source.GetName()
		info := entry.Tool.GetInfo()
		result[repoName] = append(result[repoName], info)
	}
	return result
}

// ExecuteTool runs a registered tool by name, wrapping the call in a trace
// span and recording duration/outcome metrics.
func (r *ToolRegistry) ExecuteTool(ctx context.Context, toolName string, args map[string]interface{}) (ToolResult, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("nyx.tools")
	ctx, span := tracer.Start(ctx, observability.SpanToolExecution,
		trace.WithAttributes(attribute.String(observability.AttrToolName, toolName)),
	)
	defer span.End()

	recorder := observability.GetGlobalRecorder()

	tool, err := r.GetTool(toolName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tool not found")
		recorder.RecordToolCall(toolName, time.Since(startTime))
		recorder.RecordToolError(toolName, "not_found")
		return ToolResult{Success: false, Error: err.Error(), ToolName: toolName}, err
	}

	result, execErr := tool.Execute(ctx, args)
	duration := time.Since(startTime)

	recorder.RecordToolCall(toolName, duration)
	switch {
	case execErr != nil:
		span.RecordError(execErr)
		span.SetStatus(codes.Error, execErr.Error())
		recorder.RecordToolError(toolName, "execution_error")
	case !result.Success:
		span.RecordError(fmt.Errorf("%s", result.Error))
		span.SetStatus(codes.Error, result.Error)
		recorder.RecordToolError(toolName, "failure")
	default:
		span.SetStatus(codes.Ok, "success")
	}

	span.SetAttributes(
		attribute.Bool("tool.success", result.Success),
		attribute.Int64("tool.duration_ms", duration.Milliseconds()),
	)

	return result, execErr
}

func (r *ToolRegistry) GetToolSource(toolName string) (string, error) {
	entry, exists := r.Get(toolName)
	if !exists {
		return "", NewToolRegistryError("ToolRegistry", "GetToolSource", fmt.Sprintf("tool %s not found", toolName), nil)
	}
	return entry.Source.GetName(), nil
}

// Close shuts down any registered tool that owns a background resource
// (currently, plugin-process tools and their subprocess).
func (r *ToolRegistry) Close() {
	for _, entry := range r.List() {
		if closer, ok := entry.Tool.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}

func (r *ToolRegistry) RemoveSource(sourceName string) error {
	for _, entry := range r.List() {
		if entry.Source.GetName() == sourceName {
			if err := r.Remove(entry.Name); err != nil {
				return NewToolRegistryError("ToolRegistry", "RemoveSource", fmt.Sprintf("failed to remove tool %s", entry.Name), err)
			}
		}
	}
	return nil
}
