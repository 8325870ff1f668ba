package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/rpc"
	"os/exec"
	"time"

	"github.com/hashicorp/go-hclog"
	plugin "github.com/hashicorp/go-plugin"

	"github.com/nyxcore/orchestrator/pkg/config"
)

// pluginHandshake is the magic-cookie handshake a plugin-process tool
// binary must answer before it is trusted as the other end of the pipe,
// so a misconfigured path fails fast instead of hanging on a process that
// isn't actually a tool plugin.
var pluginHandshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "NYX_TOOL_PLUGIN",
	MagicCookieValue: "nyx_tool_plugin_v1",
}

// toolRPC is the interface a plugin-process tool binary exposes over
// net/rpc. Payloads cross the wire JSON-encoded rather than as raw
// map[string]interface{}: net/rpc's gob wire format can't encode an
// unregistered interface{} value, and JSON keeps the wire contract
// independent of whatever Go types the plugin binary happens to use.
type toolRPC interface {
	Execute(argsJSON []byte) ([]byte, error)
}

type toolRPCClient struct{ client *rpc.Client }

func (c *toolRPCClient) Execute(argsJSON []byte) ([]byte, error) {
	var resultJSON []byte
	err := c.client.Call("Plugin.Execute", argsJSON, &resultJSON)
	return resultJSON, err
}

type toolRPCServer struct{ Impl toolRPC }

func (s *toolRPCServer) Execute(argsJSON []byte, resultJSON *[]byte) error {
	result, err := s.Impl.Execute(argsJSON)
	*resultJSON = result
	return err
}

// toolPlugin adapts toolRPC to go-plugin's net/rpc Plugin interface. Only
// Client is ever exercised here: this process dispenses a plugin, it never
// hosts one.
type toolPlugin struct{ Impl toolRPC }

func (p *toolPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &toolRPCServer{Impl: p.Impl}, nil
}

func (toolPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &toolRPCClient{client: c}, nil
}

// PluginProcessTool invokes a single operator-vetted external binary as a
// tool effect, over hashicorp/go-plugin's net/rpc transport. Path and Args
// are fixed at construction from config.PluginProcessConfig; nothing here
// lets an agent or model choose or supply the binary, so this is not a
// sandbox for arbitrary third-party code, only a launcher for a closed,
// operator-configured set of plugin processes.
type PluginProcessTool struct {
	cfg    config.PluginProcessConfig
	client *plugin.Client
}

// NewPluginProcessTool builds a plugin-process tool from cfg. The
// subprocess itself is not started until the tool's first Execute call.
func NewPluginProcessTool(cfg config.PluginProcessConfig) *PluginProcessTool {
	return &PluginProcessTool{cfg: cfg}
}

func (t *PluginProcessTool) dispense() (toolRPC, error) {
	if t.client == nil {
		t.client = plugin.NewClient(&plugin.ClientConfig{
			HandshakeConfig:  pluginHandshake,
			Plugins:          map[string]plugin.Plugin{"tool": &toolPlugin{}},
			Cmd:              exec.Command(t.cfg.Path, t.cfg.Args...),
			Logger:           hclog.New(&hclog.LoggerOptions{Name: "nyx-tool-plugin", Level: hclog.Warn}),
			AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
		})
	}

	rpcClient, err := t.client.Client()
	if err != nil {
		return nil, fmt.Errorf("connect to plugin %s: %w", t.cfg.Name, err)
	}
	raw, err := rpcClient.Dispense("tool")
	if err != nil {
		return nil, fmt.Errorf("dispense plugin %s: %w", t.cfg.Name, err)
	}
	impl, ok := raw.(toolRPC)
	if !ok {
		return nil, fmt.Errorf("plugin %s does not implement the tool RPC interface", t.cfg.Name)
	}
	return impl, nil
}

func (t *PluginProcessTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	start := time.Now()

	impl, err := t.dispense()
	if err != nil {
		return ToolResult{Success: false, Error: err.Error(), ToolName: t.cfg.Name}, err
	}

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error(), ToolName: t.cfg.Name}, err
	}

	type rpcOutcome struct {
		raw []byte
		err error
	}
	outcomeCh := make(chan rpcOutcome, 1)
	go func() {
		raw, err := impl.Execute(argsJSON)
		outcomeCh <- rpcOutcome{raw, err}
	}()

	select {
	case <-ctx.Done():
		return ToolResult{Success: false, Error: ctx.Err().Error(), ToolName: t.cfg.Name}, ctx.Err()
	case outcome := <-outcomeCh:
		if outcome.err != nil {
			return ToolResult{Success: false, Error: outcome.err.Error(), ToolName: t.cfg.Name}, outcome.err
		}
		var result ToolResult
		if err := json.Unmarshal(outcome.raw, &result); err != nil {
			return ToolResult{Success: false, Error: err.Error(), ToolName: t.cfg.Name}, err
		}
		result.ToolName = t.cfg.Name
		result.ExecutionTime = time.Since(start)
		return result, nil
	}
}

func (t *PluginProcessTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.cfg.Name,
		Description: t.cfg.Description,
		ServerURL:   "plugin-process:" + t.cfg.Path,
	}
}

func (t *PluginProcessTool) GetName() string { return t.cfg.Name }

func (t *PluginProcessTool) GetDescription() string { return t.cfg.Description }

// Close kills the backing plugin subprocess, if one was ever started.
// LocalToolSource has no generic lifecycle hook for this, so callers that
// build a ToolRegistry straight from config should prefer
// NewLocalToolSourceFromConfig, which takes care of it via the runtime's
// own shutdown path.
func (t *PluginProcessTool) Close() {
	if t.client != nil {
		t.client.Kill()
	}
}
