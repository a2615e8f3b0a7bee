package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPConfig configures a connection to one stdio-transport MCP server.
type MCPConfig struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
	Filter  []string
}

// MCPBridge lazily connects to an MCP server over stdio and exposes
// its tools through the Tool interface so they can be registered
// alongside the built-ins.
type MCPBridge struct {
	cfg MCPConfig

	mu        sync.Mutex
	client    *client.Client
	connected bool
	filterSet map[string]bool
}

func NewMCPBridge(cfg MCPConfig) *MCPBridge {
	var filterSet map[string]bool
	if len(cfg.Filter) > 0 {
		filterSet = make(map[string]bool, len(cfg.Filter))
		for _, name := range cfg.Filter {
			filterSet[name] = true
		}
	}
	return &MCPBridge{cfg: cfg, filterSet: filterSet}
}

// Tools connects (if not already connected) and returns every tool
// the remote server exposes, filtered if a Filter was configured.
func (b *MCPBridge) Tools(ctx context.Context) ([]Tool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		if err := b.connect(ctx); err != nil {
			return nil, fmt.Errorf("tools/mcp: connecting to %s: %w", b.cfg.Name, err)
		}
	}

	listResp, err := b.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("tools/mcp: listing tools on %s: %w", b.cfg.Name, err)
	}

	var out []Tool
	for _, t := range listResp.Tools {
		if b.filterSet != nil && !b.filterSet[t.Name] {
			continue
		}
		out = append(out, &mcpTool{
			bridge: b,
			name:   t.Name,
			desc:   t.Description,
			schema: convertSchema(t.InputSchema),
		})
	}
	return out, nil
}

func (b *MCPBridge) connect(ctx context.Context) error {
	env := make([]string, 0, len(b.cfg.Env))
	for k, v := range b.cfg.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	mcpClient, err := client.NewStdioMCPClient(b.cfg.Command, env, b.cfg.Args...)
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}
	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("starting client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "worldcore", Version: "0.1.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return fmt.Errorf("initializing: %w", err)
	}

	b.client = mcpClient
	b.connected = true
	return nil
}

// Close tears down the underlying subprocess connection.
func (b *MCPBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	b.connected = false
	return err
}

// mcpTool adapts one remote MCP tool to the local Tool interface.
type mcpTool struct {
	bridge *MCPBridge
	name   string
	desc   string
	schema map[string]any
}

func (t *mcpTool) Name() string            { return t.name }
func (t *mcpTool) Description() string     { return t.desc }
func (t *mcpTool) Schema() map[string]any  { return t.schema }

func (t *mcpTool) Call(ctx context.Context, tc Context, arguments string) (Result, error) {
	var args map[string]any
	if arguments != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return Result{}, fmt.Errorf("tools/mcp: parsing arguments: %w", err)
		}
	}

	t.bridge.mu.Lock()
	mcpClient := t.bridge.client
	t.bridge.mu.Unlock()
	if mcpClient == nil {
		return Result{}, fmt.Errorf("tools/mcp: %s not connected", t.bridge.cfg.Name)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = t.name
	req.Params.Arguments = args

	resp, err := mcpClient.CallTool(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("tools/mcp: calling %s: %w", t.name, err)
	}
	return parseMCPResult(resp), nil
}

func parseMCPResult(resp *mcp.CallToolResult) Result {
	var texts []string
	for _, content := range resp.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			texts = append(texts, textContent.Text)
		}
	}
	output := ""
	if len(texts) == 1 {
		output = texts[0]
	} else if len(texts) > 1 {
		data, _ := json.Marshal(texts)
		output = string(data)
	}
	return Result{Output: output, IsError: resp.IsError}
}

func convertSchema(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
