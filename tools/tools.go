// Package tools implements the built-in tool set agents can invoke —
// shell commands, file reads, directory listing, grep, skill loading —
// plus an MCP bridge, all gated by working-directory containment.
package tools

import "context"

// Context carries the per-call environment a tool executes in: the
// enforced working directory and the world/chat it was invoked from.
type Context struct {
	WorkingDirectory string
	WorldID          string
	ChatID           string
}

// Result is what a tool call produces.
type Result struct {
	Output   string
	IsError  bool
	Metadata map[string]any
}

// Tool is one callable capability exposed to an LLM.
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]any
	Call(ctx context.Context, tc Context, arguments string) (Result, error)
}
