package agent

import (
	"context"
	"fmt"
	"sync"
)

// Tool is a server-registered tool the model can invoke by name.
type Tool interface {
	Definition() ToolDefinition
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// FuncTool wraps a plain function as a Tool.
type FuncTool struct {
	Def ToolDefinition
	Fn  func(ctx context.Context, args map[string]any) (any, error)
}

func (f *FuncTool) Definition() ToolDefinition { return f.Def }

func (f *FuncTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	return f.Fn(ctx, args)
}

// ToolRegistry is a thread-safe registry of named tools. It supplies both
// the tool definitions for a query and the ToolCallFunc that dispatches
// execution.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool.
func (r *ToolRegistry) Register(tool Tool) {
	name := tool.Definition().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
}

// Get returns a tool by name, or nil.
func (r *ToolRegistry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Definitions returns the registered tool definitions in registration
// order.
func (r *ToolRegistry) Definitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Definition())
	}
	return out
}

// Names returns all registered tool names in registration order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Callback returns a ToolCallFunc dispatching calls into the registry.
func (r *ToolRegistry) Callback() ToolCallFunc {
	return func(ctx context.Context, call ToolCall) (*ToolResult, error) {
		tool := r.Get(call.Name)
		if tool == nil {
			return nil, fmt.Errorf("unknown tool: %s", call.Name)
		}
		result, err := tool.Execute(ctx, call.Arguments)
		if err != nil {
			return &ToolResult{Error: err.Error()}, nil
		}
		return &ToolResult{Result: result}, nil
	}
}
