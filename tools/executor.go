// Package tools provides the diagnostic tools the incident workflow can
// invoke and the registry that routes tool calls to their executors.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/paymentops/guardian/llm"
)

// Result is the outcome of a single tool execution. A tool failure is
// reported in Error rather than as a Go error so the model can see it and
// adjust; Go errors are reserved for infrastructure faults.
type Result struct {
	CallID  string
	Content string
	Error   string
}

// Executor runs one or more named tools.
type Executor interface {
	Execute(ctx context.Context, call llm.ToolCall) (Result, error)
	ListTools() []llm.ToolDefinition
}

// Registry routes tool calls by name to their executors.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register adds every tool of the executor to the registry.
// Returns an error if a tool name is already taken.
func (r *Registry) Register(exec Executor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	defs := exec.ListTools()
	for _, def := range defs {
		if _, exists := r.executors[def.Name]; exists {
			return fmt.Errorf("tool %q already registered", def.Name)
		}
	}
	for _, def := range defs {
		r.executors[def.Name] = exec
	}
	return nil
}

// Execute routes a call to the executor registered for its name.
// An unknown tool produces a Result the model can read, not a Go error,
// so a hallucinated tool name does not abort the run.
func (r *Registry) Execute(ctx context.Context, call llm.ToolCall) (Result, error) {
	r.mu.RLock()
	exec, ok := r.executors[call.Name]
	r.mu.RUnlock()

	if !ok {
		return Result{
			CallID: call.ID,
			Error:  fmt.Sprintf("unknown tool: %s", call.Name),
		}, nil
	}
	return exec.Execute(ctx, call)
}

// ListTools returns the catalog of all registered tools, sorted by name so
// the model sees a stable ordering across turns.
func (r *Registry) ListTools() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var defs []llm.ToolDefinition
	for _, exec := range r.executors {
		for _, def := range exec.ListTools() {
			if !seen[def.Name] {
				seen[def.Name] = true
				defs = append(defs, def)
			}
		}
	}
	sort.Slice(defs, func(a, b int) bool {
		return defs[a].Name < defs[b].Name
	})
	return defs
}
