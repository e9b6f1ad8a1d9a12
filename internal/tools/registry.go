// Package tools implements the Tool Registry & Executor (spec §4.4): a
// process-wide catalog mapping tool names to executors, populated at
// startup with built-ins and MCP-proxied tools, and read concurrently
// thereafter under a shared read lock (spec §5, "read-mostly").
package tools

import (
	"context"
	"sync"

	"github.com/masaic-ai/open-responses-go/internal/domain"
)

// Executor invokes a named tool with opaque JSON arguments, returning its
// string output. Implementations must be side-effect-safe under concurrent
// invocation, per spec §4.4's bounded-concurrency regime.
type Executor interface {
	Execute(ctx context.Context, argumentsJSON string) (string, error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, argumentsJSON string) (string, error)

func (f ExecutorFunc) Execute(ctx context.Context, argumentsJSON string) (string, error) {
	return f(ctx, argumentsJSON)
}

// Registered is one entry in the registry: a Tool definition plus the
// executor that serves it.
type Registered struct {
	Tool     domain.Tool
	Executor Executor
}

// Registry is the process-wide tool catalog. Populated once at startup via
// Register, then read concurrently via Lookup without further locking
// beyond the map's own RWMutex guard (population always happens-before the
// first request is served).
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Registered
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Registered)}
}

// Register adds or replaces a tool definition and its executor.
func (r *Registry) Register(tool domain.Tool, executor Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = Registered{Tool: tool, Executor: executor}
}

// Lookup returns the registered tool and executor for name, or false if no
// internal executor is registered — the spec's signal to park the call for
// the client to handle externally (spec §4.4: "null ... tool not available").
func (r *Registry) Lookup(name string) (Registered, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.tools[name]
	return entry, ok
}

// Execute looks up name and invokes its executor with argumentsJSON passed
// through verbatim, per spec §4.4. Returns ok=false when no executor is
// registered for name (park the call); a registered executor's error is
// always returned as-is (it becomes a tool_execution_error at the call
// site per spec §7).
func (r *Registry) Execute(ctx context.Context, name, argumentsJSON string) (output string, ok bool, err error) {
	entry, found := r.Lookup(name)
	if !found {
		return "", false, nil
	}
	out, execErr := entry.Executor.Execute(ctx, argumentsJSON)
	return out, true, execErr
}

// Names returns every registered tool name, primarily for diagnostics.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}
