// Package tools provides the server's tool registry and the built-in think
// tool. Tools are registered at startup before the transport starts serving;
// the table is immutable afterwards.
package tools

import (
	"context"

	"github.com/modelkit/mcp-think-tool/internal/thinktool/mcp"
	"github.com/modelkit/mcp-think-tool/internal/thinktool/session"
)

// Tool is the interface all registered tools implement.
type Tool interface {
	// Descriptor returns the wire-facing tool description included in
	// tools/list responses.
	Descriptor() mcp.Tool

	// Execute runs the tool against the calling connection's session with the
	// given (JSON-decoded) arguments. The context carries the request trace ID
	// and cancellation signal. Validation failures are reported as
	// *InvalidInputError; any other error is treated as internal.
	Execute(ctx context.Context, sess *session.Session, args map[string]interface{}) (*mcp.CallToolResult, error)
}

// Registry holds all registered tools and provides name-based lookup. It is
// not safe to call Register concurrently with Get or Descriptors — populate
// the registry at startup before serving requests.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry returns an empty Registry ready for tool registration.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t to the registry. It panics if a tool with the same name is
// already registered, which indicates a programming error in the registration
// sequence.
func (r *Registry) Register(t Tool) {
	name := t.Descriptor().Name
	if _, dup := r.tools[name]; dup {
		panic("tools: duplicate tool registration: " + name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
}

// Get returns the Tool registered under name, or nil when not found. An
// unknown name is a per-request condition for the caller to report, never a
// connection-level failure.
func (r *Registry) Get(name string) Tool {
	return r.tools[name]
}

// Descriptors returns wire descriptors for all registered tools in
// registration order.
func (r *Registry) Descriptors() []mcp.Tool {
	out := make([]mcp.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Descriptor())
	}
	return out
}
