package tools_test

import (
	"context"
	"testing"

	"github.com/modelkit/mcp-think-tool/internal/thinktool/mcp"
	"github.com/modelkit/mcp-think-tool/internal/thinktool/session"
	"github.com/modelkit/mcp-think-tool/internal/thinktool/tools"
)

// stubTool is a minimal Tool for registry tests.
type stubTool struct {
	name string
}

func (s *stubTool) Descriptor() mcp.Tool {
	return mcp.Tool{Name: s.name}
}

func (s *stubTool) Execute(context.Context, *session.Session, map[string]interface{}) (*mcp.CallToolResult, error) {
	return mcp.TextContent("stub"), nil
}

func TestRegistry_GetUnknownReturnsNil(t *testing.T) {
	r := tools.NewRegistry()
	r.Register(&stubTool{name: "think"})

	if r.Get("think") == nil {
		t.Error("registered tool not found")
	}
	if r.Get("summarize") != nil {
		t.Error("unknown tool must resolve to nil")
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("duplicate registration must panic")
		}
	}()
	r := tools.NewRegistry()
	r.Register(&stubTool{name: "think"})
	r.Register(&stubTool{name: "think"})
}

func TestRegistry_DescriptorsInRegistrationOrder(t *testing.T) {
	r := tools.NewRegistry()
	r.Register(&stubTool{name: "b"})
	r.Register(&stubTool{name: "a"})

	descs := r.Descriptors()
	if len(descs) != 2 || descs[0].Name != "b" || descs[1].Name != "a" {
		t.Errorf("unexpected descriptor order: %+v", descs)
	}
}
