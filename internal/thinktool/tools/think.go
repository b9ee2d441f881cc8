package tools

import (
	"context"
	"fmt"

	"github.com/modelkit/mcp-think-tool/internal/thinktool/catalog"
	"github.com/modelkit/mcp-think-tool/internal/thinktool/mcp"
	"github.com/modelkit/mcp-think-tool/internal/thinktool/observability"
	"github.com/modelkit/mcp-think-tool/internal/thinktool/session"
)

// Sink receives a copy of every recorded thought. Implementations are
// best-effort: a sink failure is logged and never fails the tool call or
// touches the in-memory log.
type Sink interface {
	Record(ctx context.Context, sessionID string, e session.ThoughtEntry) error
}

// ThinkTool records a caller-supplied thought into the session log and echoes
// it back verbatim. The tool is intentionally a no-op transform: it never
// inspects, summarizes, or acts on thought content. Its value is the explicit
// round trip and the recorded log.
type ThinkTool struct {
	spec catalog.Tool
	sink Sink
}

// NewThink builds the think tool from its catalog descriptor. sink may be nil
// when the host has not layered on an archive.
func NewThink(spec catalog.Tool, sink Sink) *ThinkTool {
	return &ThinkTool{spec: spec, sink: sink}
}

// Descriptor returns the wire-facing tool description.
func (t *ThinkTool) Descriptor() mcp.Tool {
	return mcp.Tool{
		Name:        t.spec.Name,
		Description: t.spec.Description,
		InputSchema: t.spec.InputSchema,
	}
}

// Execute validates args against the tool's input schema, appends a
// ThoughtEntry to the session, and returns the thought text unchanged. A
// request cancelled before the append records nothing; cancellation observed
// after the append leaves the entry in place.
func (t *ThinkTool) Execute(ctx context.Context, sess *session.Session, args map[string]interface{}) (*mcp.CallToolResult, error) {
	if err := t.spec.Schema.Validate(normalize(args)); err != nil {
		return nil, &InvalidInputError{Tool: t.spec.Name, Err: err}
	}

	entry := session.ThoughtEntry{
		Thought: args["thought"].(string),
	}
	if v, ok := args["pattern"].(string); ok {
		entry.Pattern = v
	}
	if v, ok := args["confidence"].(float64); ok {
		entry.Confidence = &v
	}
	if v, ok := args["alternatives"].([]interface{}); ok {
		for _, alt := range v {
			entry.Alternatives = append(entry.Alternatives, alt.(string))
		}
	}
	if v, ok := args["justification"].(string); ok {
		entry.Justification = v
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("think cancelled before append: %w", err)
	}
	entry = sess.Append(entry)

	logger := observability.WithTrace(ctx)
	logger.Debug("thought recorded",
		"session_id", sess.ID(), "seq", entry.Seq, "length", len(entry.Thought))

	if t.sink != nil {
		// The append already happened; a late cancellation must not drop the
		// archive copy, so the sink write detaches from the request context.
		if err := t.sink.Record(context.WithoutCancel(ctx), sess.ID(), entry); err != nil {
			logger.Warn("thought archive write failed",
				"session_id", sess.ID(), "seq", entry.Seq, "err", err)
		}
	}

	return mcp.TextContent(entry.Thought), nil
}

// normalize hands the validator a value tree of the exact shapes produced by
// json.Unmarshal; a nil argument map reads as an empty object so required
// fields report as missing rather than as a type mismatch.
func normalize(args map[string]interface{}) interface{} {
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}
