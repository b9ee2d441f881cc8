// Package server implements the MCP transport loop: it owns one connection's
// input/output streams, reads newline-delimited JSON-RPC 2.0 frames,
// dispatches them, and writes responses. Each connection gets an independent
// Session; connections share nothing.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/modelkit/mcp-think-tool/common/trace"
	"github.com/modelkit/mcp-think-tool/internal/thinktool/mcp"
	"github.com/modelkit/mcp-think-tool/internal/thinktool/session"
	"github.com/modelkit/mcp-think-tool/internal/thinktool/tools"
)

// SupportedVersions lists the MCP protocol revisions this server accepts,
// oldest first.
var SupportedVersions = []string{"2024-11-05", "2025-03-26", "2025-06-18"}

// maxLineBytes caps a single frame; lines beyond this abort the connection
// since the stream cannot be resynchronized.
const maxLineBytes = 1 << 20

// Config holds the assembled dependencies for a Server.
type Config struct {
	// Name and Version are reported in the initialize result's serverInfo.
	Name    string
	Version string
	// Registry is the immutable tool table.
	Registry *tools.Registry
	// Logger receives connection diagnostics. Defaults to slog.Default(),
	// which the binary points at stderr.
	Logger *slog.Logger
}

// Server serves MCP connections. One Server may serve any number of
// concurrent connections; all per-connection state lives in the conn.
type Server struct {
	name     string
	version  string
	registry *tools.Registry
	logger   *slog.Logger
}

// New creates a Server from cfg.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		name:     cfg.Name,
		version:  cfg.Version,
		registry: cfg.Registry,
		logger:   logger,
	}
}

// Serve processes one connection until r reaches end-of-stream, an
// unrecoverable framing error occurs, or ctx is cancelled. It returns nil on
// clean end-of-stream.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	sess := session.New()
	c := &conn{
		srv:      s,
		sess:     sess,
		w:        w,
		inflight: make(map[string]context.CancelFunc),
		logger:   s.logger.With("session_id", sess.ID()),
	}
	return c.serve(ctx, r)
}

// Connection handshake states.
const (
	stateNew         int32 = iota // awaiting initialize
	stateInitialized              // initialize succeeded
	stateReady                    // notifications/initialized received
)

// conn is the per-connection transport loop state.
type conn struct {
	srv    *Server
	sess   *session.Session
	logger *slog.Logger

	w   io.Writer
	wmu sync.Mutex

	inflight map[string]context.CancelFunc
	imu      sync.Mutex

	wg    sync.WaitGroup
	state atomic.Int32
}

func (c *conn) serve(ctx context.Context, r io.Reader) error {
	c.logger.Info("connection open")

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, maxLineBytes), maxLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			break
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		req, err := mcp.DecodeRequest(line)
		if err != nil {
			c.rejectFrame(req, err)
			continue
		}
		c.dispatch(ctx, req)
	}

	c.wg.Wait()

	stats := c.sess.Stats()
	c.logger.Info("connection closed",
		"protocol_version", c.sess.ProtocolVersion(),
		"thoughts_recorded", stats.TotalThoughts,
	)

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read frame: %w", err)
	}
	return ctx.Err()
}

// rejectFrame reports a malformed frame and leaves the connection open: the
// scanner resynchronizes on the next newline. Frames that were not even valid
// JSON get a parse error with a null id.
func (c *conn) rejectFrame(partial *mcp.Request, err error) {
	c.logger.Warn("malformed frame", "err", err)
	if partial == nil {
		c.writeResponse(mcp.NewError(nil, mcp.CodeParseError, "parse error", nil))
		return
	}
	if partial.IsNotification() {
		return
	}
	c.writeResponse(mcp.NewError(partial.ID, mcp.CodeInvalidRequest, err.Error(), nil))
}

func (c *conn) dispatch(ctx context.Context, req *mcp.Request) {
	if req.IsNotification() {
		c.handleNotification(req)
		return
	}

	switch req.Method {
	case mcp.MethodInitialize:
		c.writeResponse(c.handleInitialize(req))
	case mcp.MethodPing:
		c.writeResponse(mcp.NewResult(req.ID, struct{}{}))
	case mcp.MethodListTools:
		c.writeResponse(c.handleListTools(req))
	case mcp.MethodCallTool:
		c.spawnCall(ctx, req)
	default:
		c.writeResponse(mcp.NewError(req.ID, mcp.CodeMethodNotFound,
			fmt.Sprintf("method %q not found", req.Method), nil))
	}
}

func (c *conn) handleNotification(req *mcp.Request) {
	switch req.Method {
	case mcp.MethodInitialized:
		c.state.CompareAndSwap(stateInitialized, stateReady)
		c.logger.Debug("handshake complete")
	case mcp.MethodCancelled:
		var params mcp.CancelledParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			c.logger.Warn("malformed cancellation", "err", err)
			return
		}
		c.cancelRequest(mcp.CanonicalID(params.RequestID), params.Reason)
	default:
		// Unknown notifications are ignored per JSON-RPC.
		c.logger.Debug("ignoring notification", "method", req.Method)
	}
}

func (c *conn) handleInitialize(req *mcp.Request) *mcp.Response {
	if c.state.Load() == stateReady {
		return mcp.NewError(req.ID, mcp.CodeInvalidRequest, "server already initialized", nil)
	}

	var params mcp.InitializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return mcp.NewError(req.ID, mcp.CodeInvalidParams,
			fmt.Sprintf("invalid initialize params: %v", err), nil)
	}

	if !slices.Contains(SupportedVersions, params.ProtocolVersion) {
		// The connection stays open: the client may retry initialize with a
		// version from the supported list.
		c.logger.Warn("unsupported protocol version",
			"requested", params.ProtocolVersion, "client", params.ClientInfo.Name)
		return mcp.NewError(req.ID, mcp.CodeInvalidParams, "unsupported protocol version",
			map[string]interface{}{
				"supported": SupportedVersions,
				"requested": params.ProtocolVersion,
			})
	}

	c.sess.SetProtocolVersion(params.ProtocolVersion)
	c.state.CompareAndSwap(stateNew, stateInitialized)
	c.logger.Info("session initialized",
		"protocol_version", params.ProtocolVersion,
		"client", params.ClientInfo.Name,
		"client_version", params.ClientInfo.Version,
	)

	return mcp.NewResult(req.ID, mcp.InitializeResult{
		ProtocolVersion: params.ProtocolVersion,
		ServerInfo:      mcp.ServerInfo{Name: c.srv.name, Version: c.srv.version},
		Capabilities:    mcp.ServerCaps{Tools: &mcp.ToolsCaps{ListChanged: false}},
	})
}

func (c *conn) handleListTools(req *mcp.Request) *mcp.Response {
	if c.state.Load() == stateNew {
		return mcp.NewError(req.ID, mcp.CodeInvalidRequest, "server not initialized", nil)
	}
	descriptors := c.srv.registry.Descriptors()
	if descriptors == nil {
		descriptors = []mcp.Tool{}
	}
	return mcp.NewResult(req.ID, mcp.ListToolsResult{Tools: descriptors})
}

// spawnCall runs a tools/call request on its own goroutine so a suspended
// handler never blocks decoding of subsequent frames. Responses are written
// as each call finishes; the protocol correlates by id, not by order.
func (c *conn) spawnCall(ctx context.Context, req *mcp.Request) {
	if c.state.Load() == stateNew {
		c.writeResponse(mcp.NewError(req.ID, mcp.CodeInvalidRequest, "server not initialized", nil))
		return
	}

	key := mcp.CanonicalID(req.ID)
	rctx, cancel := context.WithCancel(ctx)
	rctx = trace.WithTraceID(rctx, trace.GenerateID())

	c.imu.Lock()
	c.inflight[key] = cancel
	c.imu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.finishCall(key, cancel)
		if resp := c.handleCallTool(rctx, req); resp != nil {
			c.writeResponse(resp)
		}
	}()
}

func (c *conn) handleCallTool(ctx context.Context, req *mcp.Request) *mcp.Response {
	var params mcp.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return mcp.NewError(req.ID, mcp.CodeInvalidParams,
			fmt.Sprintf("invalid tools/call params: %v", err), nil)
	}

	tool := c.srv.registry.Get(params.Name)
	if tool == nil {
		return mcp.NewError(req.ID, mcp.CodeInvalidParams,
			fmt.Sprintf("unknown tool %q", params.Name), nil)
	}

	result, err := tool.Execute(ctx, c.sess, params.Arguments)
	if err != nil {
		var invalid *tools.InvalidInputError
		switch {
		case errors.As(err, &invalid):
			return mcp.NewError(req.ID, mcp.CodeInvalidParams, invalid.Error(), nil)
		case ctx.Err() != nil:
			// Cancelled requests produce no response.
			c.logger.Debug("tool call cancelled", "tool", params.Name)
			return nil
		default:
			c.logger.Error("tool call failed", "tool", params.Name, "err", err)
			return mcp.NewError(req.ID, mcp.CodeInternalError, "internal error", nil)
		}
	}
	return mcp.NewResult(req.ID, result)
}

func (c *conn) cancelRequest(key, reason string) {
	c.imu.Lock()
	cancel, ok := c.inflight[key]
	c.imu.Unlock()
	if !ok {
		// Already finished or never seen; cancellation races are benign.
		return
	}
	c.logger.Debug("cancelling request", "request_id", key, "reason", reason)
	cancel()
}

func (c *conn) finishCall(key string, cancel context.CancelFunc) {
	c.imu.Lock()
	delete(c.inflight, key)
	c.imu.Unlock()
	cancel()
}

// writeResponse serializes resp and writes it as one newline-terminated
// frame. Writes are mutex-serialized so concurrent handlers never interleave
// partial frames.
func (c *conn) writeResponse(resp *mcp.Response) {
	data, err := mcp.EncodeResponse(resp)
	if err != nil {
		c.logger.Error("encode response", "err", err)
		return
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.w.Write(append(data, '\n')); err != nil {
		c.logger.Error("write response", "err", err)
	}
}
