// Think-tool is an MCP server exposing the "think" tool: an explicit
// reasoning scratchpad an agent host can call to record intermediate thoughts
// as discrete, side-effect-free tool invocations.
//
// The server speaks newline-delimited JSON-RPC 2.0 over stdin/stdout and is
// meant to be launched by an agent runtime. It takes no command-line flags;
// all configuration is loaded from environment variables. Diagnostics go to
// stderr only, never to the protocol stream.
//
// Optional environment variables:
//
//	THINK_SERVER_NAME  - server name reported during the handshake (default: "think-tool")
//	THINK_ARCHIVE_DB   - path to a SQLite database; when set, every recorded
//	                     thought is also archived there
//	LOG_LEVEL          - "debug", "info", "warn", "error" (default: "info")
//	LOG_FORMAT         - "text" or "json" (default: "text")
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelkit/mcp-think-tool/common/environment"
	"github.com/modelkit/mcp-think-tool/common/version"
	"github.com/modelkit/mcp-think-tool/internal/thinktool/archive"
	"github.com/modelkit/mcp-think-tool/internal/thinktool/catalog"
	"github.com/modelkit/mcp-think-tool/internal/thinktool/observability"
	"github.com/modelkit/mcp-think-tool/internal/thinktool/server"
	"github.com/modelkit/mcp-think-tool/internal/thinktool/tools"
)

func main() {
	observability.Setup(
		environment.StringOr("LOG_LEVEL", "info"),
		environment.StringOr("LOG_FORMAT", "text"),
	)

	name := environment.StringOr("THINK_SERVER_NAME", "think-tool")
	zone, _ := time.Now().Zone()
	slog.Info("starting think tool MCP server",
		"name", name,
		"version", version.Info(),
		"timezone", zone,
	)

	cat, err := catalog.Load()
	if err != nil {
		slog.Error("load tool catalog", "err", err)
		os.Exit(1)
	}
	thinkSpec, ok := cat.Get("think")
	if !ok {
		slog.Error("tool catalog is missing the think tool")
		os.Exit(1)
	}

	var sink tools.Sink
	if dbPath, set := environment.String("THINK_ARCHIVE_DB"); set && dbPath != "" {
		arc, err := archive.Open(dbPath)
		if err != nil {
			slog.Error("open thought archive", "path", dbPath, "err", err)
			os.Exit(1)
		}
		defer arc.Close()
		slog.Info("thought archive enabled", "path", dbPath)
		sink = arc
	}

	registry := tools.NewRegistry()
	registry.Register(tools.NewThink(thinkSpec, sink))

	srv := server.New(server.Config{
		Name:     name,
		Version:  version.Version,
		Registry: registry,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("serve", "err", err)
		os.Exit(1)
	}
}
