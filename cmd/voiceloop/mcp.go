package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/voiceloop/pkg/adapters/mcp"
	"github.com/aretw0/voiceloop/pkg/observability"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes dialogue sessions as MCP tools, so an agent can drive a
conversation: create_session, start_session, send_event, drain_directives,
inspect_session, list_sessions and close_session. The state chart is served as
the voiceloop://statechart resource.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.close()

		eng, err := newEngine(cmd, observability.LoggingHooks(logger))
		if err != nil {
			return err
		}
		hub, err := eng.NewHub(st.manager())
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = hub.Shutdown(shutdownCtx)
		}()

		srv := mcp.NewServer(hub, mcp.WithLogger(logger))

		transport, _ := cmd.Flags().GetString("transport")
		switch transport {
		case "stdio":
			// Logs go to stderr; stdout carries JSON-RPC.
			logger.Info("starting MCP server (stdio)")
			return srv.ServeStdio()
		case "sse":
			if err := srv.ServeSSE(ctx, cfg.Server.MCPAddr, cfg.Server.MCPBaseURL); err != nil {
				return err
			}
			logger.Info("MCP server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport %q, supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	addDialogueFlags(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "transport: stdio or sse")
	mcpCmd.Flags().String("mcp-addr", ":8081", "SSE listen address")
	mcpCmd.Flags().String("base-url", "http://localhost:8081", "public base URL announced to SSE clients")
}
