package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aretw0/ivrflow/internal/cli"
	"github.com/aretw0/ivrflow/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes flow validation and the version store as MCP tools, so AI agents can
check and save flow definitions.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		backend, err := cli.OpenDesigner(cfg, logger, nil)
		if err != nil {
			return err
		}
		defer backend.Close()

		srv := mcp.NewServer(backend.Designer.Service(), logger)

		switch transport {
		case "stdio":
			// logs go to stderr and never corrupt JSON-RPC on stdout
			logger.Info("Starting ivrflow MCP Server (Stdio)")
			return srv.ServeStdio()
		case "sse":
			ctx := cli.NewSignalContext(cmd.Context())
			defer ctx.Cancel()
			if err := srv.ServeSSE(ctx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("MCP server failed: %w", err)
			}
			logger.Info("MCP Server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8081, "Port to listen on (only for SSE)")
}
