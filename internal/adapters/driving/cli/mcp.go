package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/opptrack/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose insights to AI assistants over MCP",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Model Context Protocol server",
	Long: `Run a Model Context Protocol server with the list_industries,
get_insight, clusters and document_status tools and the opptrack://
resources.

Without --addr the server speaks JSON-RPC over stdio, which is what
desktop assistants expect:

  {
    "mcpServers": {
      "opptrack": {"command": "opptrack", "args": ["mcp", "serve"]}
    }
  }

With --addr it serves the streamable HTTP transport at /mcp instead.`,
	Example: `  opptrack mcp serve
  opptrack mcp serve --addr 127.0.0.1:8090`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().String("addr", "", "serve HTTP on this address instead of stdio")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	if err := requireServices(cmd); err != nil {
		return err
	}
	if insightService == nil {
		return errors.New("insight service not configured")
	}

	server, err := mcp.NewServer(&mcp.Ports{Insights: insightService, Ingest: ingestService})
	if err != nil {
		return err
	}

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		return server.Run(cmd.Context())
	}
	newPrinter(cmd.ErrOrStderr()).Muted("MCP server on http://%s%s", addr, mcp.MountPath)
	return server.RunHTTP(cmd.Context(), addr)
}
