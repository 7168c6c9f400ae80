package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/scholar/internal/adapters/driving/mcp"
)

var mcpAddr string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol integration",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve retrieval and similarity tools to AI assistants",
	Long: `Exposes retrieve, ask, compare and check_plagiarism as MCP tools, and each
user's document list as a resource.

Without --addr the server speaks JSON-RPC over stdio, which is what desktop
assistants expect:

  {"mcpServers": {"scholar": {"command": "scholar", "args": ["mcp", "serve"]}}}

With --addr it serves the streamable HTTP transport instead:

  scholar mcp serve --addr 127.0.0.1:8080`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().StringVar(&mcpAddr, "addr", "", "serve HTTP on this address instead of stdio")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	server, err := mcp.NewServer(&mcp.Ports{
		Retrieval:  retrievalService,
		Ask:        askService,
		Similarity: similarityService,
		Ingest:     ingestService,
	})
	if err != nil {
		return err
	}

	if mcpAddr == "" {
		return server.Run(cmd.Context())
	}

	ln, err := server.Listen(mcpAddr)
	if err != nil {
		return err
	}
	cmd.Printf("MCP server listening on http://%s\n", ln.Addr())
	return server.Serve(cmd.Context(), ln)
}
