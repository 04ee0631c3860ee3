package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gkabbz/github-delivery-visibility/internal/adapters/driving/mcp"
	"github.com/gkabbz/github-delivery-visibility/internal/logger"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can ask
questions about pull request activity.

By default the server speaks JSON-RPC over stdio. Use --port to serve
the streamable HTTP transport instead.

Tools:     ask, plan, digest, trends, review_queue
Resources: delivery://usage/pricing

review_queue needs a GitHub token and is left out without one; it
defaults to github.username when called without a reviewer.

Prompt files are watched while the server runs; edits apply to the
next question without a restart.

Examples:
  # Stdio mode (default, for desktop assistants)
  github-delivery mcp serve --repo acme/api

  # HTTP mode (for MCP Inspector, remote access)
  github-delivery mcp serve --port 8080

Assistant configuration:
  {
    "mcpServers": {
      "github-delivery": {
        "command": "/path/to/github-delivery",
        "args": ["mcp", "serve", "--repo", "acme/api"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	if err := initAskServices(cmd.Context()); err != nil {
		return err
	}
	pricing, err := loadPricing()
	if err != nil {
		return err
	}
	if err := initReportService(); err != nil {
		return err
	}

	ports := &mcp.Ports{
		Ask:        askService,
		Plan:       planService,
		Reports:    reportService,
		Pricing:    pricing,
		Repository: repository(),
		Reviewer:   appConfig.GitHub.Username,
	}
	if appConfig.GitHub.Token == "" {
		logger.Warn("review_queue tool disabled: no GitHub token configured")
	} else if err := initReviewQueueService(cmd.Context()); err != nil {
		logger.Warn("review_queue tool disabled: %v", err)
	} else {
		ports.ReviewQueue = reviewQueueService
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if promptStore != nil {
		go func() {
			if err := promptStore.Watch(cmd.Context()); err != nil {
				logger.Warn("prompt hot reload disabled: %v", err)
			}
		}()
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
