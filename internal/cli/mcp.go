package cli

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"timetrack-go/internal/tools"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the time tracking tools over MCP (stdio)",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s := server.NewMCPServer("timetrack", rootCmd.Version, server.WithToolCapabilities(false))
	tools.RegisterTimeTools(s, tools.NewSessionManager(newClient(cfg)))
	return server.ServeStdio(s)
}
