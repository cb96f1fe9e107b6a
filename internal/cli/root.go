package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"timetrack-go/internal/client"
	"timetrack-go/internal/config"
	"timetrack-go/pkg/utils"
)

var (
	dataDir  string
	logLevel string
	rootCmd  *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "timetrack",
		Short: "timetrack - local task time tracking daemon",
		Long: `timetrack records which task you are working on, survives crashes without
over-counting, and renders a per-day timesheet.

Run "timetrack server" once, then drive it with "timetrack client ...",
the MCP server ("timetrack mcp") or the HTTP gateway ("timetrack web").`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultDir := os.Getenv("TIMETRACK_DATA_DIR")
	if defaultDir == "" {
		defaultDir = utils.DefaultDataDir()
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", defaultDir, "Directory holding the database, sockets and config.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")
}

// Execute runs the root command
func Execute(version string) error {
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(subscribeCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(webCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// loadConfig 读取数据目录下的配置，命令行日志级别优先
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(utils.ExpandPath(dataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *utils.FmtLogger {
	return utils.NewFmtLogger(utils.ParseLevel(cfg.Log.Level))
}

func newClient(cfg *config.Config) *client.Client {
	return client.New(cfg.SocketPath(), cfg.PubSocketPath())
}
