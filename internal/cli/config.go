package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"timetrack-go/internal/config"
	"timetrack-go/pkg/utils"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage timetrack configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config.yaml into the data directory",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration (defaults, file, environment)",
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.Path(utils.ExpandPath(dataDir)))
	},
}

var forceInit bool

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)

	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing config.yaml")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := config.Write(config.Default(utils.ExpandPath(dataDir)), forceInit)
	if err != nil {
		return err
	}
	fmt.Println("Wrote", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out, err := config.Render(cfg)
	if err != nil {
		return err
	}
	fmt.Printf("# data dir: %s\n", cfg.DataDir)
	fmt.Print(out)
	return nil
}
