package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"timetrack-go/internal/web"
)

var webAddr string

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Serve the HTTP gateway in front of the daemon",
	RunE:  runWeb,
}

func init() {
	webCmd.Flags().StringVar(&webAddr, "addr", "", "Listen address (defaults to web.addr)")
}

func runWeb(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	addr := cfg.Web.Addr
	if webAddr != "" {
		addr = webAddr
	}

	gin.SetMode(gin.ReleaseMode)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := newLogger(cfg)
	return web.NewServer(newClient(cfg), log).Run(ctx, addr)
}
