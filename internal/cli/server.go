package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"timetrack-go/internal/config"
	"timetrack-go/internal/core"
	"timetrack-go/internal/server"
	"timetrack-go/internal/services"
	"timetrack-go/pkg/utils"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the time tracking daemon in the foreground",
	RunE:  runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	ctx := context.Background()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	engine := core.NewStateEngine(store, core.WithLogger(log.With("Engine")))
	sheets := services.NewAggregator(engine, loc, log.With("Timesheet"))

	var extra []server.Publisher
	if cfg.Publish.Redis.Addr != "" {
		rp, err := server.DialRedisPublisher(ctx, cfg.Publish.Redis.Addr, cfg.Publish.Redis.DB, cfg.Publish.Redis.Channel)
		if err != nil {
			return fmt.Errorf("connect redis %s: %w", cfg.Publish.Redis.Addr, err)
		}
		log.Infof("broadcasting to redis channel %s", cfg.Publish.Redis.Channel)
		extra = append(extra, rp)
	}

	srv := server.New(server.Options{
		SocketPath:        cfg.SocketPath(),
		PubSocketPath:     cfg.PubSocketPath(),
		PollInterval:      cfg.Server.PollInterval,
		HeartbeatInterval: cfg.Server.HeartbeatInterval,
		RecvTimeout:       cfg.Server.RecvTimeout,
		SendTimeout:       cfg.Server.SendTimeout,
	}, engine, sheets, log, extra...)

	if err := srv.Start(ctx); err != nil {
		for _, p := range extra {
			_ = p.Close()
		}
		return err
	}

	// 信号处理只翻转停止标志
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig, ok := <-sigCh
		if !ok {
			return
		}
		log.Infof("received %s, stopping", sig)
		srv.Stop()
	}()

	return srv.Run(ctx)
}

// openStore 按配置选择存储后端
func openStore(ctx context.Context, cfg *config.Config, log *utils.FmtLogger) (core.EventStore, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		store, err := core.OpenPgStore(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		log.Infof("using postgres store")
		return store, nil
	default:
		mgr, err := core.NewDatabaseManager(cfg.DBPath(), log.With("Store"))
		if err != nil {
			return nil, fmt.Errorf("open sqlite store %s: %w", cfg.DBPath(), err)
		}
		log.Infof("using sqlite store %s", mgr.Path())
		return core.NewSQLiteStore(mgr), nil
	}
}
