package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Ablu/manaserv/internal/config"
	"github.com/Ablu/manaserv/internal/game"
)

const ConfigPath = "config/gameserver.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))

	slog.Info("manaserv game server starting")

	cfgPath := ConfigPath
	if p := os.Getenv("MANASERV_GAME_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadGameServer(cfgPath)
	if err != nil {
		slog.Error("loading config failed", "path", cfgPath, "err", err)
		os.Exit(config.ExitConfigNotFound)
	}
	if cfg.Password == "" {
		slog.Error("invalid config", "err", "net_password must not be empty")
		os.Exit(config.ExitBadConfigParameter)
	}
	slog.Info("config loaded",
		"name", cfg.Name,
		"client_port", cfg.ClientPort,
		"account", fmt.Sprintf("%s:%d", cfg.AccountHost, cfg.AccountPort))

	if err := run(ctx, cfg); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(config.ExitNetException)
	}
}

func run(ctx context.Context, cfg config.GameServer) error {
	world := game.NewWorld()
	server := game.NewServer(cfg, world)

	link, err := game.Dial(ctx, cfg, world, server.Enters())
	if err != nil {
		return fmt.Errorf("connecting to account server: %w", err)
	}
	server.SetLink(link)

	ticker := game.NewTicker(world, link, cfg.TickMillis, cfg.SyncEveryTicks)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := link.Run(gctx); err != nil {
			return fmt.Errorf("account server link: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := server.Run(gctx); err != nil {
			return fmt.Errorf("game endpoint: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := ticker.Run(gctx); err != nil {
			return fmt.Errorf("tick loop: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
