package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Ablu/manaserv/internal/account"
	"github.com/Ablu/manaserv/internal/chat"
	"github.com/Ablu/manaserv/internal/config"
	"github.com/Ablu/manaserv/internal/gslink"
	"github.com/Ablu/manaserv/internal/mapregistry"
	"github.com/Ablu/manaserv/internal/storage"
)

const ConfigPath = "config/accountserver.yaml"

// gameDirectory adapts the link server's map lookup to the account
// server's directory interface.
type gameDirectory struct {
	link *gslink.Server
}

func (d gameDirectory) ServerForMap(mapID int) (account.GameHandle, bool) {
	conn, ok := d.link.ServerForMap(mapID)
	if !ok {
		return nil, false
	}
	return conn, true
}

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

	slog.Info("manaserv account server starting")

	cfgPath := ConfigPath
	if p := os.Getenv("MANASERV_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadAccountServer(cfgPath)
	if err != nil {
		slog.Error("loading config failed", "path", cfgPath, "err", err)
		os.Exit(config.ExitConfigNotFound)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(config.ExitBadConfigParameter)
	}
	slog.Info("config loaded",
		"bind", cfg.BindAddress,
		"client_port", cfg.ClientPort,
		"chat_port", cfg.ChatPort,
		"game_server_port", cfg.GameServerPort)

	if err := run(ctx, cfg); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(config.ExitNetException)
	}
}

func run(ctx context.Context, cfg config.AccountServer) error {
	if err := storage.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database migrations applied")

	store, err := storage.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer store.Close()
	if err := store.Open(ctx); err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	slog.Info("database connected")

	registry := mapregistry.New[*gslink.Conn]()
	link := gslink.NewServer(cfg, store, registry)

	chatServer, err := chat.NewServer(ctx, cfg, store)
	if err != nil {
		return fmt.Errorf("creating chat server: %w", err)
	}

	accountServer := account.NewServer(cfg, store, gameDirectory{link: link}, chatServer)

	link.SetChatSide(chatServer)
	link.SetReconnectPreparer(accountServer)
	chatServer.SetGameNotifier(link)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := accountServer.Run(gctx); err != nil {
			return fmt.Errorf("account server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := chatServer.Run(gctx); err != nil {
			return fmt.Errorf("chat server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := link.Run(gctx); err != nil {
			return fmt.Errorf("game server link: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
