package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leospirit/wecom-bulk-sender/internal/api"
	"github.com/leospirit/wecom-bulk-sender/internal/config"
	"github.com/leospirit/wecom-bulk-sender/internal/core"
	"github.com/leospirit/wecom-bulk-sender/internal/logging"
	sendermcp "github.com/leospirit/wecom-bulk-sender/internal/mcp"
	"github.com/leospirit/wecom-bulk-sender/internal/notify"
	"github.com/leospirit/wecom-bulk-sender/internal/remote"
	"github.com/leospirit/wecom-bulk-sender/internal/store"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	logger := logging.New(cfg.Log.Level)

	baseCtx := context.Background()
	storeInst, err := store.Open(baseCtx, cfg.StateDir, cfg.Log.HistoryKeep)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer storeInst.DB.Close()

	var notifier notify.Notifier = &notify.NoOpNotifier{}
	if cfg.Notification.Bark.Enabled {
		bark, err := notify.NewBarkNotifier(cfg.Notification.Bark.URL)
		if err != nil {
			logger.Error("configure bark notifier", "err", err)
			os.Exit(1)
		}
		notifier = bark
	}

	client := remote.NewClient(cfg.Backend.BaseURL)
	state := core.NewState(cfg.Backend.DefaultRootPath)
	selection := core.NewSelection()
	watcher := notify.NewCountsWatcher(notifier, logger)
	synchronizer := core.NewSynchronizer(client, state, storeInst, watcher, logger, cfg.Backend.PollInterval)
	dispatcher := core.NewDispatcher(client, state, selection, synchronizer, storeInst, logger)

	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	if err := synchronizer.Start(ctx); err != nil {
		logger.Error("start synchronizer", "err", err)
		os.Exit(1)
	}

	switch cfg.Mode {
	case "http", "":
		runHTTPMode(cfg, state, selection, dispatcher, storeInst, synchronizer, logger)
	case "mcp":
		runMCPMode(state, selection, dispatcher, storeInst, synchronizer, logger, cancel)
	case "both":
		runBothMode(cfg, state, selection, dispatcher, storeInst, synchronizer, logger)
	default:
		logger.Error("invalid mode", "mode", cfg.Mode, "valid", []string{"http", "mcp", "both"})
		os.Exit(1)
	}
}

// runHTTPMode starts only the console HTTP server.
func runHTTPMode(cfg *config.Config, state *core.State, selection *core.Selection, dispatcher *core.Dispatcher, storeInst *store.Store, synchronizer *core.Synchronizer, logger *slog.Logger) {
	server, err := api.NewServer(cfg.Server.Addr, cfg.Server.AuthToken, state, selection, dispatcher, storeInst, logger)
	if err != nil {
		logger.Error("create server", "err", err)
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	}

	shutdown(cfg, server, synchronizer, logger)
}

// runMCPMode starts only the MCP server.
func runMCPMode(state *core.State, selection *core.Selection, dispatcher *core.Dispatcher, storeInst *store.Store, synchronizer *core.Synchronizer, logger *slog.Logger, cancel context.CancelFunc) {
	mcpServer := sendermcp.NewMCPServer(state, selection, dispatcher, storeInst, logger)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		logger.Info("received signal, shutting down...")
		synchronizer.Close()
		cancel()
	}()

	if err := mcpServer.Run(); err != nil {
		logger.Error("mcp server error", "err", err)
		os.Exit(1)
	}
}

// runBothMode starts both the console HTTP server and the MCP server.
func runBothMode(cfg *config.Config, state *core.State, selection *core.Selection, dispatcher *core.Dispatcher, storeInst *store.Store, synchronizer *core.Synchronizer, logger *slog.Logger) {
	mcpServer := sendermcp.NewMCPServer(state, selection, dispatcher, storeInst, logger)
	mcpErr := make(chan error, 1)
	go func() {
		if err := mcpServer.Run(); err != nil {
			mcpErr <- err
		}
	}()

	server, err := api.NewServer(cfg.Server.Addr, cfg.Server.AuthToken, state, selection, dispatcher, storeInst, logger)
	if err != nil {
		logger.Error("create server", "err", err)
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	case err := <-mcpErr:
		logger.Error("mcp server error", "err", err)
	}

	shutdown(cfg, server, synchronizer, logger)
	logger.Info("shutdown complete")
}

func shutdown(cfg *config.Config, server *api.Server, synchronizer *core.Synchronizer, logger *slog.Logger) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}

	stopCtx := synchronizer.Close()
	select {
	case <-stopCtx.Done():
	case <-time.After(cfg.ShutdownGrace):
		logger.Warn("synchronizer stop timed out")
	}
}
