package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/voicecode/voiced/internal/agent"
	"github.com/voicecode/voiced/internal/auth"
	"github.com/voicecode/voiced/internal/config"
	"github.com/voicecode/voiced/internal/gateway"
	"github.com/voicecode/voiced/internal/lock"
	"github.com/voicecode/voiced/internal/recipe"
	"github.com/voicecode/voiced/internal/replicate"
	"github.com/voicecode/voiced/internal/workstream"
)

const shutdownGrace = 5 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"daemon", "start"},
		Short:   "run the voiced daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	return cmd
}

func runServe() error {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	dir := dataDir()

	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	cfg, err := config.LoadConfig(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	key, err := auth.LoadOrGenerateKey(cfg.KeyFile)
	if err != nil {
		return fmt.Errorf("bootstrapping auth key: %w", err)
	}
	log.Info("auth key ready", "key_file", cfg.KeyFile)

	idx := replicate.NewIndex()
	watcher, err := replicate.NewWatcher(cfg.TranscriptRoot, idx, replicate.Callbacks{}, log)
	if err != nil {
		return fmt.Errorf("creating replication watcher: %w", err)
	}
	if cfg.LockDebounceMS > 0 {
		watcher.Debounce = time.Duration(cfg.LockDebounceMS) * time.Millisecond
	}

	locks := lock.NewTable()
	inv := agent.NewInvoker(cfg.AgentBinary, os.TempDir())
	if cfg.AgentTimeoutSec > 0 {
		inv.Timeout = time.Duration(cfg.AgentTimeoutSec) * time.Second
	}

	lib, loadErrs := recipe.LoadLibrary(cfg.RecipeDir)
	for _, e := range loadErrs {
		log.Warn("recipe failed to load", "error", e)
	}

	ws, err := workstream.Open(cfg.WorkstreamDBPath)
	if err != nil {
		return fmt.Errorf("opening workstream store: %w", err)
	}
	defer ws.Close()

	server := gateway.New(key, idx, watcher, locks, inv, lib, ws, log)

	if err := watcher.Start(); err != nil {
		return fmt.Errorf("starting replication watcher: %w", err)
	}
	defer watcher.Close()

	if err := server.ListenTCP(cfg.Listen); err != nil {
		return err
	}
	if cfg.WebSocketListen != "" {
		if err := server.ListenWebSocket(cfg.WebSocketListen); err != nil {
			return err
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return server.Shutdown(ctx)
}
