package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"booru_feed/internal/bot"
	"booru_feed/internal/config"
	"booru_feed/internal/provider"
	"booru_feed/internal/scheduler"
	"booru_feed/internal/state"
	"booru_feed/internal/storage"
)

func main() {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	lib, err := state.Load(ctx, store, log)
	if err != nil {
		log.Error("load library", "error", err)
		os.Exit(1)
	}

	client := provider.New(http.DefaultClient, lib)
	client.SetBaseURLs(cfg.Rule34BaseURL, cfg.RealbooruBaseURL)

	b, err := bot.New(cfg.TelegramBotToken, client, lib, store, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	if cfg.WatcherEnabled() {
		sched := scheduler.New(store, client, lib, b, cfg.NotifyChatID, log)
		sched.SetTickInterval(cfg.WatchInterval)
		go sched.Run(ctx)
		log.Info("watching saved feeds", "chat_id", cfg.NotifyChatID, "interval", cfg.WatchInterval)
	}

	log.Info("starting bot")

	b.Run(ctx)

	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
