package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"aura-farm-transformer/internal/album"
	"aura-farm-transformer/internal/archive"
	"aura-farm-transformer/internal/config"
	"aura-farm-transformer/internal/handlers"
	"aura-farm-transformer/internal/httpclient"
	"aura-farm-transformer/internal/openai"
	"aura-farm-transformer/internal/session"
	"aura-farm-transformer/internal/telegram"
	"aura-farm-transformer/internal/visitor"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if cfg.TelegramToken == "" {
		panic("TELEGRAM_BOT_TOKEN is required")
	}

	logger := newLogger(cfg)

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	tg, err := telegram.New(telegram.Options{
		Token:      cfg.TelegramToken,
		HTTPClient: httpClient,
		Logger:     logger,
		Debug:      cfg.Debug,
	})
	if err != nil {
		logger.Error("telegram init failed", "err", err)
		os.Exit(1)
	}

	ai := openai.New(openai.Options{
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.OpenAIImageModel,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	packager := archive.New(archive.Options{
		HTTPClient:  httpClient,
		Logger:      logger,
		Concurrency: cfg.MaxConcurrent,
	})

	visitors := visitor.NewTracker(visitor.Options{
		Path:   cfg.VisitorDataFile,
		Logger: logger,
	})

	handler := handlers.New(handlers.Options{
		Telegram:       tg,
		OpenAI:         ai,
		Packager:       packager,
		Sessions:       session.NewStore(),
		Visitors:       visitors,
		Logger:         logger,
		ArchiveTimeout: cfg.RequestTimeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sem := make(chan struct{}, cfg.MaxConcurrent)
	onBatch := func(batch album.Batch) {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		go func() {
			defer func() { <-sem }()

			reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
			defer cancel()

			handler.HandleBatch(reqCtx, batch)
		}()
	}

	albums := album.New(album.Options{
		Debounce: cfg.AlbumDebounce,
		OnFlush:  onBatch,
	})
	handler.SetAlbumAggregator(albums)

	logger.Info("bot started", "username", tg.Username())

	updates := tg.Updates(telegram.UpdatesOptions{
		Timeout: 30 * time.Second,
	})
	defer tg.StopUpdates()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case update, ok := <-updates:
			if !ok {
				logger.Info("updates channel closed")
				return
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}

			go func(update telegram.Update) {
				defer func() { <-sem }()

				reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
				defer cancel()

				if err := handler.HandleUpdate(reqCtx, update); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("handle update failed", "err", err)
				}
			}(update)
		}
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
