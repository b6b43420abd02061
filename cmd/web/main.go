package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"aura-farm-transformer/internal/archive"
	"aura-farm-transformer/internal/config"
	"aura-farm-transformer/internal/httpclient"
	"aura-farm-transformer/internal/openai"
	"aura-farm-transformer/internal/session"
	"aura-farm-transformer/internal/visitor"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	s := &server{
		ai: openai.New(openai.Options{
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.OpenAIImageModel,
			HTTPClient: httpClient,
			Logger:     logger,
		}),
		packager: archive.New(archive.Options{
			HTTPClient:  httpClient,
			Logger:      logger,
			Concurrency: cfg.MaxConcurrent,
		}),
		sessions: session.NewStore(),
		visitors: visitor.NewTracker(visitor.Options{
			Path:   cfg.VisitorDataFile,
			Logger: logger,
		}),
		logger:         logger,
		requestTimeout: cfg.RequestTimeout,
		sizes:          openai.Sizes,
	}

	srv := &http.Server{
		Addr:              cfg.WebAddr,
		Handler:           withLogging(s.routes(), logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	logger.Info("web started", "addr", cfg.WebAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
}
