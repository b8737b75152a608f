package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"remnantsync/internal/api"
	"remnantsync/internal/config"
	"remnantsync/internal/db"
	"remnantsync/internal/observability"
	"remnantsync/internal/repository"
)

func redisOptions(raw string) (*redis.Options, error) {
	if strings.Contains(raw, "://") {
		return redis.ParseURL(raw)
	}
	return &redis.Options{Addr: raw}, nil
}

func main() {
	cfg := config.Load()

	addr := flag.String("addr", cfg.APIAddr, "Listen address")
	flag.Parse()

	observability.SetupLogger(cfg.LogLevel)
	if cfg.DatabaseURL == "" {
		slog.Error("missing required env vars: DATABASE_URL")
		os.Exit(1)
	}
	observability.Start(cfg.MetricsPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to postgres (pgxpool)", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	var cache *api.ResponseCache
	if cfg.RedisURL != "" {
		opts, err := redisOptions(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unavailable, serving without cache", "err", err)
		} else {
			cache = &api.ResponseCache{Client: redisClient, TTL: cfg.CacheTTL}
		}
	}

	mux := http.NewServeMux()
	api.Routes(mux, &repository.RemnantRepository{DB: pool}, cache)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("remnant api listening", "addr", *addr, "cache", cache != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("api server stopped", "err", err)
		os.Exit(1)
	}
}
