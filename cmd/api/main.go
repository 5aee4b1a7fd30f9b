package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"

	"github.com/cardloop/users-api/internal/app/migrate"
	"github.com/cardloop/users-api/internal/events"
	httpx "github.com/cardloop/users-api/internal/http"
	"github.com/cardloop/users-api/internal/repository/postgres"
	"github.com/cardloop/users-api/internal/service/cards"
	"github.com/cardloop/users-api/internal/service/user"
	"github.com/cardloop/users-api/internal/ws"
	"github.com/cardloop/users-api/pkg/config"
	"github.com/cardloop/users-api/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New("users-api", logger.ParseLevel(config.GetString("LOG_LEVEL", "info")))

	if cfg.JWTSecret == "" {
		log.Error("JWT_SECRET is not set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	feed := ws.NewHub()

	userSvc := user.New(repo, log, cfg)
	sink := cards.New(feed, log)

	if addr := strings.TrimSpace(cfg.EventsRedisAddr); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.EventsRedisPassword,
			DB:       cfg.EventsRedisDB,
		})
		defer client.Close()
		subscriber := events.NewSubscriber(client, sink, log, events.SubscriberConfig{
			Stream:   cfg.EventStream,
			Group:    cfg.EventGroup,
			Consumer: cfg.EventConsumer,
		})
		go func() {
			if err := subscriber.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("card event subscriber stopped", "error", err)
			}
		}()
	} else {
		log.Warn("EVENTS_REDIS_ADDR not set, card events disabled")
	}

	var limiter httpx.RateLimiter
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}
	if limiter == nil {
		limiter = httpx.NewMemoryRateLimiter()
	}

	router := httpx.NewRouter(log, userSvc, feed, limiter, cfg, pool.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("users api starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("users api stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
