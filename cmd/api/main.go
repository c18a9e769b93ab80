package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/stanislavNemch/psychologists-services/internal/app/migrate"
	httpx "github.com/stanislavNemch/psychologists-services/internal/http"
	"github.com/stanislavNemch/psychologists-services/internal/repository/postgres"
	"github.com/stanislavNemch/psychologists-services/internal/service/auth"
	"github.com/stanislavNemch/psychologists-services/internal/service/booking"
	"github.com/stanislavNemch/psychologists-services/internal/service/catalog"
	"github.com/stanislavNemch/psychologists-services/internal/service/favorites"
	"github.com/stanislavNemch/psychologists-services/internal/ws"
	"github.com/stanislavNemch/psychologists-services/pkg/config"
	"github.com/stanislavNemch/psychologists-services/pkg/logger"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadAPIConfig()
	log := logger.New("api", slog.LevelInfo)

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
	favoritesHub := ws.NewHub()

	revoker := auth.NewMemoryRevoker()
	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warn("redis unavailable, using in-memory fallbacks", "error", err)
			_ = client.Close()
		} else {
			revoker = auth.NewRedisRevoker(client)
			limiter = httpx.NewRedisRateLimiter(client, log)
		}
	}

	authSvc := auth.New(repo, revoker, log, cfg)
	catalogSvc := catalog.New(repo, log, cfg)
	favoritesSvc := favorites.New(repo, favoritesHub, log)
	bookingSvc := booking.New(repo, repo, log, cfg)
	feed := favorites.NewHubFeed(favoritesSvc)

	router := httpx.NewRouter(log, authSvc, catalogSvc, favoritesSvc, bookingSvc, feed, limiter, pool.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
