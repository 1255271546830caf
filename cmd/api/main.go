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

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skybtp/crewboard/internal/app/migrate"
	httpx "github.com/skybtp/crewboard/internal/http"
	"github.com/skybtp/crewboard/internal/repository"
	"github.com/skybtp/crewboard/internal/repository/memory"
	"github.com/skybtp/crewboard/internal/repository/postgres"
	"github.com/skybtp/crewboard/internal/service/auth"
	"github.com/skybtp/crewboard/internal/service/events"
	"github.com/skybtp/crewboard/internal/service/team"
	"github.com/skybtp/crewboard/internal/ws"
	"github.com/skybtp/crewboard/pkg/config"
	"github.com/skybtp/crewboard/pkg/logger"
)

type store interface {
	repository.UserRepository
	repository.TeamRepository
}

func main() {
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	inMemory := flag.Bool("in-memory", false, "keep data in process memory instead of postgres")
	flag.Parse()

	config.LoadDotEnv(*envFile)
	cfg := config.LoadAPIConfig()
	log := logger.New("crewboard-api", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		repo     store
		dbHealth func(context.Context) error
	)
	if *inMemory || strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Warn("using in-memory storage; data is lost on restart")
		repo = memory.New()
	} else {
		pool, err := openDatabase(ctx, cfg, log)
		if err != nil {
			log.Error("database setup failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		repo = postgres.New(pool)
		dbHealth = pool.Ping
	}

	hub := ws.NewHub()
	defer hub.Close()
	eventSvc := events.New(hub, log)
	authSvc := auth.New(repo, log, cfg)
	teamSvc := team.New(repo, repo, eventSvc, cfg.RosterCapacity, log)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter.Close()
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, authSvc, teamSvc, eventSvc, limiter, cfg.EventHeartbeat, dbHealth)
	defer router.Close()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Error("invalid TRUSTED_PROXIES", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "env", cfg.Environment, "roster_capacity", cfg.RosterCapacity)
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

// openDatabase connects and applies pending migrations.
func openDatabase(ctx context.Context, cfg config.APIConfig, log *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := runner.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := runner.Ensure(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
