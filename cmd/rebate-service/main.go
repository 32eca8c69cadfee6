package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/Cheertaboi/customer-rebates/internal/api"
	"github.com/Cheertaboi/customer-rebates/internal/cache"
	"github.com/Cheertaboi/customer-rebates/internal/config"
	"github.com/Cheertaboi/customer-rebates/internal/logging"
	"github.com/Cheertaboi/customer-rebates/internal/metrics"
	"github.com/Cheertaboi/customer-rebates/internal/migrations"
	"github.com/Cheertaboi/customer-rebates/internal/repository"
	"github.com/Cheertaboi/customer-rebates/internal/service"
	"github.com/Cheertaboi/customer-rebates/pkg/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.NewLogger("json", "info")
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := logging.NewLogger(cfg.LogFormat, cfg.LogLevel)

	conn, err := db.NewPostgresConnection(context.Background(), cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer conn.Close()

	if cfg.MigrateOnStart {
		if err := migrations.Up(conn); err != nil {
			log.Fatal().Err(err).Msg("apply migrations")
		}
		log.Info().Msg("migrations applied")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("parse REDIS_URL")
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, rule cache will miss")
		}
	}

	reg := prometheus.NewRegistry()
	svc := service.NewRebateService(
		repository.NewRebateRepo(conn, 4),
		repository.NewCustomerRepo(conn),
		repository.NewProductRepo(conn),
		service.Options{
			Mode:            cfg.Selection,
			PriceType:       cfg.PriceType,
			DefaultLocale:   cfg.DefaultLocale,
			DefaultCurrency: cfg.DefaultCurrency,
			Cache:           cache.NewRuleCache(redisClient, cfg.RuleCacheTTL),
			Metrics:         metrics.New(cfg.MetricsNS, reg),
			Logger:          log,
		},
	)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      api.NewRouter(svc, log, reg),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// graceful shutdown
	idleConnsClosed := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("http server shutdown")
		}
		close(idleConnsClosed)
	}()

	log.Info().
		Str("addr", srv.Addr).
		Str("selection", string(cfg.Selection)).
		Str("price_type", string(cfg.PriceType)).
		Msg("starting rebate-service")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("listen")
	}

	<-idleConnsClosed
	log.Info().Msg("server stopped")
}
