package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "review_action/internal/adapters/http_server"
	"review_action/internal/adapters/observability"
	redisad "review_action/internal/adapters/redis"
	"review_action/internal/app"
	"review_action/internal/shared"
	"review_action/internal/storage/sqlstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := shared.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger("review-api", cfg.AppEnv, cfg.LogLevel)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// db
	repo, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("database open failed")
	}
	defer repo.Close()
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema bootstrap failed")
	}
	log.Info().Str("driver", cfg.DBDriver).Msg("database connection ok")

	// cache holds sessions, so it is required here
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer cache.Close()
	if err := cache.Ping(ctx); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping failed")
	}

	actions, err := shared.LoadActions(cfg.ActionsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("action table")
	}
	analysis, err := app.NewAnalysisService(repo, cache, cfg.CacheTTL(), app.Options{
		K:           cfg.Clusters,
		Seed:        cfg.ClusterSeed,
		MaxFeatures: cfg.MaxFeatures,
		Weights:     cfg.Weights,
		Actions:     actions,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("analysis service")
	}

	// http
	var opts []server.Option
	if cfg.TrustProxy {
		opts = append(opts, server.WithRealIP())
	}
	srv := server.New(opts...)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Ingest:   app.NewIngestionService(repo, nil, cache),
		Analysis: analysis,
		Auth:     app.NewAuthService(repo, cache, cfg.SessionTTL()),
		Logins:   server.NewClientLimiter(cfg.LoginRPS, 5),
	})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
