package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pulsewatch/pulse-alerting/internal/api"
	"github.com/pulsewatch/pulse-alerting/internal/cache"
	"github.com/pulsewatch/pulse-alerting/internal/config"
	"github.com/pulsewatch/pulse-alerting/internal/evaluator"
	"github.com/pulsewatch/pulse-alerting/internal/forecast"
	"github.com/pulsewatch/pulse-alerting/internal/incident"
	"github.com/pulsewatch/pulse-alerting/internal/metrics"
	"github.com/pulsewatch/pulse-alerting/internal/notify"
	"github.com/pulsewatch/pulse-alerting/internal/repo"
	"github.com/pulsewatch/pulse-alerting/internal/services"
	"github.com/pulsewatch/pulse-alerting/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting pulse-alerting", slog.String("ops_address", cfg.Server.OpsAddress))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	var redisCloser cache.Provider
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewRedisProvider(cache.RedisConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("redis cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
			redisCloser = provider
		}
	}
	if redisCloser != nil {
		defer redisCloser.Close()
	}

	docStore := repo.NewDocStoreClient(
		cfg.DocStore.Endpoint,
		cfg.DocStore.APIKey,
		cfg.DocStore.Timeout,
		cacheProvider,
		cfg.Cache.PreferencesTTL,
		cfg.Cache.ChannelsTTL,
	)

	mailer := repo.NewMailClient(cfg.Email.Endpoint, cfg.Email.APIKey, cfg.Email.From, cfg.Email.Timeout)
	if !mailer.IsConfigured() {
		logger.Warn("email provider not fully configured; email channels will report failures")
	}

	rules, err := evaluator.LoadRulePack(cfg.Rules.Path)
	if err != nil {
		logger.Error("failed to load rule pack", slog.String("path", cfg.Rules.Path), slog.Any("error", err))
		os.Exit(1)
	}
	if len(rules) > 0 {
		logger.Info("rule pack loaded", slog.Int("rules", len(rules)))
	}

	correlator := incident.NewCorrelator(logger, docStore)
	resolver := notify.NewPreferenceResolver(logger, docStore)
	dispatcher := notify.NewDispatcher(logger, resolver, correlator, docStore, mailer, cfg.Correlation.TimeWindowMinutes)

	svc := services.NewAlertingService(
		logger,
		forecast.NewEngine(),
		evaluator.NewEvaluator(),
		correlator,
		dispatcher,
		docStore,
	)
	svc.SetRulePack(rules)

	apiServer := api.NewServer(cfg.Server, cfg.Forecast, logger, svc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("api server listening", slog.String("address", cfg.Server.Address))
		if serveErr := apiServer.Start(); serveErr != nil {
			logger.Error("api server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	opsServer := &http.Server{
		Addr:         cfg.Server.OpsAddress,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		logger.Info("ops server listening", slog.String("address", cfg.Server.OpsAddress))
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server exited", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	svc.Flush()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("api server shutdown", slog.Any("error", err))
	}
	if err := opsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("ops server shutdown", slog.Any("error", err))
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("pulse-alerting stopped")
}
