package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"slothold/internal/api"
	"slothold/internal/config"
	"slothold/internal/events"
	"slothold/internal/janitor"
	"slothold/internal/metrics"
	"slothold/internal/reservation"
	"slothold/internal/store"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("SLOTHOLD_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	var st store.Store
	var failover *store.FailoverStore
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		st = store.NewRedisStore(rdb)
		if cfg.Redis.MemoryFallback {
			failover = store.NewFailoverStore(st, store.NewMemoryStore(), &logger)
			st = failover
		}
	} else {
		logger.Warn().Msg("redis.address not set, holds are kept in process memory")
		st = store.NewMemoryStore()
	}

	bus := events.NewBus(&logger)
	if cfg.Events.Enabled && rdb != nil {
		bus.Subscribe(events.RedisSink(rdb, cfg.Events.Channel))
	}

	opts := []reservation.Option{
		reservation.WithPolicy(cfg.Policy()),
		reservation.WithPublisher(bus),
	}
	var m *metrics.Metrics
	if cfg.Monitoring.PrometheusEnabled {
		m = metrics.New("slothold", prometheus.DefaultRegisterer)
		opts = append(opts, reservation.WithMetrics(m))
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}
	engine := reservation.NewEngine(st, &logger, opts...)

	if cfg.Janitor.Enabled {
		j := janitor.NewScheduler(janitor.Config{Interval: cfg.JanitorInterval(), RunOnStart: true}, engine, &logger)
		go j.Start(ctx)
	}

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, st, failover, &logger)

	rps, burst := cfg.RateLimit()
	server := api.NewHTTPServer(engine, api.Options{
		RateLimitRPS:   rps,
		RateLimitBurst: burst,
		Metrics:        m,
	}, &logger)

	logger.Info().
		Dur("lease", engine.Policy().LeaseDuration).
		Bool("redis", rdb != nil).
		Msg("slot reservation service started")
	if err := server.Serve(ctx, cfg.HTTP.Port); err != nil {
		logger.Fatal().Err(err).Msg("API server error")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	var logger zerolog.Logger
	if cfg.Log.Format == "json" {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return logger.Level(cfg.LogLevel()).With().Timestamp().Logger()
}

func startHealthServer(ctx context.Context, port int, st store.Store, failover *store.FailoverStore, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := st.Ping(ctxPing); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		if failover != nil && failover.Degraded() {
			_, _ = w.Write([]byte("degraded"))
			return
		}
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
