package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/cache"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/handler"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/oracle"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/jobs"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting job filter service",
		"port", cfg.Server.Port,
		"backend", cfg.Filter.Backend,
		"jobs_source", cfg.Jobs.Source,
	)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		ms := metrics.NewServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		ms.Start()
		defer ms.Shutdown(context.Background())
	}

	checker := health.NewChecker()
	var store oracle.Store
	var redisClient *pkgredis.Client
	switch cfg.Filter.Backend {
	case config.BackendRedis:
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to membership store: %w", err)
		}
		defer redisClient.Close()
		store = oracle.NewRedisStore(redisClient)
		checker.Register("redis", health.PingCheck(redisClient))
		slog.Info("membership store: redis", "addr", cfg.Redis.Addr)
	default:
		store = oracle.NewMemoryStore()
		slog.Info("membership store: in-process bloom filters")
	}

	source, closeSource, err := jobSource(ctx, cfg)
	if err != nil {
		return err
	}
	p, err := buildPipeline(ctx, cfg, store, source, m)
	closeSource()
	if err != nil {
		return fmt.Errorf("provisioning: %w", err)
	}
	defer p.Close()

	checker.Register("provisioned", health.ConditionCheck(p.provisioner.Done, "indexes not provisioned"))
	checker.Register("oracle_breaker", health.StateCheck(p.oracle.BreakerState, resilience.StateClosed))

	var results handler.ResultAssembler = p.assembler
	if redisClient != nil && cfg.Redis.CacheTTL > 0 {
		qc := cache.New(redisClient, p.assembler, cfg.Redis.CacheTTL, cache.WithMetrics(m))
		if err := qc.Invalidate(ctx); err != nil {
			return err
		}
		results = qc
		slog.Info("result cache enabled", "ttl", cfg.Redis.CacheTTL)
	}

	var publisher analytics.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.FilterEvents)
		defer producer.Close()
		publisher = producer
		slog.Info("publishing filter events", "topic", cfg.Kafka.FilterEvents, "brokers", cfg.Kafka.Brokers)
	}
	aggregator := analytics.NewAggregator()
	collector := analytics.NewCollector(publisher, aggregator, 0)
	collector.Start(ctx)

	h := handler.New(results, collector)
	router := handler.NewRouter(h, handler.RouterConfig{
		Checker:   checker,
		Analytics: analytics.NewHandler(aggregator),
		Metrics:   m,
		Timeout:   cfg.Server.WriteTimeout,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("job filter service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}
	collector.Close()
	slog.Info("job filter service stopped")
	return nil
}

// jobSource opens the configured job source. The returned close function
// releases any connection it holds and is safe to call once loading is done.
func jobSource(ctx context.Context, cfg *config.Config) (jobs.Source, func(), error) {
	switch cfg.Jobs.Source {
	case config.SourcePostgres:
		client, err := postgres.New(ctx, cfg.Postgres, resilience.Backoff{Attempts: 5, Base: 500 * time.Millisecond})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to job database: %w", err)
		}
		source, err := jobs.NewPostgresSource(client, cfg.Jobs.Table)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return source, func() { client.Close() }, nil
	default:
		return jobs.FileSource{Path: cfg.Jobs.Path}, func() {}, nil
	}
}
