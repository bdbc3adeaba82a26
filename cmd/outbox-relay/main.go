package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Haleralex/marketbridge/internal/application/outbox"
	"github.com/Haleralex/marketbridge/internal/config"
	"github.com/Haleralex/marketbridge/internal/container"
	natsmsg "github.com/Haleralex/marketbridge/internal/infrastructure/messaging/nats"
	"github.com/Haleralex/marketbridge/internal/infrastructure/persistence/postgres"
	"github.com/Haleralex/marketbridge/internal/pkg/logger"
)

const serviceName = "outbox-relay"

func main() {
	configPath := flag.String("config-path", "configs", "Directory with the config file")
	configName := flag.String("config-name", "config", "Config file name without extension")
	metricsAddr := flag.String("metrics-addr", ":9091", "Address for the Prometheus /metrics endpoint; empty disables it")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, relying on environment")
	}

	cfg, err := config.Load(*configPath, *configName)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg := logger.Setup(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      os.Stdout,
		AddSource:   cfg.Log.AddSource,
		ServiceName: serviceName,
		Environment: cfg.App.Environment,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg, *metricsAddr); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error("outbox relay stopped unexpectedly", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logg.Info("outbox relay shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *slog.Logger, metricsAddr string) error {
	if cfg.Database.InMemory {
		return errors.New("outbox relay requires PostgreSQL storage")
	}

	pool, err := postgres.NewConnectionPool(ctx, container.PostgresConfig(cfg.Database))
	if err != nil {
		return err
	}
	defer pool.Close()

	conn, err := natsmsg.Connect(natsmsg.Config{
		URL:           cfg.NATS.URL,
		Name:          serviceName,
		MaxReconnects: cfg.NATS.MaxReconnects,
		ReconnectWait: cfg.NATS.ReconnectWait,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	repo := postgres.NewOutboxRepository(pool).WithMaxRetries(cfg.Outbox.MaxRetries)
	relay, err := outbox.NewRelay(
		postgres.NewUnitOfWork(pool),
		repo,
		natsmsg.NewPublisher(conn),
		logg,
		outbox.Config{
			BatchSize:    cfg.Outbox.BatchSize,
			PollInterval: cfg.Outbox.PollInterval,
			Subject:      natsmsg.Subject,
			Retention:    cfg.Outbox.Retention,
		},
	)
	if err != nil {
		return err
	}

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logg.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logg.Info("starting outbox relay",
		slog.String("nats_url", cfg.NATS.URL),
		slog.Int("batch_size", cfg.Outbox.BatchSize),
		slog.Duration("poll_interval", cfg.Outbox.PollInterval),
	)

	return relay.Run(ctx)
}
