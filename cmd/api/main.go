package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Haleralex/marketbridge/internal/config"
	"github.com/Haleralex/marketbridge/internal/container"
)

// Заполняются через -ldflags при сборке.
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config-path", "configs", "Directory with the config file")
	configName := flag.String("config-name", "config", "Config file name without extension")
	flag.Parse()

	// 1. Environment
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, relying on environment")
	}

	// 2. Configuration
	cfg, err := config.Load(*configPath, *configName)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if version != "dev" {
		cfg.App.Version = version
	}
	if cfg.App.BuildTime == "" {
		cfg.App.BuildTime = buildTime
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Dependencies
	c := container.New(cfg)
	if err := c.Initialize(ctx); err != nil {
		log.Fatalf("failed to initialize container: %v", err)
	}
	logger := c.Logger()

	// 4. HTTP Server (до отмены ctx)
	runErr := c.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := c.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", slog.String("error", err.Error()))
	}

	if runErr != nil {
		logger.Error("Server error", slog.String("error", runErr.Error()))
		os.Exit(1)
	}

	logger.Info("Server stopped gracefully")
}
