// Command sniper is the entry point for the pump.fun sniper. It loads
// configuration, validates it, wires dependencies, sets up signal handling,
// and starts the application in the configured mode. One-off wallet
// maintenance modes can be selected with flags instead of the config file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/AV1080p/-solana-sniper-bot/internal/app"
	"github.com/AV1080p/-solana-sniper-bot/internal/config"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	wrapMode := flag.Bool("wrap", false, "wrap SOL into wrapped SOL and exit")
	unwrapMode := flag.Bool("unwrap", false, "close the wrapped SOL account and exit")
	sellMode := flag.Bool("sell", false, "sell every held token through the aggregator and exit")
	closeMode := flag.Bool("close", false, "close token accounts to reclaim rent and exit")
	nonceMode := flag.Bool("nonce", false, "create a durable nonce account and exit")
	flag.Parse()

	// Setup structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// Mode flags override the configured mode.
	var selected []string
	for _, f := range []struct {
		name string
		set  *bool
	}{
		{"wrap", wrapMode},
		{"unwrap", unwrapMode},
		{"sell", sellMode},
		{"close", closeMode},
		{"nonce", nonceMode},
	} {
		if *f.set {
			selected = append(selected, f.name)
		}
	}
	if len(selected) > 1 {
		logger.Error("at most one mode flag may be set",
			slog.String("flags", strings.Join(selected, ", ")),
		)
		os.Exit(1)
	}
	if len(selected) == 1 {
		cfg.Mode = selected[0]
	}

	// Set log level from config.
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("sniper starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)

	// Create the application.
	application := app.New(cfg, logger)
	defer application.Close()

	// Setup signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run the application.
	if err := application.Run(ctx); err != nil {
		// context.Canceled is expected on clean shutdown.
		if err == context.Canceled {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error",
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("sniper stopped")
}
