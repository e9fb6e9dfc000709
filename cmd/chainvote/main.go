package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"chainvote/pkg/app"
	"chainvote/pkg/config"
	"chainvote/pkg/ui"
	"chainvote/pkg/utils"
)

var (
	configFile = flag.String("config", "config.yaml", "Path to configuration file")
	envFile    = flag.String("env-file", ".env", "Path to a .env file loaded before the configuration")
	rotateLogs = flag.Bool("rotate-logs", false, "Rotate the log file before starting")
	debug      = flag.Bool("debug", false, "Enable debug mode")
)

func main() {
	flag.Parse()

	if err := loadEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load environment file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg, *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prompter := ui.NewPrompter(os.Stdin, os.Stdout)
	client, err := app.New(cfg, ui.NewTerminal(os.Stdout), prompter, logger)
	if err != nil {
		logger.Fatal("Failed to initialize client", zap.Error(err))
	}

	if err := client.Startup(ctx); err != nil {
		logger.Fatal("Failed to start client", zap.Error(err))
	}

	setupGracefulShutdown(ctx, cancel, logger)

	done := make(chan error, 1)
	go func() {
		done <- client.Run(ctx, prompter)
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("Command loop stopped", zap.Error(err))
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := client.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
}

// setupGracefulShutdown cancels ctx on SIGINT or SIGTERM
func setupGracefulShutdown(ctx context.Context, cancel context.CancelFunc, logger *zap.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()
}

// loadEnv loads path into the process environment. A missing file is fine.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg *config.Config, debug bool) (*zap.Logger, error) {
	level := cfg.GetLogLevel()
	if debug {
		level.SetLevel(zap.DebugLevel)
		cfg.Log.Console = true
	}

	if *rotateLogs {
		if err := utils.RotateLogs(cfg.Log.OutputPath); err != nil {
			return nil, err
		}
	}

	return utils.NewLogger(&cfg.Log, level, debug || cfg.IsDevelopment())
}
