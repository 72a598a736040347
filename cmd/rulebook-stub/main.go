package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/csheth/rulebook/internal/config"
	"github.com/csheth/rulebook/internal/logging"
	"github.com/csheth/rulebook/internal/stubserver"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (default ~/.config/rulebook/stub.toml)")
	addr := flag.String("addr", "", "listen address (default 127.0.0.1:8000)")
	logFile := flag.String("log-file", "", "write logs to this file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	opts := config.DefaultOptions()
	opts.ConfigFile = *configPath
	cfg, err := config.LoadStub(opts)
	if err != nil {
		fmt.Println("failed to load config:", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}
	if *debug {
		cfg.Debug = true
	}

	logger, err := logging.New(logging.Options{File: cfg.LogFile, Debug: cfg.Debug, Service: "rulebook-stub"})
	if err != nil {
		fmt.Println("failed to open log file:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	users, err := cfg.Credentials()
	if err != nil {
		fmt.Println("invalid users:", err)
		os.Exit(1)
	}
	srv, err := stubserver.New(stubserver.Config{
		Users:     users,
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
		Logger:    logger,
	})
	if err != nil {
		fmt.Println("failed to start stub:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown failed", zap.Error(err))
		}
	}()

	fmt.Printf("rulebook stub listening on http://%s (logs: %s)\n", cfg.Addr, cfg.LogFile)
	if err := srv.Listen(cfg.Addr); err != nil {
		fmt.Println("server error:", err)
		os.Exit(1)
	}
}
