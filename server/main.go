package server

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talhaxhahid/ChildCompass-Backend/pkg/config"
	"github.com/talhaxhahid/ChildCompass-Backend/pkg/logger"
)

// Main is the server entry point
func Main() {
	addr := flag.String("addr", "", "Server address (overrides config)")
	configPath := flag.String("config", "", "Config file path (optional)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	logger.Init(logger.LogLevel(*logLevel), *logFormat)
	log := logger.Get()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.ErrorWithErr("failed to load configuration", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Address = *addr
	}

	log.InfoWith("configuration loaded", "address", cfg.Address, "database", cfg.Database.Type)

	srv, err := NewServer(cfg)
	if err != nil {
		log.ErrorWithErr("failed to create server", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	errorChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errorChan <- err
		}
	}()

	log.InfoWith("server is running", "address", cfg.Address)

	select {
	case sig := <-sigChan:
		log.InfoWith("received signal, shutting down", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.ErrorWithErr("error during shutdown", err)
		}
		log.InfoWith("server stopped")

	case err := <-errorChan:
		log.ErrorWithErr("server encountered fatal error", err)
		os.Exit(1)
	}
}
