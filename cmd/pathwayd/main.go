package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/felixgeelhaar/pathway/internal/app"
	"github.com/felixgeelhaar/pathway/internal/config"
	"github.com/felixgeelhaar/pathway/internal/daemon"
	"github.com/felixgeelhaar/pathway/internal/logging"
)

const (
	pidFileName = "pathwayd.pid"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("daemon error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	pathwayDir, err := config.EnsurePathwayDir()
	if err != nil {
		return fmt.Errorf("ensure pathway dir: %w", err)
	}

	cfg, err := config.LoadLocalConfigFrom(pathwayDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logFile, err := logging.Setup(logging.Options{
		Dir:     pathwayDir,
		Name:    "pathwayd",
		Level:   logging.ParseLevel(cfg.Daemon.LogLevel),
		Console: os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logFile.Close()

	pidPath := filepath.Join(pathwayDir, pidFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	a, err := app.New(rootCtx, cfg, app.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer a.Close()

	daemon.Version = Version
	serverCfg := daemon.ServerConfig{
		Config:    cfg,
		Engine:    a.Router,
		Ping:      a.Ping,
		Providers: a.LLM.List,
		Logger:    logger,
	}
	if a.Analytics != nil {
		serverCfg.Analytics = a.Analytics
	}
	server := daemon.NewServer(serverCfg)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		logger.Info("received signal, shutting down", "signal", sig.String())
		stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
		close(done)
	}()

	if err := server.Start(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("daemon stopped")
	return nil
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}
