package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pathway/internal/app"
	"github.com/felixgeelhaar/pathway/internal/logging"
	mcpserver "github.com/felixgeelhaar/pathway/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the learning engine over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP()
		},
	}
}

// runMCP owns stdout for the protocol, so logs only go to the log file.
func runMCP() error {
	dir, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, logFile, err := logging.Setup(logging.Options{
		Dir:   dir,
		Name:  "pathway-mcp",
		Level: logging.ParseLevel(cfg.Daemon.LogLevel),
	})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer a.Close()

	srv := mcpserver.NewServer(mcpserver.Config{
		Engine:          a.Router,
		DefaultLanguage: cfg.Learning.DefaultLanguage,
		Version:         Version,
	})
	return srv.ServeStdio(ctx)
}
