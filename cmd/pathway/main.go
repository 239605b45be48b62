package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pathway/internal/config"
)

// Version is set at build time via ldflags
var Version = "dev"

const pidFile = "pathwayd.pid"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pathway",
		Short:         "Unified learning progression and evaluation engine",
		Long:          "Pathway runs assessment, project and discovery learning programs and evaluates learner progress.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newConfigCmd(),
		newProviderCmd(),
		newStartCmd(),
		newStopCmd(),
		newStatusCmd(),
		newLogsCmd(),
		newScenarioCmd(),
		newMigrateCmd(),
		newMCPCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pathway %s\n", Version)
		},
	}
}

// loadConfig reads ~/.pathway (or $PATHWAY_HOME) and returns the directory
// alongside the resolved configuration.
func loadConfig() (string, *config.Config, error) {
	dir, err := config.EnsurePathwayDir()
	if err != nil {
		return "", nil, fmt.Errorf("ensure pathway dir: %w", err)
	}
	cfg, err := config.LoadLocalConfigFrom(dir)
	if err != nil {
		return "", nil, fmt.Errorf("load config: %w", err)
	}
	return dir, cfg, nil
}

func daemonURL(cfg *config.Config) string {
	return "http://" + cfg.Daemon.Addr()
}
