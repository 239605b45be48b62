package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pathway/internal/config"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create ~/.pathway with a default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			dir, err := config.EnsurePathwayDir()
			if err != nil {
				return fmt.Errorf("create directories: %w", err)
			}
			fmt.Fprintf(out, "Pathway directory: %s ✓\n", dir)

			configPath := filepath.Join(dir, "config.yaml")
			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				if err := config.SaveLocalConfigTo(dir, config.Default()); err != nil {
					return fmt.Errorf("save config: %w", err)
				}
				fmt.Fprintln(out, "Created default configuration ✓")
			} else {
				fmt.Fprintln(out, "Configuration already exists ✓")
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintln(out, "  1. pathway provider set-key claude   # enable LLM feedback")
			fmt.Fprintln(out, "  2. pathway scenario list             # see available scenarios")
			fmt.Fprintln(out, "  3. pathway start                     # start the daemon")
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, cfg, err := loadConfig()
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), dir, cfg)
			return nil
		},
	}
}

func printConfig(out io.Writer, dir string, cfg *config.Config) {
	fmt.Fprintln(out, "Daemon:")
	fmt.Fprintf(out, "  bind: %s\n", cfg.Daemon.Addr())
	fmt.Fprintf(out, "  log_level: %s\n", cfg.Daemon.LogLevel)

	fmt.Fprintln(out, "\nStorage:")
	fmt.Fprintf(out, "  driver: %s\n", cfg.Storage.Driver)
	if cfg.Storage.Driver == config.DriverPostgres {
		fmt.Fprintf(out, "  dsn: %s\n", keyStatus(cfg.Storage.DSN != ""))
	} else {
		fmt.Fprintf(out, "  path: %s\n", cfg.Storage.Path)
	}
	fmt.Fprintf(out, "  scenarios: %s\n", cfg.Scenarios.Dir)

	fmt.Fprintln(out, "\nIntegrations:")
	fmt.Fprintf(out, "  redis: enabled=%t addr=%s\n", cfg.Redis.Enabled, cfg.Redis.Addr)
	fmt.Fprintf(out, "  rabbitmq: enabled=%t consume=%t\n", cfg.RabbitMQ.Enabled, cfg.RabbitMQ.Consume)

	fmt.Fprintln(out, "\nLLM:")
	fmt.Fprintf(out, "  default_provider: %s\n", cfg.LLM.DefaultProvider)
	for _, name := range providerNames(cfg) {
		p := cfg.LLM.Providers[name]
		if !p.Enabled {
			continue
		}
		fmt.Fprintf(out, "  %s: model=%s key=%s\n", name, p.Model, keyStatus(p.APIKey != "" || name == "ollama"))
	}

	fmt.Fprintln(out, "\nLearning:")
	fmt.Fprintf(out, "  default_language: %s\n", cfg.Learning.DefaultLanguage)
	fmt.Fprintf(out, "  feedback_timeout: %s\n", cfg.Learning.FeedbackTimeout())

	fmt.Fprintf(out, "\nConfig path: %s\n", filepath.Join(dir, "config.yaml"))
}

func keyStatus(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func providerNames(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.LLM.Providers))
	for name := range cfg.LLM.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newProviderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Manage LLM providers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range providerNames(cfg) {
				p := cfg.LLM.Providers[name]
				status := "disabled"
				if p.Enabled {
					status = "ready"
					if p.APIKey == "" && name != "ollama" {
						status = "needs API key"
					}
				}
				suffix := ""
				if name == cfg.LLM.DefaultProvider {
					suffix = " (default)"
				}
				fmt.Fprintf(out, "  %s%s\n    status: %s\n    model:  %s\n", name, suffix, status, p.Model)
				if p.URL != "" {
					fmt.Fprintf(out, "    url:    %s\n", p.URL)
				}
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set-key <name>",
		Short: "Store an API key read from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return setProviderKey(cmd.InOrStdin(), cmd.OutOrStdout(), dir, cfg, args[0])
		},
	})
	return cmd
}

func setProviderKey(in io.Reader, out io.Writer, dir string, cfg *config.Config, name string) error {
	p, ok := cfg.LLM.Providers[name]
	if !ok {
		return fmt.Errorf("unknown provider: %s (valid: %s)", name, strings.Join(providerNames(cfg), ", "))
	}
	if name == "ollama" {
		fmt.Fprintln(out, "Ollama doesn't require an API key.")
		return nil
	}

	fmt.Fprintf(out, "Enter %s API key: ", name)
	key, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("read input: %w", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	if err := config.SaveSecrets(dir, map[string]string{name: key}); err != nil {
		return fmt.Errorf("save secrets: %w", err)
	}

	if !p.Enabled {
		p.Enabled = true
		if err := config.SaveLocalConfigTo(dir, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
	}

	fmt.Fprintf(out, "\n✓ API key saved for %s\n", name)
	fmt.Fprintln(out, "Restart the daemon for changes to take effect.")
	return nil
}
