package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the Pathway daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			base := daemonURL(cfg)
			if isRunning(base) {
				fmt.Fprintln(out, "✓ Daemon is already running")
				return nil
			}

			pathwaydPath, err := findDaemonBinary()
			if err != nil {
				return fmt.Errorf("find daemon binary: %w", err)
			}

			proc := exec.Command(pathwaydPath)
			proc.Dir = dir
			configureDaemonProcess(proc)
			if err := proc.Start(); err != nil {
				return fmt.Errorf("start daemon: %w", err)
			}

			fmt.Fprint(out, "Starting daemon...")
			for i := 0; i < 30; i++ {
				time.Sleep(100 * time.Millisecond)
				if isRunning(base) {
					fmt.Fprintln(out, " ✓")
					fmt.Fprintf(out, "Daemon running at %s\n", base)
					return nil
				}
				fmt.Fprint(out, ".")
			}
			fmt.Fprintln(out, " ✗")
			return fmt.Errorf("daemon failed to start (check logs with 'pathway logs')")
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the Pathway daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			base := daemonURL(cfg)
			if !isRunning(base) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}

			data, err := os.ReadFile(filepath.Join(dir, pidFile))
			if err != nil {
				return fmt.Errorf("read PID file: %w", err)
			}
			pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
			if err != nil {
				return fmt.Errorf("parse PID: %w", err)
			}
			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("find process: %w", err)
			}

			fmt.Fprint(out, "Stopping daemon...")
			if err := process.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("send signal: %w", err)
			}
			for i := 0; i < 50; i++ {
				time.Sleep(100 * time.Millisecond)
				if !isRunning(base) {
					fmt.Fprintln(out, " ✓")
					return nil
				}
				fmt.Fprint(out, ".")
			}
			fmt.Fprintln(out, " ✗")
			return fmt.Errorf("daemon did not stop gracefully")
		},
	}
}

type daemonStatus struct {
	Status       string   `json:"status"`
	Version      string   `json:"version"`
	Storage      string   `json:"storage"`
	Modes        []string `json:"modes"`
	LLMProviders []string `json:"llm_providers"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), daemonURL(cfg))
		},
	}
}

func printStatus(out io.Writer, base string) error {
	if !isRunning(base) {
		fmt.Fprintln(out, "Status: stopped")
		return nil
	}

	resp, err := http.Get(base + "/v1/status")
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}
	defer resp.Body.Close()

	var status daemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("parse status: %w", err)
	}

	fmt.Fprintf(out, "Status:    %s\n", status.Status)
	fmt.Fprintf(out, "Version:   %s\n", status.Version)
	fmt.Fprintf(out, "Storage:   %s\n", status.Storage)
	fmt.Fprintf(out, "Modes:     %s\n", strings.Join(status.Modes, ", "))
	fmt.Fprintf(out, "Providers: %s\n", strings.Join(status.LLMProviders, ", "))
	fmt.Fprintf(out, "Address:   %s\n", base)
	return nil
}

func newLogsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logs",
		Short: "Show recent daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _, err := loadConfig()
			if err != nil {
				return err
			}
			return tailLog(cmd.OutOrStdout(), filepath.Join(dir, "logs", "pathwayd.log"), 4096)
		},
	}
}

// tailLog prints roughly the last window bytes of path, starting at a line
// boundary.
func tailLog(out io.Writer, path string, window int64) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(out, "No log file found. Start the daemon first.")
			return nil
		}
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}
	offset := info.Size() - window
	if offset < 0 {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReader(file)
	if offset > 0 {
		_, _ = reader.ReadString('\n')
	}
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		fmt.Fprintln(out, scanner.Text())
	}
	return scanner.Err()
}

// isRunning checks if the daemon is running by calling the health endpoint
func isRunning(base string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(base + "/v1/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// findDaemonBinary locates the pathwayd binary
func findDaemonBinary() (string, error) {
	if path, err := exec.LookPath("pathwayd"); err == nil {
		return path, nil
	}

	if self, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(self), "pathwayd")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	for _, path := range []string{"/usr/local/bin/pathwayd", "./pathwayd"} {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("pathwayd binary not found (build with 'go build ./cmd/pathwayd')")
}
