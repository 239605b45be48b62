package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/pathway/internal/config"
	"github.com/felixgeelhaar/pathway/internal/domain"
	"github.com/felixgeelhaar/pathway/internal/storage/sqlite"
)

const discoveryYAML = `
id: game-designer
mode: discovery
title: Game Designer
discovery:
  career_type: game_designer
  skill_tree:
    core_skills:
      - id: storytelling
        name: Storytelling
`

const invalidYAML = `
id: broken
mode: sculpting
title: Broken
`

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func pathwayHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PATHWAY_HOME", dir)
	t.Setenv("PATHWAY_STORAGE_DRIVER", "")
	t.Setenv("PATHWAY_LLM_PROVIDER", "")
	return dir
}

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "", "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, "pathway "+Version) {
		t.Errorf("output = %q", out)
	}
}

func TestScenarioValidate(t *testing.T) {
	dir := t.TempDir()
	good := writeScenario(t, dir, "game-designer.yaml", discoveryYAML)
	bad := writeScenario(t, dir, "broken.yaml", invalidYAML)

	tests := []struct {
		name    string
		files   []string
		wantErr bool
		want    string
	}{
		{"valid", []string{good}, false, "✓"},
		{"invalid", []string{bad}, true, "✗"},
		{"mixed", []string{good, bad}, true, "1 of 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := validateScenarios(&out, tt.files)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateScenarios() error = %v, wantErr %v", err, tt.wantErr)
			}
			got := out.String()
			if err != nil {
				got += err.Error()
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScenarioList(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "game-designer.yaml", discoveryYAML)

	var out bytes.Buffer
	if err := listScenarios(&out, dir, domain.ModeDiscovery); err != nil {
		t.Fatalf("listScenarios() error = %v", err)
	}
	if !strings.Contains(out.String(), "game-designer") {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	if err := listScenarios(&out, dir, domain.ModeAssessment); err != nil {
		t.Fatalf("listScenarios() error = %v", err)
	}
	if strings.Contains(out.String(), "game-designer") {
		t.Errorf("assessment filter listed discovery scenario: %q", out.String())
	}

	if err := listScenarios(&out, dir, "sculpting"); !errors.Is(err, domain.ErrUnknownMode) {
		t.Errorf("listScenarios(unknown) error = %v, want ErrUnknownMode", err)
	}
}

func TestScenarioImport_SQLite(t *testing.T) {
	src := t.TempDir()
	writeScenario(t, src, "game-designer.yaml", discoveryYAML)
	dbPath := filepath.Join(t.TempDir(), "data", "pathway.db")
	storage := config.StorageConfig{Driver: config.DriverSQLite, Path: dbPath}

	var out bytes.Buffer
	if err := importScenarios(context.Background(), &out, storage, src); err != nil {
		t.Fatalf("importScenarios() error = %v", err)
	}

	db, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()
	store := sqlite.NewScenarioStore(db)
	n, err := store.Warm(context.Background())
	if err != nil {
		t.Fatalf("Warm() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Warm() = %d scenarios, want 1", n)
	}
	if _, err := store.FindByID(context.Background(), "game-designer"); err != nil {
		t.Errorf("FindByID() error = %v", err)
	}
}

func TestScenarioImport_Errors(t *testing.T) {
	src := t.TempDir()
	writeScenario(t, src, "game-designer.yaml", discoveryYAML)

	tests := []struct {
		name    string
		storage config.StorageConfig
		dir     string
	}{
		{"local driver", config.StorageConfig{Driver: config.DriverLocal, Path: t.TempDir()}, src},
		{"empty dir", config.StorageConfig{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "x.db")}, t.TempDir()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := importScenarios(context.Background(), &out, tt.storage, tt.dir); err == nil {
				t.Error("importScenarios() error = nil, want error")
			}
		})
	}
}

func TestMigrate(t *testing.T) {
	tests := []struct {
		name    string
		storage config.StorageConfig
		want    string
	}{
		{"sqlite", config.StorageConfig{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "db", "pathway.db")}, "up to date"},
		{"local", config.StorageConfig{Driver: config.DriverLocal, Path: t.TempDir()}, "no schema"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := migrate(context.Background(), &out, tt.storage); err != nil {
				t.Fatalf("migrate() error = %v", err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output = %q, want %q", out.String(), tt.want)
			}
		})
	}
}

func TestProviderSetKey(t *testing.T) {
	home := pathwayHome(t)

	if _, err := runCLI(t, "sk-test\n", "provider", "set-key", "openai"); err != nil {
		t.Fatalf("provider set-key error = %v", err)
	}

	cfg, err := config.LoadLocalConfigFrom(home)
	if err != nil {
		t.Fatalf("LoadLocalConfigFrom() error = %v", err)
	}
	p := cfg.LLM.Providers["openai"]
	if p.APIKey != "sk-test" || !p.Enabled {
		t.Errorf("openai = enabled:%t key:%q, want enabled with key", p.Enabled, p.APIKey)
	}

	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{"unknown provider", "sk\n", []string{"provider", "set-key", "mystery"}},
		{"empty key", "\n", []string{"provider", "set-key", "claude"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCLI(t, tt.stdin, tt.args...); err == nil {
				t.Error("error = nil, want error")
			}
		})
	}
}

func TestInitAndConfig(t *testing.T) {
	home := pathwayHome(t)

	out, err := runCLI(t, "", "init")
	if err != nil {
		t.Fatalf("init error = %v", err)
	}
	if !strings.Contains(out, "Created default configuration") {
		t.Errorf("init output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(home, "config.yaml")); err != nil {
		t.Fatalf("config.yaml not written: %v", err)
	}

	out, err = runCLI(t, "", "config")
	if err != nil {
		t.Fatalf("config error = %v", err)
	}
	for _, want := range []string{"driver: sqlite", "default_provider: auto", "default_language: en"} {
		if !strings.Contains(out, want) {
			t.Errorf("config output missing %q:\n%s", want, out)
		}
	}
}

func TestTailLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pathwayd.log")
	var content strings.Builder
	for i := 0; i < 100; i++ {
		content.WriteString("line of daemon output\n")
	}
	content.WriteString("last line\n")
	if err := os.WriteFile(path, []byte(content.String()), 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := tailLog(&out, path, 64); err != nil {
		t.Fatalf("tailLog() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if lines[len(lines)-1] != "last line" {
		t.Errorf("last line = %q", lines[len(lines)-1])
	}
	if len(lines) > 3 {
		t.Errorf("tailLog() printed %d lines, want at most 3", len(lines))
	}

	out.Reset()
	if err := tailLog(&out, filepath.Join(dir, "missing.log"), 64); err != nil {
		t.Fatalf("tailLog(missing) error = %v", err)
	}
	if !strings.Contains(out.String(), "No log file") {
		t.Errorf("output = %q", out.String())
	}
}

func TestStatus_Stopped(t *testing.T) {
	var out bytes.Buffer
	if err := printStatus(&out, "http://127.0.0.1:1"); err != nil {
		t.Fatalf("printStatus() error = %v", err)
	}
	if !strings.Contains(out.String(), "stopped") {
		t.Errorf("output = %q", out.String())
	}
}
