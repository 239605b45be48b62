// Package scenario loads learning scenarios from a directory of YAML files
// and serves them as a domain.ScenarioRepository.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

// ErrInvalidDocument is returned when a scenario file fails schema
// validation.
var ErrInvalidDocument = errors.New("invalid scenario document")

// Parse validates and decodes one scenario document.
func Parse(data []byte) (*domain.Scenario, error) {
	if err := ValidateDocument(data); err != nil {
		return nil, err
	}
	var s domain.Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// ParseFile reads and parses a scenario file.
func ParseFile(path string) (*domain.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if info, err := os.Stat(path); err == nil {
		s.CreatedAt = info.ModTime().UTC()
		s.UpdatedAt = s.CreatedAt
	}
	return s, nil
}

// Catalog is a ScenarioRepository backed by *.yaml files in one directory.
type Catalog struct {
	dir       string
	mu        sync.RWMutex
	scenarios map[string]*domain.Scenario
	logger    *slog.Logger
}

// NewCatalog creates a catalog over dir. Call Load to read the files.
func NewCatalog(dir string) *Catalog {
	return &Catalog{
		dir:       dir,
		scenarios: make(map[string]*domain.Scenario),
		logger:    slog.Default(),
	}
}

// Load reads every scenario file in the directory. Invalid files are logged
// and skipped; the number of loaded scenarios is returned.
func (c *Catalog) Load() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read scenarios directory: %w", err)
	}

	loaded := make(map[string]*domain.Scenario)
	for _, entry := range entries {
		if entry.IsDir() || !isScenarioFile(entry.Name()) {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		s, err := ParseFile(path)
		if err != nil {
			c.logger.Warn("skipping invalid scenario", "path", path, "error", err)
			continue
		}
		if _, dup := loaded[s.ID]; dup {
			c.logger.Warn("skipping duplicate scenario id", "path", path, "scenario_id", s.ID)
			continue
		}
		loaded[s.ID] = s
	}

	c.mu.Lock()
	c.scenarios = loaded
	c.mu.Unlock()
	return len(loaded), nil
}

func isScenarioFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// FindByID implements domain.ScenarioRepository.
func (c *Catalog) FindByID(ctx context.Context, id string) (*domain.Scenario, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.scenarios[id]
	if !ok {
		return nil, domain.ErrScenarioNotFound
	}
	return s, nil
}

// List returns all scenarios sorted by ID, optionally filtered by mode.
func (c *Catalog) List(mode domain.Mode) []*domain.Scenario {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*domain.Scenario, 0, len(c.scenarios))
	for _, s := range c.scenarios {
		if mode == "" || s.Mode == mode {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Save writes the scenario as <id>.yaml and makes it visible to FindByID.
func (c *Catalog) Save(ctx context.Context, s *domain.Scenario) error {
	if err := s.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode scenario: %w", err)
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create scenarios directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(c.dir, s.ID+".yaml"), data, 0644); err != nil {
		return fmt.Errorf("write scenario: %w", err)
	}

	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	c.mu.Lock()
	c.scenarios[s.ID] = s
	c.mu.Unlock()
	return nil
}

var (
	_ domain.ScenarioRepository = (*Catalog)(nil)
	_ domain.ScenarioWriter     = (*Catalog)(nil)
)
