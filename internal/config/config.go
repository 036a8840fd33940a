package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "sygus.yaml"

type SolverConfig struct {
	Command string        `yaml:"command"` // solver argv, split on whitespace
	Timeout time.Duration `yaml:"timeout"` // per check-sat bound; 0 disables
	Mode    string        `yaml:"mode"`    // per-constraint | whole-spec
}

type SearchConfig struct {
	Strategy            string        `yaml:"strategy"` // bfs | priority
	MaxIterations       int           `yaml:"max_iterations"`
	MaxVerifications    int           `yaml:"max_verifications"`
	Timeout             time.Duration `yaml:"timeout"`
	MaxDepth            int           `yaml:"max_depth"`
	MaxFrontier         int           `yaml:"max_frontier"`
	CounterexampleCache bool          `yaml:"counterexample_cache"`
	Workers             int           `yaml:"workers"`
}

type HeuristicConfig struct {
	Kind          string  `yaml:"kind"` // uniform | terminal-first | table
	Table         string  `yaml:"table"`
	DefaultWeight float64 `yaml:"default_weight"`
	// Record keeps every verification result the search reports to the
	// heuristic and stores the tally with the run.
	Record bool `yaml:"record"`
}

type StorageConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the /metrics endpoint
}

type Config struct {
	Solver    SolverConfig    `yaml:"solver"`
	Search    SearchConfig    `yaml:"search"`
	Heuristic HeuristicConfig `yaml:"heuristic"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Solver: SolverConfig{
			Command: "z3 -in -smt2",
			Timeout: 10 * time.Second,
			Mode:    "per-constraint",
		},
		Search: SearchConfig{
			Strategy:      "bfs",
			MaxIterations: 1_000_000,
			Timeout:       5 * time.Minute,
			Workers:       1,
		},
		Heuristic: HeuristicConfig{
			Kind:          "uniform",
			DefaultWeight: 0.9,
		},
		Storage: StorageConfig{
			Path: "sygus.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads path on top of Default. A missing file is not an
// error; a malformed one is.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config
	if path == "" {
		path = DefaultPath
	}
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	// 3. Override with Environment Variables if present
	if solver := os.Getenv("SYGUS_SOLVER"); solver != "" {
		cfg.Solver.Command = solver
	}
	if db := os.Getenv("SYGUS_DB"); db != "" {
		cfg.Storage.Path = db
	}
	if level := os.Getenv("SYGUS_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if strategy := os.Getenv("SYGUS_STRATEGY"); strategy != "" {
		cfg.Search.Strategy = strategy
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SolverArgv splits the solver command line.
func (c *Config) SolverArgv() []string {
	return strings.Fields(c.Solver.Command)
}

func oneOf(field, value string, allowed ...string) error {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q (want one of %s)", field, value, strings.Join(allowed, ", "))
}

// Validate rejects unknown enumerations and out-of-range numbers.
func (c *Config) Validate() error {
	var errs []error
	if len(c.SolverArgv()) == 0 {
		errs = append(errs, errors.New("solver.command is empty"))
	}
	if err := oneOf("solver.mode", c.Solver.Mode, "per-constraint", "whole-spec"); err != nil {
		errs = append(errs, err)
	}
	if err := oneOf("search.strategy", c.Search.Strategy, "bfs", "priority"); err != nil {
		errs = append(errs, err)
	}
	if err := oneOf("heuristic.kind", c.Heuristic.Kind, "uniform", "terminal-first", "table"); err != nil {
		errs = append(errs, err)
	}
	if strings.EqualFold(c.Heuristic.Kind, "table") && c.Heuristic.Table == "" {
		errs = append(errs, errors.New("heuristic.table is required for the table heuristic"))
	}
	if c.Heuristic.DefaultWeight <= 0 {
		errs = append(errs, fmt.Errorf("heuristic.default_weight must be positive, got %v", c.Heuristic.DefaultWeight))
	}
	if c.Search.Workers < 1 {
		errs = append(errs, fmt.Errorf("search.workers must be at least 1, got %d", c.Search.Workers))
	}
	for name, v := range map[string]int{
		"search.max_iterations":    c.Search.MaxIterations,
		"search.max_verifications": c.Search.MaxVerifications,
		"search.max_depth":         c.Search.MaxDepth,
		"search.max_frontier":      c.Search.MaxFrontier,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", name, v))
		}
	}
	if c.Solver.Timeout < 0 || c.Search.Timeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	return errors.Join(errs...)
}
