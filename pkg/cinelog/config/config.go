// Package config loads cinelog settings from YAML and the environment and
// builds the knowledge base they describe.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/cinelog/pkg/cinelog/internalerr"
)

// MaxResultsLimit bounds Engine.DefaultMaxResults.
const MaxResultsLimit = 100

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CINELOG_"

// Config is the full settings tree.
type Config struct {
	Engine  Engine  `yaml:"engine"`
	Data    Data    `yaml:"data"`
	Logging Logging `yaml:"logging"`
}

// Engine configures query evaluation.
type Engine struct {
	MaxSteps          int `yaml:"max_steps"`
	DefaultMaxResults int `yaml:"default_max_results"`
}

// Data names the knowledge-base sources.
type Data struct {
	CSVPath    string `yaml:"csv_path"`
	MaxMovies  int    `yaml:"max_movies"`
	KBPath     string `yaml:"kb_path"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Logging configures the zap logger.
type Logging struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Engine: Engine{
			MaxSteps:          5_000_000,
			DefaultMaxResults: 10,
		},
		Data: Data{
			CSVPath:   "movies.csv",
			MaxMovies: 5000,
		},
		Logging: Logging{Level: "info"},
	}
}

// Load overlays the YAML file at path on Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", internalerr.ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays CINELOG_* environment variables.
func (c *Config) ApplyEnv() error {
	ints := map[string]*int{
		"MAX_STEPS":   &c.Engine.MaxSteps,
		"MAX_RESULTS": &c.Engine.DefaultMaxResults,
		"MAX_MOVIES":  &c.Data.MaxMovies,
	}
	for name, dst := range ints {
		v, ok := lookupEnv(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s%s=%q is not an integer", internalerr.ErrInvalidConfig, EnvPrefix, name, v)
		}
		*dst = n
	}

	strs := map[string]*string{
		"CSV":       &c.Data.CSVPath,
		"KB":        &c.Data.KBPath,
		"DB":        &c.Data.SQLitePath,
		"LOG_LEVEL": &c.Logging.Level,
	}
	for name, dst := range strs {
		if v, ok := lookupEnv(name); ok {
			*dst = v
		}
	}

	if v, ok := lookupEnv("LOG_JSON"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %sLOG_JSON=%q is not a boolean", internalerr.ErrInvalidConfig, EnvPrefix, v)
		}
		c.Logging.JSON = b
	}
	return nil
}

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Engine.MaxSteps <= 0:
		return fmt.Errorf("%w: engine.max_steps must be positive, got %d", internalerr.ErrInvalidConfig, c.Engine.MaxSteps)
	case c.Engine.DefaultMaxResults < 1 || c.Engine.DefaultMaxResults > MaxResultsLimit:
		return fmt.Errorf("%w: engine.default_max_results must be in 1..%d, got %d",
			internalerr.ErrInvalidConfig, MaxResultsLimit, c.Engine.DefaultMaxResults)
	case c.Data.MaxMovies <= 0:
		return fmt.Errorf("%w: data.max_movies must be positive, got %d", internalerr.ErrInvalidConfig, c.Data.MaxMovies)
	case c.Data.CSVPath == "" && c.Data.KBPath == "" && c.Data.SQLitePath == "":
		return fmt.Errorf("%w: no data source configured", internalerr.ErrInvalidConfig)
	}
	return nil
}
