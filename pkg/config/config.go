package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/xequation/xequation/pkg/telemetry"
)

// Config is the xeq configuration file.
type Config struct {
	Engine    EngineConfig     `yaml:"engine"`
	Store     StoreConfig      `yaml:"store"`
	Policy    PolicyConfig     `yaml:"policy"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// EngineConfig configures the expression engine.
type EngineConfig struct {
	// CacheSize bounds the parse cache.
	CacheSize int `yaml:"cache_size" validate:"min=1"`

	// SearchPaths are directories searched for <module>.star files.
	SearchPaths []string `yaml:"search_paths" validate:"dive,required"`

	// Modules restricts importable modules. Empty allows every module.
	Modules []string `yaml:"modules" validate:"dive,required"`

	// MaxSteps is the Starlark step budget per execution; 0 is unlimited.
	MaxSteps uint64 `yaml:"max_steps"`
}

// StoreConfig configures the SQLite store.
type StoreConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// PolicyConfig configures workbook lint policies.
type PolicyConfig struct {
	Enabled bool `yaml:"enabled"`

	// AllowedModules lists the modules workbooks may import. Empty
	// allows every module.
	AllowedModules []string `yaml:"allowed_modules"`

	// MaxGroupSize bounds the declarations per group; 0 is unlimited.
	MaxGroupSize int `yaml:"max_group_size" validate:"min=0"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			CacheSize: 1000,
		},
		Store: StoreConfig{
			Path: "xeq.db",
		},
		Policy: PolicyConfig{
			Enabled: true,
		},
		Telemetry: *telemetry.DefaultConfig(),
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks struct tags and the telemetry section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	return c.Telemetry.Validate()
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	return errors.As(err, target)
}
