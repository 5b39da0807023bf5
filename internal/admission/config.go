package admission

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that decodes from YAML strings like
// "30s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the admission controller's tuning surface.
type Config struct {
	// BaseLimit is the normalized score above which a query is
	// rejected when the system is idle.
	BaseLimit int `yaml:"baseLimit"`

	// AdaptiveLimits shrinks the limit as load rises. When false the
	// base limit applies regardless of load.
	AdaptiveLimits bool `yaml:"adaptiveLimits"`

	// WarnThreshold is the fraction of the effective limit at which a
	// query is accepted with a warning.
	WarnThreshold float64 `yaml:"warnThreshold"`

	// CacheEnabled reuses analyses for structurally identical queries.
	CacheEnabled bool `yaml:"cacheEnabled"`

	// CacheTTL bounds how long a cached analysis stays fresh.
	CacheTTL Duration `yaml:"cacheTtl"`

	// CacheSize caps the number of cached analyses.
	CacheSize int `yaml:"cacheSize"`

	// MaxReductionFraction is how much of the base limit load can take
	// away at loadFactor 1.0.
	MaxReductionFraction float64 `yaml:"maxReductionFraction"`

	// LimitFloor is the lowest the effective limit may fall, so that
	// extreme load never rejects every non-trivial query.
	LimitFloor float64 `yaml:"limitFloor"`
}

// DefaultConfig returns the tuning used when no configuration is
// supplied.
func DefaultConfig() Config {
	return Config{
		BaseLimit:            80,
		AdaptiveLimits:       true,
		WarnThreshold:        0.75,
		CacheEnabled:         true,
		CacheTTL:             Duration(5 * time.Minute),
		CacheSize:            4096,
		MaxReductionFraction: 0.7,
		LimitFloor:           10,
	}
}

// LoadConfig decodes a YAML config, filling unset fields from
// DefaultConfig.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("decode admission config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings that would make every decision degenerate.
func (c Config) Validate() error {
	if c.BaseLimit <= 0 {
		return fmt.Errorf("baseLimit must be positive, got %d", c.BaseLimit)
	}
	if c.WarnThreshold <= 0 || c.WarnThreshold > 1 {
		return fmt.Errorf("warnThreshold must be in (0, 1], got %g", c.WarnThreshold)
	}
	if c.MaxReductionFraction < 0 || c.MaxReductionFraction > 1 {
		return fmt.Errorf("maxReductionFraction must be in [0, 1], got %g", c.MaxReductionFraction)
	}
	if c.LimitFloor < 0 {
		return fmt.Errorf("limitFloor must be non-negative, got %g", c.LimitFloor)
	}
	if c.CacheEnabled && c.CacheSize <= 0 {
		return fmt.Errorf("cacheSize must be positive when the cache is enabled, got %d", c.CacheSize)
	}
	return nil
}
