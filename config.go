package qweave

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/theapemachine/qweave/linalg"
)

/*
Config carries the numerical policy of the engine. It is handed to containers
and composite envelopes explicitly; nothing in the package reads ambient
state.

Tolerances:
  - Tolerance: drift accepted silently; also the unit-amplitude test used when
    demoting a Vector to a Label
  - DriftTolerance: drift accepted with a warning; beyond it an operation fails
    with ErrNormalization
  - SeparabilityTolerance: relative singular-value cut for rank and Schmidt-rank
    estimates, and the max-norm bound of the density product test
  - TruncationEpsilon: probability mass considered negligible when shrinking a
    Fock cutoff or checking the top level after a growing operator
*/
type Config struct {
	Tolerance             float64 `mapstructure:"tolerance"`
	DriftTolerance        float64 `mapstructure:"drift_tolerance"`
	SeparabilityTolerance float64 `mapstructure:"separability_tolerance"`
	TruncationEpsilon     float64 `mapstructure:"truncation_epsilon"`
	AutoResize            bool    `mapstructure:"auto_resize"`
	Contractions          bool    `mapstructure:"contractions"`
	CheckKraus            bool    `mapstructure:"check_kraus"`
	StrictKraus           bool    `mapstructure:"strict_kraus"`
	MemoryCeiling         int64   `mapstructure:"memory_ceiling"`
	MaxCutoff             int     `mapstructure:"max_cutoff"`
	Seed                  uint64  `mapstructure:"seed"`
	FactorSearchLimit     int     `mapstructure:"factor_search_limit"`

	backend  linalg.Backend
	metrics  *Metrics
	governor *ResourceGovernorRegulator
}

func NewConfig() *Config {
	return &Config{
		Tolerance:             1e-9,
		DriftTolerance:        1e-6,
		SeparabilityTolerance: 1e-8,
		TruncationEpsilon:     1e-12,
		AutoResize:            false,
		Contractions:          true,
		CheckKraus:            true,
		StrictKraus:           false,
		MemoryCeiling:         1 << 30,
		MaxCutoff:             64,
		Seed:                  42,
		FactorSearchLimit:     12,
	}
}

/*
LoadConfig reads configuration from an optional file and the environment.
Environment overrides use the QWEAVE_ prefix, e.g. QWEAVE_AUTO_RESIZE=true.
An empty path skips the file and only applies defaults and the environment.
*/
func LoadConfig(path string) (*Config, error) {
	defaults := NewConfig()
	v := viper.New()

	v.SetDefault("tolerance", defaults.Tolerance)
	v.SetDefault("drift_tolerance", defaults.DriftTolerance)
	v.SetDefault("separability_tolerance", defaults.SeparabilityTolerance)
	v.SetDefault("truncation_epsilon", defaults.TruncationEpsilon)
	v.SetDefault("auto_resize", defaults.AutoResize)
	v.SetDefault("contractions", defaults.Contractions)
	v.SetDefault("check_kraus", defaults.CheckKraus)
	v.SetDefault("strict_kraus", defaults.StrictKraus)
	v.SetDefault("memory_ceiling", defaults.MemoryCeiling)
	v.SetDefault("max_cutoff", defaults.MaxCutoff)
	v.SetDefault("seed", defaults.Seed)
	v.SetDefault("factor_search_limit", defaults.FactorSearchLimit)

	v.SetEnvPrefix("QWEAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects tolerances that cannot order correctly.
func (c *Config) Validate() error {
	switch {
	case c.Tolerance <= 0:
		return newError(ErrValue, "config", "tolerance must be positive")
	case c.DriftTolerance < c.Tolerance:
		return newError(ErrValue, "config", "drift tolerance %g is below tolerance %g", c.DriftTolerance, c.Tolerance)
	case c.SeparabilityTolerance <= 0:
		return newError(ErrValue, "config", "separability tolerance must be positive")
	case c.TruncationEpsilon < 0:
		return newError(ErrValue, "config", "truncation epsilon must not be negative")
	case c.MaxCutoff < 2:
		return newError(ErrValue, "config", "max cutoff must be at least 2")
	}
	return nil
}

/*
Backend returns the numerical backend, creating a CPU backend seeded with
Seed on first use.
*/
func (c *Config) Backend() linalg.Backend {
	if c.backend == nil {
		c.backend = linalg.NewCPU(c.Seed)
	}
	return c.backend
}

// WithBackend swaps the numerical backend and returns the config.
func (c *Config) WithBackend(b linalg.Backend) *Config {
	c.backend = b
	return c
}

// Metrics returns the counters shared by everything built from this config.
func (c *Config) Metrics() *Metrics {
	if c.metrics == nil {
		c.metrics = newMetrics()
	}
	return c.metrics
}

// Regulator returns the governor behind the Regulator interface.
func (c *Config) Regulator() Regulator {
	return NewRegulator(c.Governor())
}

// admit reserves room for a tensor and lets the regulator observe the peak.
func (c *Config) admit(op string, bytes int64) error {
	if err := c.Governor().Admit(op, bytes); err != nil {
		return err
	}
	c.Regulator().Observe(c.Metrics())
	return nil
}

// Governor returns the memory-ceiling regulator for this config.
func (c *Config) Governor() *ResourceGovernorRegulator {
	if c.governor == nil {
		c.governor = NewResourceGovernorRegulator(c.MemoryCeiling, c.Metrics())
	}
	return c.governor
}
