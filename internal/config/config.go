// Package config loads the tunables a deployment would otherwise pass
// as a dozen CLI flags from a single YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jannes-thesis/scaling-adapter/internal/scaling"
)

// Config is the on-disk shape of scaling.Parameters plus the pool
// bounds that only make sense at the variant level (watermark/fixed
// sizing). Only the variant, fixed size and watermark bounds have CLI
// flag counterparts in cmd/ioscale (--variant, --fixed-size,
// --watermark-min, --watermark-max); the other fields are set only
// from the file.
type Config struct {
	// Variant selects which pool implementation to run: "adaptive",
	// "watermark", or "fixed".
	Variant string `yaml:"variant"`

	CheckIntervalMs     int64   `yaml:"check_interval_ms"`
	StabilityFactor     float64 `yaml:"stability_factor"`
	AveragingDurationMs int64   `yaml:"averaging_duration_ms"`
	SyscallNrs          []int   `yaml:"syscall_nrs"`

	FixedSize int `yaml:"fixed_size"`

	WatermarkMinSize       int `yaml:"watermark_min_size"`
	WatermarkMaxSize       int `yaml:"watermark_max_size"`
	WatermarkIdleThreshold int `yaml:"watermark_idle_threshold_ms"`
}

// Default returns the configuration a fresh install would ship with:
// an adaptive pool using scaling.DefaultParameters.
func Default() Config {
	p := scaling.DefaultParameters()
	return Config{
		Variant:                "adaptive",
		CheckIntervalMs:        p.CheckIntervalMs,
		StabilityFactor:        p.StabilityFactor,
		AveragingDurationMs:    p.AveragingDurationMs,
		SyscallNrs:             p.SyscallNrs,
		FixedSize:              5,
		WatermarkMinSize:       1,
		WatermarkMaxSize:       10,
		WatermarkIdleThreshold: 10000,
	}
}

// Load reads and parses a YAML config file at path, filling in any
// field the file omits from Default().
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ScalingParameters projects the YAML-tunable fields onto base, leaving
// CalcMetrics untouched — same contract as scaling.ParseParameterString.
func (c Config) ScalingParameters(base scaling.Parameters) scaling.Parameters {
	out := base
	out.CheckIntervalMs = c.CheckIntervalMs
	out.StabilityFactor = c.StabilityFactor
	out.AveragingDurationMs = c.AveragingDurationMs
	if len(c.SyscallNrs) > 0 {
		out.SyscallNrs = c.SyscallNrs
	}
	return out
}
