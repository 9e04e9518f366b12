package engine

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/penwyp/go-claude-usage/internal/core/pricing"
)

// Config contains the engine configuration. Segmentation constants and
// refresh timing are injected here rather than hard-coded.
type Config struct {
	// Data location
	DataDir string

	// Calendar settings
	Timezone string

	// Session segmentation
	SessionGap      time.Duration
	SessionDuration time.Duration

	// Refresh settings
	MinReloadInterval time.Duration // debounce guard for bursty triggers
	CoalesceWindow    time.Duration // filesystem notification coalescing
	FallbackInterval  time.Duration // timer that fires regardless of debounce

	// Performance settings
	Concurrency int

	// Pricing overrides keyed by model name
	PricingOverrides map[string]pricing.ModelPricing
}

// Validate fills in defaults for unset fields.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		c.DataDir = filepath.Join(home, ".claude", "projects")
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.SessionGap == 0 {
		c.SessionGap = 5 * time.Hour
	}
	if c.SessionDuration == 0 {
		c.SessionDuration = 5 * time.Hour
	}
	if c.MinReloadInterval == 0 {
		c.MinReloadInterval = 2 * time.Second
	}
	if c.CoalesceWindow == 0 {
		c.CoalesceWindow = 1 * time.Second
	}
	if c.FallbackInterval == 0 {
		c.FallbackInterval = 5 * time.Minute
	}
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
	return nil
}

// FileConfig mirrors the on-disk TOML configuration file.
type FileConfig struct {
	General struct {
		DataDir  string `toml:"data_dir,omitempty"`
		Timezone string `toml:"timezone,omitempty"`
	} `toml:"general"`
	Session struct {
		GapMinutes      int `toml:"gap_minutes,omitempty"`
		DurationMinutes int `toml:"duration_minutes,omitempty"`
	} `toml:"session"`
	Refresh struct {
		MinIntervalSeconds int `toml:"min_interval_seconds,omitempty"`
		CoalesceMillis     int `toml:"coalesce_millis,omitempty"`
		FallbackSeconds    int `toml:"fallback_seconds,omitempty"`
	} `toml:"refresh"`
	Pricing struct {
		Overrides map[string]PricingOverride `toml:"overrides,omitempty"`
	} `toml:"pricing"`
}

// PricingOverride allows user-defined pricing for a specific model, in
// USD per million tokens. Nil fields keep the built-in value.
type PricingOverride struct {
	InputPerMTok         *float64 `toml:"input_per_mtok,omitempty"`
	OutputPerMTok        *float64 `toml:"output_per_mtok,omitempty"`
	CacheCreationPerMTok *float64 `toml:"cache_creation_per_mtok,omitempty"`
	CacheReadPerMTok     *float64 `toml:"cache_read_per_mtok,omitempty"`
}

// LoadConfigFile reads a TOML config file. A missing file is not an
// error; it simply contributes nothing.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fc, nil
	}
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// ApplyFile overlays file configuration onto c. Values already set on c
// (e.g. from flags) win over file values.
func (c *Config) ApplyFile(fc FileConfig) {
	if c.DataDir == "" && fc.General.DataDir != "" {
		c.DataDir = fc.General.DataDir
	}
	if c.Timezone == "" && fc.General.Timezone != "" {
		c.Timezone = fc.General.Timezone
	}
	if c.SessionGap == 0 && fc.Session.GapMinutes > 0 {
		c.SessionGap = time.Duration(fc.Session.GapMinutes) * time.Minute
	}
	if c.SessionDuration == 0 && fc.Session.DurationMinutes > 0 {
		c.SessionDuration = time.Duration(fc.Session.DurationMinutes) * time.Minute
	}
	if c.MinReloadInterval == 0 && fc.Refresh.MinIntervalSeconds > 0 {
		c.MinReloadInterval = time.Duration(fc.Refresh.MinIntervalSeconds) * time.Second
	}
	if c.CoalesceWindow == 0 && fc.Refresh.CoalesceMillis > 0 {
		c.CoalesceWindow = time.Duration(fc.Refresh.CoalesceMillis) * time.Millisecond
	}
	if c.FallbackInterval == 0 && fc.Refresh.FallbackSeconds > 0 {
		c.FallbackInterval = time.Duration(fc.Refresh.FallbackSeconds) * time.Second
	}
	if len(fc.Pricing.Overrides) > 0 && c.PricingOverrides == nil {
		c.PricingOverrides = make(map[string]pricing.ModelPricing, len(fc.Pricing.Overrides))
		for name, o := range fc.Pricing.Overrides {
			base := pricing.GetPricing(name)
			if o.InputPerMTok != nil {
				base.Input = *o.InputPerMTok
			}
			if o.OutputPerMTok != nil {
				base.Output = *o.OutputPerMTok
			}
			if o.CacheCreationPerMTok != nil {
				base.CacheCreation = *o.CacheCreationPerMTok
			}
			if o.CacheReadPerMTok != nil {
				base.CacheRead = *o.CacheReadPerMTok
			}
			c.PricingOverrides[name] = base
		}
	}
}
