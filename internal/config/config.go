// Package config provides configuration management for the trading engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Trading     TradingConfig     `mapstructure:"trading"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Reservation ReservationConfig `mapstructure:"reservation"`
	Danger      DangerConfig      `mapstructure:"danger"`
	Progression ProgressionConfig `mapstructure:"progression"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Server      ServerConfig      `mapstructure:"server"`
	Store       StoreConfig       `mapstructure:"store"`
	Log         LogConfig         `mapstructure:"log"`
}

// TradingConfig holds evaluator thresholds and scoring weights.
type TradingConfig struct {
	MinProfit       float64 `mapstructure:"min_profit"`        // credits per trade
	MinROI          float64 `mapstructure:"min_roi"`           // profit / buy cost
	DistancePenalty float64 `mapstructure:"distance_penalty"`  // 0..1 weight on normalized distance
	QualityWeight   float64 `mapstructure:"quality_weight"`    // weight of price deviation bonus
	CargoFillTarget float64 `mapstructure:"cargo_fill_target"` // fraction of hold to fill
	FeeRate         float64 `mapstructure:"fee_rate"`          // fraction of sell revenue lost to fees
	WorkBudget      int     `mapstructure:"work_budget"`       // max candidate pairs scored per tick
}

// CacheConfig holds opportunity cache tuning.
type CacheConfig struct {
	TTL              time.Duration `mapstructure:"ttl"`
	MinProfitToCache float64       `mapstructure:"min_profit_to_cache"`
	MaxEntries       int           `mapstructure:"max_entries"`
}

// ReservationConfig holds reservation ledger tuning.
type ReservationConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// DangerConfig holds danger registry tuning.
type DangerConfig struct {
	Enabled   bool          `mapstructure:"enabled"`   // blacklist toggle
	Threshold int           `mapstructure:"threshold"` // severity at or above which a zone blocks
	Window    time.Duration `mapstructure:"window"`    // rolling window for report decay
}

// ProgressionConfig holds pilot XP and gating tuning.
type ProgressionConfig struct {
	XPBase        float64       `mapstructure:"xp_base"`
	XPMultiplier  float64       `mapstructure:"xp_multiplier"`
	Normalization float64       `mapstructure:"normalization"` // trade value divisor
	QualityWeight float64       `mapstructure:"quality_weight"`
	PerHopBonus   float64       `mapstructure:"per_hop_bonus"`
	HopCap        int           `mapstructure:"hop_cap"`
	MinXPPerTrade float64       `mapstructure:"min_xp_per_trade"`
	MaxXPPerTrade float64       `mapstructure:"max_xp_per_trade"`
	GateLevels    []int         `mapstructure:"gate_levels"`
	TrainingTime  time.Duration `mapstructure:"training_time"`
}

// EngineConfig holds the tick scheduler and maintenance cadence.
type EngineConfig struct {
	TickInterval      time.Duration `mapstructure:"tick_interval"`
	TravelTicksPerHop int           `mapstructure:"travel_ticks_per_hop"`
	SweepSchedule     string        `mapstructure:"sweep_schedule"` // cron expression
	BackoffInitial    time.Duration `mapstructure:"backoff_initial"`
	BackoffMax        time.Duration `mapstructure:"backoff_max"`
	BackoffFactor     float64       `mapstructure:"backoff_factor"`
}

// ServerConfig holds the status API configuration.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".galaxy-trader"
	}
	return filepath.Join(home, ".config", "galaxy-trader")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Trading: TradingConfig{
			MinProfit:       5000,
			MinROI:          0.05,
			DistancePenalty: 0.5,
			QualityWeight:   0.25,
			CargoFillTarget: 0.9,
			FeeRate:         0.0025,
			WorkBudget:      250,
		},
		Cache: CacheConfig{
			TTL:              10 * time.Minute,
			MinProfitToCache: 10000,
			MaxEntries:       400,
		},
		Reservation: ReservationConfig{
			TTL: 15 * time.Minute,
		},
		Danger: DangerConfig{
			Enabled:   true,
			Threshold: 3,
			Window:    20 * time.Minute,
		},
		Progression: ProgressionConfig{
			XPBase:        10,
			XPMultiplier:  1.0,
			Normalization: 50000,
			QualityWeight: 0.5,
			PerHopBonus:   0.1,
			HopCap:        5,
			MinXPPerTrade: 1,
			MaxXPPerTrade: 100,
			GateLevels:    []int{3, 6, 9, 12},
			TrainingTime:  30 * time.Second,
		},
		Engine: EngineConfig{
			TickInterval:      time.Second,
			TravelTicksPerHop: 2,
			SweepSchedule:     "@every 1m",
			BackoffInitial:    2 * time.Second,
			BackoffMax:        2 * time.Minute,
			BackoffFactor:     2.0,
		},
		Server: ServerConfig{
			Enabled: false,
			Addr:    ":8420",
		},
		Store: StoreConfig{
			DBPath: filepath.Join(DefaultConfigDir(), "trader.db"),
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
			File:    true,
		},
	}
}

// Load reads configuration from the given directory, creating a template on
// first run, then applies environment overrides and validates.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("creating config dir: %w", err)
	}

	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if err := writeTemplate(configDir); err != nil {
				return nil, fmt.Errorf("writing config template: %w", err)
			}
		} else {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("trading.min_profit", cfg.Trading.MinProfit)
	v.SetDefault("trading.min_roi", cfg.Trading.MinROI)
	v.SetDefault("trading.distance_penalty", cfg.Trading.DistancePenalty)
	v.SetDefault("trading.quality_weight", cfg.Trading.QualityWeight)
	v.SetDefault("trading.cargo_fill_target", cfg.Trading.CargoFillTarget)
	v.SetDefault("trading.fee_rate", cfg.Trading.FeeRate)
	v.SetDefault("trading.work_budget", cfg.Trading.WorkBudget)
	v.SetDefault("cache.ttl", cfg.Cache.TTL)
	v.SetDefault("cache.min_profit_to_cache", cfg.Cache.MinProfitToCache)
	v.SetDefault("cache.max_entries", cfg.Cache.MaxEntries)
	v.SetDefault("reservation.ttl", cfg.Reservation.TTL)
	v.SetDefault("danger.enabled", cfg.Danger.Enabled)
	v.SetDefault("danger.threshold", cfg.Danger.Threshold)
	v.SetDefault("danger.window", cfg.Danger.Window)
	v.SetDefault("progression.xp_base", cfg.Progression.XPBase)
	v.SetDefault("progression.xp_multiplier", cfg.Progression.XPMultiplier)
	v.SetDefault("progression.normalization", cfg.Progression.Normalization)
	v.SetDefault("progression.quality_weight", cfg.Progression.QualityWeight)
	v.SetDefault("progression.per_hop_bonus", cfg.Progression.PerHopBonus)
	v.SetDefault("progression.hop_cap", cfg.Progression.HopCap)
	v.SetDefault("progression.min_xp_per_trade", cfg.Progression.MinXPPerTrade)
	v.SetDefault("progression.max_xp_per_trade", cfg.Progression.MaxXPPerTrade)
	v.SetDefault("progression.gate_levels", cfg.Progression.GateLevels)
	v.SetDefault("progression.training_time", cfg.Progression.TrainingTime)
	v.SetDefault("engine.tick_interval", cfg.Engine.TickInterval)
	v.SetDefault("engine.travel_ticks_per_hop", cfg.Engine.TravelTicksPerHop)
	v.SetDefault("engine.sweep_schedule", cfg.Engine.SweepSchedule)
	v.SetDefault("engine.backoff_initial", cfg.Engine.BackoffInitial)
	v.SetDefault("engine.backoff_max", cfg.Engine.BackoffMax)
	v.SetDefault("engine.backoff_factor", cfg.Engine.BackoffFactor)
	v.SetDefault("server.enabled", cfg.Server.Enabled)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("store.db_path", cfg.Store.DBPath)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.console", cfg.Log.Console)
	v.SetDefault("log.file", cfg.Log.File)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GT_DB_PATH"); v != "" {
		cfg.Store.DBPath = v
	}
	if v := os.Getenv("GT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("GT_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Trading.MinROI < 0 {
		return fmt.Errorf("trading.min_roi must be non-negative")
	}
	if c.Trading.DistancePenalty < 0 || c.Trading.DistancePenalty > 1 {
		return fmt.Errorf("trading.distance_penalty must be between 0 and 1")
	}
	if c.Trading.CargoFillTarget <= 0 || c.Trading.CargoFillTarget > 1 {
		return fmt.Errorf("trading.cargo_fill_target must be in (0, 1]")
	}
	if c.Trading.WorkBudget <= 0 {
		return fmt.Errorf("trading.work_budget must be positive")
	}
	if c.Trading.FeeRate < 0 || c.Trading.FeeRate > 0.2 {
		return fmt.Errorf("trading.fee_rate must be between 0 and 0.2")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	if c.Reservation.TTL <= 0 {
		return fmt.Errorf("reservation.ttl must be positive")
	}
	if c.Danger.Threshold < 1 || c.Danger.Threshold > 5 {
		return fmt.Errorf("danger.threshold must be between 1 and 5")
	}
	if c.Danger.Window <= 0 {
		return fmt.Errorf("danger.window must be positive")
	}
	if c.Progression.Normalization <= 0 {
		return fmt.Errorf("progression.normalization must be positive")
	}
	if c.Progression.MaxXPPerTrade < c.Progression.MinXPPerTrade {
		return fmt.Errorf("progression.max_xp_per_trade must be >= min_xp_per_trade")
	}
	for _, g := range c.Progression.GateLevels {
		if g < 2 || g > 15 {
			return fmt.Errorf("progression.gate_levels entries must be between 2 and 15")
		}
	}
	if c.Engine.TickInterval <= 0 {
		return fmt.Errorf("engine.tick_interval must be positive")
	}
	if c.Engine.TravelTicksPerHop < 1 {
		return fmt.Errorf("engine.travel_ticks_per_hop must be at least 1")
	}
	if c.Engine.BackoffFactor < 1 {
		return fmt.Errorf("engine.backoff_factor must be >= 1")
	}
	return nil
}
