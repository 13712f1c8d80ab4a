package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/sameday-cli/internal/stats"
	"github.com/KaramelBytes/sameday-cli/internal/table"
)

// Global configuration structure.
type Global struct {
	DataFile string `mapstructure:"data_file" yaml:"data_file"`

	// Loader
	HeaderSkip       int    `mapstructure:"header_skip" yaml:"header_skip"`
	PrimaryEncoding  string `mapstructure:"primary_encoding" yaml:"primary_encoding"`
	FallbackEncoding string `mapstructure:"fallback_encoding" yaml:"fallback_encoding"`
	Delimiter        string `mapstructure:"delimiter" yaml:"delimiter"`

	// Analysis
	TrendMinYears   int     `mapstructure:"trend_min_years" yaml:"trend_min_years"`
	TrendSpan       float64 `mapstructure:"trend_span" yaml:"trend_span"`
	TrendIterations int     `mapstructure:"trend_iterations" yaml:"trend_iterations"`
	HistogramBins   int     `mapstructure:"histogram_bins" yaml:"histogram_bins"`
	CacheEntries    int     `mapstructure:"cache_entries" yaml:"cache_entries"`

	// Server and logging
	HTTPAddr  string `mapstructure:"http_addr" yaml:"http_addr"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Keys lists the settable configuration keys in display order.
var Keys = []string{
	"data_file", "header_skip", "primary_encoding", "fallback_encoding", "delimiter",
	"trend_min_years", "trend_span", "trend_iterations", "histogram_bins", "cache_entries",
	"http_addr", "log_level", "log_format",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_file", "")
	v.SetDefault("header_skip", table.DefaultHeaderSkip)
	v.SetDefault("primary_encoding", "utf-8")
	v.SetDefault("fallback_encoding", "cp949")
	v.SetDefault("delimiter", "")
	v.SetDefault("trend_min_years", stats.DefaultTrendMinYears)
	v.SetDefault("trend_span", 0.6667)
	v.SetDefault("trend_iterations", stats.DefaultRobustIterations)
	v.SetDefault("histogram_bins", stats.DefaultHistogramBins)
	v.SetDefault("cache_entries", 4)
	v.SetDefault("http_addr", "127.0.0.1:8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Dir returns ~/.sameday.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".sameday"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.sameday/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. A .env file in the working
// directory is applied to the environment first without overriding
// variables that are already set.
func Load(cfgFile string) (*Global, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return load(cfgFile, true)
}

// LoadFile loads the config file over the defaults and ignores the
// environment. Use it before Save so env overrides are not written to disk.
func LoadFile(cfgFile string) (*Global, error) {
	return load(cfgFile, false)
}

func load(cfgFile string, env bool) (*Global, error) {
	v := viper.New()
	if env {
		v.SetEnvPrefix("SAMEDAY")
		v.AutomaticEnv()
	}
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns the built-in defaults without reading any file or the
// environment.
func Default() *Global {
	v := viper.New()
	setDefaults(v)
	var c Global
	_ = v.Unmarshal(&c)
	return &c
}

// Validate rejects values the loader or engine cannot use.
func (c *Global) Validate() error {
	switch {
	case c.HeaderSkip < 0:
		return fmt.Errorf("header_skip must be >= 0, got %d", c.HeaderSkip)
	case c.TrendMinYears < 0:
		return fmt.Errorf("trend_min_years must be >= 0, got %d", c.TrendMinYears)
	case c.TrendIterations < 0:
		return fmt.Errorf("trend_iterations must be >= 0, got %d", c.TrendIterations)
	case c.TrendSpan <= 0 || c.TrendSpan > 1:
		return fmt.Errorf("trend_span must be in (0, 1], got %g", c.TrendSpan)
	case c.HistogramBins <= 0:
		return fmt.Errorf("histogram_bins must be > 0, got %d", c.HistogramBins)
	case utf8.RuneCountInString(c.Delimiter) > 1:
		return fmt.Errorf("delimiter must be a single character, got %q", c.Delimiter)
	}
	if err := table.CheckEncoding(c.PrimaryEncoding); err != nil {
		return fmt.Errorf("primary_encoding: %w", err)
	}
	if c.FallbackEncoding != "" {
		if err := table.CheckEncoding(c.FallbackEncoding); err != nil {
			return fmt.Errorf("fallback_encoding: %w", err)
		}
	}
	return nil
}

// LoaderOptions converts the loader settings.
func (c *Global) LoaderOptions() table.Options {
	opt := table.Options{
		HeaderSkip:       c.HeaderSkip,
		PrimaryEncoding:  c.PrimaryEncoding,
		FallbackEncoding: c.FallbackEncoding,
	}
	if c.Delimiter != "" {
		opt.Delimiter, _ = utf8.DecodeRuneInString(c.Delimiter)
	}
	return opt
}

// EngineOptions converts the analysis settings.
func (c *Global) EngineOptions() stats.Options {
	sm := stats.DefaultLOESS()
	sm.Span = c.TrendSpan
	sm.Iterations = c.TrendIterations
	return stats.Options{TrendMinYears: c.TrendMinYears, Smoother: sm}
}
