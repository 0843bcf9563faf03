package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/harliandi/sizefit/internal/codec"
	"github.com/harliandi/sizefit/internal/sizing"
)

// ErrInvalidConfig is returned when a configured value is out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds application configuration
type Config struct {
	Port             int
	MaxUploadMB      int
	MaxConcurrent    int
	RateLimitPerSec  int
	RateLimitBurst   int
	WorkerCount      int
	TolerancePercent float64
	OutputFormat     codec.Format
	LogLevel         zerolog.Level
}

// Tolerance returns the default band half-width as a fraction.
func (c *Config) Tolerance() float64 {
	return c.TolerancePercent / 100
}

// Load reads an optional sizefit.toml from the given directories (the
// working directory when none are given), then environment variables, over
// the built-in defaults.
func Load(paths ...string) (*Config, error) {
	v := viper.New()

	v.SetDefault("port", 8080)
	v.SetDefault("max_upload_mb", 10)
	v.SetDefault("max_concurrent", 50)
	v.SetDefault("rate_limit", 10)
	v.SetDefault("rate_limit_burst", 20)
	v.SetDefault("worker_count", 10)
	v.SetDefault("tolerance_percent", sizing.DefaultTolerance*100)
	v.SetDefault("output_format", "jpeg")
	v.SetDefault("log_level", "info")

	v.SetConfigName("sizefit")
	v.SetConfigType("toml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	v.AutomaticEnv()

	cfg := &Config{
		Port:             v.GetInt("port"),
		MaxUploadMB:      v.GetInt("max_upload_mb"),
		MaxConcurrent:    v.GetInt("max_concurrent"),
		RateLimitPerSec:  v.GetInt("rate_limit"),
		RateLimitBurst:   v.GetInt("rate_limit_burst"),
		WorkerCount:      v.GetInt("worker_count"),
		TolerancePercent: v.GetFloat64("tolerance_percent"),
	}

	cfg.OutputFormat = codec.ParseFormat(v.GetString("output_format"))
	if !cfg.OutputFormat.SupportsQuality() {
		return nil, fmt.Errorf("%w: output_format must be jpeg or webp, got %q", ErrInvalidConfig, v.GetString("output_format"))
	}

	level, err := zerolog.ParseLevel(strings.ToLower(v.GetString("log_level")))
	if err != nil {
		return nil, fmt.Errorf("%w: log_level: %v", ErrInvalidConfig, err)
	}
	cfg.LogLevel = level

	if _, err := sizing.ToleranceFromPercent(cfg.TolerancePercent); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	for name, n := range map[string]int{
		"port":             cfg.Port,
		"max_upload_mb":    cfg.MaxUploadMB,
		"max_concurrent":   cfg.MaxConcurrent,
		"rate_limit":       cfg.RateLimitPerSec,
		"rate_limit_burst": cfg.RateLimitBurst,
		"worker_count":     cfg.WorkerCount,
	} {
		if n <= 0 {
			return nil, fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, name, n)
		}
	}

	return cfg, nil
}
