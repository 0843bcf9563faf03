package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harliandi/sizefit/internal/codec"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 10, cfg.MaxUploadMB)
	assert.Equal(t, 50, cfg.MaxConcurrent)
	assert.Equal(t, 10, cfg.RateLimitPerSec)
	assert.Equal(t, 20, cfg.RateLimitBurst)
	assert.Equal(t, 10, cfg.WorkerCount)
	assert.InDelta(t, 20.0, cfg.TolerancePercent, 1e-9)
	assert.InDelta(t, 0.2, cfg.Tolerance(), 1e-9)
	assert.Equal(t, codec.FormatJPEG, cfg.OutputFormat)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("WORKER_COUNT", "3")
	t.Setenv("TOLERANCE_PERCENT", "12.5")
	t.Setenv("OUTPUT_FORMAT", "webp")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 3, cfg.WorkerCount)
	assert.InDelta(t, 12.5, cfg.TolerancePercent, 1e-9)
	assert.Equal(t, codec.FormatWebP, cfg.OutputFormat)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	file := "port = 7070\nmax_upload_mb = 4\noutput_format = \"webp\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sizefit.toml"), []byte(file), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, 4, cfg.MaxUploadMB)
	assert.Equal(t, codec.FormatWebP, cfg.OutputFormat)

	t.Setenv("PORT", "6060")
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Port)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"OUTPUT_FORMAT", "png"},
		{"LOG_LEVEL", "loud"},
		{"TOLERANCE_PERCENT", "0"},
		{"TOLERANCE_PERCENT", "75"},
		{"WORKER_COUNT", "0"},
		{"RATE_LIMIT", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load(t.TempDir())
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sizefit.toml"), []byte("port = = ="), 0o644))

	_, err := Load(dir)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
