package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()

	// Test basic config loading with defaults
	t.Run("LoadDefaults", func(t *testing.T) {
		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify server defaults
		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		// Verify logging defaults
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "structured", cfg.Logging.Profile)

		assert.True(t, cfg.Metrics.Enabled)

		// Verify completion defaults
		assert.Equal(t, 4, cfg.Completion.Workers)
		assert.Equal(t, 256, cfg.Completion.Buffer)
		assert.Equal(t, 30*time.Second, cfg.Completion.DrainTimeout)
		assert.Empty(t, cfg.Archive.Exclude)

		assert.False(t, cfg.Mail.Enabled)
		assert.Equal(t, 25, cfg.Mail.Port)
	})

	// Test runtime overrides
	t.Run("RuntimeOverrides", func(t *testing.T) {
		overrides := map[string]any{
			"server": map[string]any{
				"port": 9000,
				"host": "0.0.0.0",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)

		// Verify overrides were applied
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)

		// Verify non-overridden values remain default
		assert.Equal(t, "structured", cfg.Logging.Profile)
		assert.Equal(t, 4, cfg.Completion.Workers)
	})

	// Test environment variable overrides
	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("GOGENIE_PORT", "3000")
		t.Setenv("GOGENIE_LOG_LEVEL", "warn")
		t.Setenv("GOGENIE_METRICS_ENABLED", "false")
		t.Setenv("GOGENIE_COMPLETION_BUFFER", "8")
		t.Setenv("GOGENIE_ARCHIVE_EXCLUDE", "**/*.bin, tmp/**")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.False(t, cfg.Metrics.Enabled)
		assert.Equal(t, 8, cfg.Completion.Buffer)
		assert.Equal(t, []string{"**/*.bin", "tmp/**"}, cfg.Archive.Exclude)
	})

	t.Run("LongEnvWinsOverShortAlias", func(t *testing.T) {
		t.Setenv("GOGENIE_PORT", "3000")
		t.Setenv("GOGENIE_SERVER_PORT", "3001")

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3001, cfg.Server.Port)
	})

	// Test config precedence: runtime > env > file > defaults
	t.Run("ConfigPrecedence", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gogenie.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 4500\n  host: filehost\njobs:\n  dir: /srv/jobs\n"), 0o644))
		t.Setenv("GOGENIE_PORT", "4000")

		overrides := map[string]any{
			"server": map[string]any{
				"port": 5000,
			},
		}

		cfg, err := LoadFile(ctx, path, overrides)
		require.NoError(t, err)

		assert.Equal(t, 5000, cfg.Server.Port)
		assert.Equal(t, "filehost", cfg.Server.Host)
		assert.Equal(t, "/srv/jobs", cfg.Jobs.Dir)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadFile(ctx, filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("InvalidRejected", func(t *testing.T) {
		_, err := Load(ctx, map[string]any{"completion": map[string]any{"workers": 0}})
		assert.ErrorContains(t, err, "completion.workers")
	})
}

func TestGetConfig(t *testing.T) {
	ctx := context.Background()

	cfg, err := Load(ctx, map[string]any{"server": map[string]any{"port": 8181}})
	require.NoError(t, err)

	retrieved := GetConfig()
	require.NotNil(t, retrieved)
	assert.Equal(t, cfg.Server.Port, retrieved.Server.Port)
	assert.Equal(t, cfg.Logging.Level, retrieved.Logging.Level)
}

func TestEnvSpecs(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	specs := getEnvSpecs(v)
	require.NotEmpty(t, specs)

	envVarNames := make(map[string]string)
	for _, spec := range specs {
		assert.Contains(t, spec.Name, "GOGENIE_", "all specs should have GOGENIE_ prefix")
		assert.NotEmpty(t, spec.Path, "env var %s should have a path", spec.Name)
		envVarNames[spec.Name] = spec.Path
	}

	assert.Equal(t, "logging.level", envVarNames["GOGENIE_LOG_LEVEL"])
	assert.Equal(t, "server.port", envVarNames["GOGENIE_PORT"])
	assert.Equal(t, "server.port", envVarNames["GOGENIE_SERVER_PORT"])
	assert.Equal(t, "completion.drain_timeout", envVarNames["GOGENIE_COMPLETION_DRAIN_TIMEOUT"])
	assert.Equal(t, "s3.force_path_style", envVarNames["GOGENIE_S3_FORCE_PATH_STYLE"])
}

func TestDurationParsing(t *testing.T) {
	t.Setenv("GOGENIE_READ_TIMEOUT", "45s")
	t.Setenv("GOGENIE_SHUTDOWN_TIMEOUT", "5m")
	t.Setenv("GOGENIE_COMPLETION_DRAIN_TIMEOUT", "1m30s")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 90*time.Second, cfg.Completion.DrainTimeout)
}

func TestFlatten(t *testing.T) {
	got := flatten("", map[string]any{
		"Server": map[string]any{"port": 1},
		"jobs":   map[string]any{"dir": "/x"},
		"top":    true,
	})
	assert.Equal(t, map[string]any{"server.port": 1, "jobs.dir": "/x", "top": true}, got)
}
