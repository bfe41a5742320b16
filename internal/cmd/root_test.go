package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/gogenie/internal/config"
)

func TestSetVersionInfo(t *testing.T) {
	// Save original values
	orig := versionInfo
	defer func() { versionInfo = orig }()

	tests := []struct {
		name      string
		version   string
		commit    string
		buildDate string
	}{
		{
			name:      "set all values",
			version:   "1.0.0",
			commit:    "abc123",
			buildDate: "2024-01-15",
		},
		{
			name:      "set dev version",
			version:   "dev",
			commit:    "HEAD",
			buildDate: "unknown",
		},
		{
			name:      "set empty values",
			version:   "",
			commit:    "",
			buildDate: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetVersionInfo(tt.version, tt.commit, tt.buildDate)

			assert.Equal(t, tt.version, versionInfo.Version)
			assert.Equal(t, tt.commit, versionInfo.Commit)
			assert.Equal(t, tt.buildDate, versionInfo.BuildDate)
		})
	}
}

// testConfig loads a configuration rooted in temp directories.
func testConfig(t *testing.T, extra ...map[string]any) *config.Config {
	t.Helper()
	overrides := append([]map[string]any{{
		"jobs": map[string]any{
			"dir":          t.TempDir(),
			"registry_dir": filepath.Join(t.TempDir(), "registry"),
		},
	}}, extra...)
	cfg, err := config.Load(context.Background(), overrides...)
	require.NoError(t, err)
	return cfg
}

func withAppConfig(t *testing.T, cfg *config.Config) {
	t.Helper()
	orig := appConfig
	appConfig = cfg
	t.Cleanup(func() { appConfig = orig })
}

func newTestCommand() *cobra.Command {
	c := &cobra.Command{}
	c.SetContext(context.Background())
	return c
}

func TestLoadConfig_FileAndLogLevelFlag(t *testing.T) {
	origFile, origLevel, origCfg := cfgFile, logLevel, appConfig
	defer func() { cfgFile, logLevel, appConfig = origFile, origLevel, origCfg }()

	path := filepath.Join(t.TempDir(), "gogenie.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jobs:\n  dir: /srv/genie/jobs\ncompletion:\n  workers: 9\n"), 0o644))

	cfgFile = path
	logLevel = "debug"
	require.NoError(t, loadConfig(newTestCommand(), nil))

	require.NotNil(t, appConfig)
	assert.Equal(t, "/srv/genie/jobs", appConfig.Jobs.Dir)
	assert.Equal(t, 9, appConfig.Completion.Workers)
	assert.Equal(t, "debug", appConfig.Logging.Level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	origFile, origLevel, origCfg := cfgFile, logLevel, appConfig
	defer func() { cfgFile, logLevel, appConfig = origFile, origLevel, origCfg }()

	cfgFile = ""
	logLevel = "loud"
	assert.Error(t, loadConfig(newTestCommand(), nil))
}

func TestRootCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "finalize", "version", "config", "doctor"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
