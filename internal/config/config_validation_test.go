package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidConfigPasses(t *testing.T) {
	config := &Config{}
	applyDefaults(config)
	require.NoError(t, ValidateConfig(config))
}

func TestValidateRejectsNonPositiveShardCount(t *testing.T) {
	config := &Config{}
	applyDefaults(config)
	config.Tracer.ShardCount = 0

	err := ValidateConfig(config)
	require.Error(t, err)
	require.Contains(t, err.Error(), "shard_count")
}

func TestValidateRejectsEmptyDumpPath(t *testing.T) {
	config := &Config{}
	applyDefaults(config)
	config.Dump.Path = ""

	require.Error(t, ValidateConfig(config))
}

func TestValidateRejectsBadServerPortWhenEnabled(t *testing.T) {
	config := &Config{}
	applyDefaults(config)
	config.Server.Enabled = true
	config.Server.Port = 70000

	require.Error(t, ValidateConfig(config))
}

func TestValidateIgnoresPortWhenServerDisabled(t *testing.T) {
	config := &Config{}
	applyDefaults(config)
	config.Server.Enabled = false
	config.Server.Port = -1

	require.NoError(t, ValidateConfig(config))
}

func TestLoadConfigReadsYAMLFileAndAppliesEnvOverride(t *testing.T) {
	t.Setenv("LOCKPROF_SHARD_COUNT", "16")

	dir := t.TempDir()
	path := dir + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("dump:\n  path: custom.pclprof\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "custom.pclprof", cfg.Dump.Path)
	require.Equal(t, 16, cfg.Tracer.ShardCount, "env override must win over both file and default")
}

func TestLoadConfigWithNoFileStillProducesValidDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.NoError(t, ValidateConfig(cfg))
}
