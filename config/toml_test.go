package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ensureFiles(t *testing.T, rootDir string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := rootify(f, rootDir)
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}
}

func TestEnsureRoot(t *testing.T) {
	require := require.New(t)

	tmpDir := t.TempDir()

	// create root dir
	require.NoError(EnsureRoot(tmpDir))
	require.NoError(WriteDefaultConfigFileIfNone(tmpDir))

	// make sure config is set properly
	data, err := os.ReadFile(filepath.Join(tmpDir, defaultConfigFilePath))
	require.NoError(err)
	assert.True(t, strings.HasPrefix(string(data), configHeader))
	assert.Contains(t, string(data), "[light]")

	ensureFiles(t, tmpDir, "data", "config")
}

func TestWriteDefaultConfigFileIfNoneKeepsExisting(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, EnsureRoot(tmpDir))

	cfg := DefaultConfig()
	cfg.RPC.Remote = "https://node.example.com"
	require.NoError(t, WriteConfigFile(tmpDir, cfg))
	require.NoError(t, WriteDefaultConfigFileIfNone(tmpDir))

	data, err := os.ReadFile(ConfigFile(tmpDir))
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://node.example.com")
}

func TestConfigRoundTripThroughViper(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, EnsureRoot(tmpDir))

	cfg := DefaultConfig()
	cfg.LogFormat = LogFormatJSON
	cfg.DBBackend = "goleveldb"
	cfg.RPC.Remote = "https://node.example.com:8443"
	cfg.RPC.Timeout = 3 * time.Second
	cfg.Light.Waypoint = "0:0:00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"
	cfg.Light.ChainID = 4
	cfg.Light.AutoSyncWhenBehind = true
	cfg.Light.ParallelVerification = 8
	cfg.Light.UpdatePeriod = time.Minute
	cfg.Instrumentation.Prometheus = true
	require.NoError(t, WriteConfigFile(tmpDir, cfg))

	v := viper.New()
	v.SetConfigFile(ConfigFile(tmpDir))
	require.NoError(t, v.ReadInConfig())

	got := DefaultConfig()
	require.NoError(t, v.Unmarshal(got))
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Fatalf("config changed after a round trip (-want +got):\n%s", diff)
	}
	assert.NoError(t, got.ValidateBasic())
}
