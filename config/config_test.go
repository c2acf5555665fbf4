package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8545", cfg.RPCAddress)
	require.Equal(t, "dq-local", cfg.NetworkName)
	_, err = os.Stat(path)
	require.NoError(t, err, "default config not written")

	// A second load reads the file back.
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "RPCAddress = \":8545\"\nDataDir = \"./data\"\nRPCAdress = \":9999\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown keys")
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "RPCAddress = \":8545\"\nDataDir = \"./data\"\nLogLevel = \"loud\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "LogLevel")
}

func TestRPCTokenFromEnv(t *testing.T) {
	cfg := &Config{RPCTokenEnv: "DQ_TEST_RPC_TOKEN"}
	t.Setenv("DQ_TEST_RPC_TOKEN", "  secret-token  ")
	require.Equal(t, "secret-token", cfg.RPCToken())
	cfg.RPCTokenEnv = ""
	require.Empty(t, cfg.RPCToken())
}
