package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rovergate.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
[transport]
mode = "tcp"
listen_addr = "0.0.0.0:30555"

[timing]
state_hz = 200.0
cmd_timeout_s = 0.2

[log]
console_level = "WARN"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp", cfg.Transport.Mode)
	assert.Equal(t, "0.0.0.0:30555", cfg.Transport.ListenAddr)
	assert.Equal(t, 200.0, cfg.Timing.StateHz)
	assert.Equal(t, 0.2, cfg.Timing.CmdTimeoutS)
	assert.Equal(t, "WARN", cfg.Log.ConsoleLevel)

	// Untouched sections keep their defaults.
	assert.Equal(t, "run", cfg.Recorder.Prefix)
	assert.Equal(t, 5000, cfg.Recorder.QueueMax)
	assert.Equal(t, "127.0.0.1:20002", cfg.Transport.CmdAddr)
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := Load(writeFile(t, "[transport]\nmode = \"serial\"\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "[timing]\nstate_hz = 0.0\n"))
	assert.Error(t, err)
}

func TestLoadMissingExplicitPathFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Default().validate())
}
