package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())

	assert.Equal(t, 5001, cfg.Port)
	assert.Equal(t, "sha256", cfg.HashAlgorithm)
	assert.Equal(t, "file", cfg.TransferTypes.File)
	assert.Equal(t, "directory", cfg.TransferTypes.Directory)
	assert.Equal(t, 30*time.Second, cfg.IOTimeout())
	assert.Equal(t, 60*time.Second, cfg.FileAckTimeout())
}

func TestLoadNoPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"port": 6001,
		"hash_algorithm": "sha1",
		"skip_hash_verification": true,
		"io_timeout": 5
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6001, cfg.Port)
	assert.Equal(t, "sha1", cfg.HashAlgorithm)
	assert.True(t, cfg.SkipHashVerification)
	assert.Equal(t, 5*time.Second, cfg.IOTimeout())

	// Fields absent from the file keep their defaults.
	assert.Equal(t, Default().BufferSize, cfg.BufferSize)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LANTRANSFER_DIR", "/tmp/incoming")
	t.Setenv("LANTRANSFER_HASH_ALGORITHM", "md5")
	t.Setenv("LANTRANSFER_PORT", "7001")
	t.Setenv("LANTRANSFER_SKIP_VERIFY", "true")
	t.Setenv("LANTRANSFER_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/incoming", cfg.ReceivedDir)
	assert.Equal(t, "md5", cfg.HashAlgorithm)
	assert.Equal(t, 7001, cfg.Port)
	assert.True(t, cfg.SkipHashVerification)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port": 6001}`), 0o644))
	t.Setenv("LANTRANSFER_PORT", "7001")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7001, cfg.Port)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"zero buffer":     func(c *Config) { c.BufferSize = 0 },
		"zero chunk":      func(c *Config) { c.HashChunkSize = 0 },
		"port too high":   func(c *Config) { c.Port = 70000 },
		"empty algorithm": func(c *Config) { c.HashAlgorithm = "" },
		"empty type tag":  func(c *Config) { c.TransferTypes.File = "" },
		"negative probe":  func(c *Config) { c.LivenessProbeInterval = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.validate())
		})
	}
}
