package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	testChdir(t, t.TempDir())

	cfg, err := Load(Options{LookupEnv: noEnv})
	require.NoError(t, err)

	assert.Equal(t, DefaultServer, cfg.Server)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, DefaultPullBatchSize, cfg.PullBatchSize)
	assert.Equal(t, DefaultMaxPolls, cfg.MaxPolls)
	assert.Equal(t, 100.0, cfg.StopThreshold)
	assert.Equal(t, time.Duration(0), cfg.PollInterval)
	assert.Empty(t, cfg.Proxy)
	assert.Empty(t, cfg.Targets)
}

func TestLoad_Precedence(t *testing.T) {
	testChdir(t, t.TempDir())

	file := writeFile(t, "lingua.yaml", `
server: https://file.example.com/
api_key: from-file
timeout: 30
batch_size: 50
poll_interval: 2s
max_polls: 3
stop_threshold: 95
targets: [es, fr]
handoff: ["meili", "populate"]
`)
	envFile := writeFile(t, ".env", "LINGUA_API_KEY=from-dotenv\nLINGUA_TIMEOUT=5\n")

	cfg, err := Load(Options{
		File:      file,
		EnvFile:   envFile,
		LookupEnv: envMap(map[string]string{"LINGUA_TIMEOUT": "7"}),
		Override: func(c *Config) {
			c.BatchSize = 25
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "https://file.example.com", cfg.Server, "trailing slash trimmed")
	assert.Equal(t, "from-dotenv", cfg.APIKey)
	assert.Equal(t, 7*time.Second, cfg.Timeout, "process env beats dotenv")
	assert.Equal(t, 25, cfg.BatchSize, "override beats file")
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 3, cfg.MaxPolls)
	assert.Equal(t, 95.0, cfg.StopThreshold)
	assert.Equal(t, []string{"es", "fr"}, cfg.Targets)
	assert.Equal(t, []string{"meili", "populate"}, cfg.Handoff)
}

func TestLoad_EnvTargets(t *testing.T) {
	testChdir(t, t.TempDir())

	cfg, err := Load(Options{LookupEnv: envMap(map[string]string{"LINGUA_TARGETS": "es, fr de,es"})})
	require.NoError(t, err)
	assert.Equal(t, []string{"es", "fr", "de"}, cfg.Targets)
}

func TestLoad_WipProxy(t *testing.T) {
	testChdir(t, t.TempDir())

	cfg, err := Load(Options{LookupEnv: envMap(map[string]string{"LINGUA_BASE_URI": "https://translation-server.wip"})})
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:7080", cfg.Proxy)

	cfg, err = Load(Options{LookupEnv: envMap(map[string]string{
		"LINGUA_BASE_URI": "https://translation-server.wip",
		"LINGUA_PROXY":    "",
	})})
	require.NoError(t, err)
	assert.Empty(t, cfg.Proxy, "explicit empty proxy disables derivation")
}

func TestLoad_Invalid(t *testing.T) {
	testChdir(t, t.TempDir())

	tests := []struct {
		name     string
		override func(*Config)
	}{
		{"server scheme", func(c *Config) { c.Server = "ftp://example.com" }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"batch size", func(c *Config) { c.BatchSize = 0 }},
		{"threshold", func(c *Config) { c.StopThreshold = 101 }},
		{"driver", func(c *Config) { c.Driver = "mysql" }},
		{"target", func(c *Config) { c.Targets = []string{"1"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(Options{LookupEnv: noEnv, Override: tt.override})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoad_BadFile(t *testing.T) {
	testChdir(t, t.TempDir())

	_, err := Load(Options{File: "missing.yaml", LookupEnv: noEnv})
	assert.Error(t, err)

	bad := writeFile(t, "bad.yaml", "timeout: soon\n")
	_, err = Load(Options{File: bad, LookupEnv: noEnv})
	assert.Error(t, err)
}

func TestResolveTargets(t *testing.T) {
	cfg := Default()

	_, err := cfg.ResolveTargets(nil)
	assert.ErrorIs(t, err, ErrNoTargets)

	cfg.Targets = []string{"de"}
	got, err := cfg.ResolveTargets(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"de"}, got)

	got, err = cfg.ResolveTargets([]string{"es", "es", "fr"})
	require.NoError(t, err)
	assert.Equal(t, []string{"es", "fr"}, got)
}

func TestParseSeconds(t *testing.T) {
	d, err := ParseSeconds("2.5")
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, d)

	d, err = ParseSeconds("1m")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)

	_, err = ParseSeconds("soon")
	assert.Error(t, err)
}
