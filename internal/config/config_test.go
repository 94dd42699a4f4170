package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "devbridge.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFileParsesServers(t *testing.T) {
	path := writeConfig(t, `{
		"servers": [
			{"extensions": [".go"], "command": ["gopls"], "languageTag": "go"},
			{"extensions": [".ts", ".tsx"], "command": ["typescript-language-server", "--stdio"]}
		]
	}`)

	f, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, f.Servers, 2)
	assert.Equal(t, "go", f.Servers[0].LanguageTag)
	assert.Equal(t, []string{".ts", ".tsx"}, f.Servers[1].Extensions)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestLoadFileMalformed(t *testing.T) {
	path := writeConfig(t, `not json`)
	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestToLSPConfigsDefaultsLanguageTag(t *testing.T) {
	f := &File{Servers: []ServerConfig{
		{Extensions: []string{".rs"}, Command: []string{"rust-analyzer"}},
		{Command: []string{"some-server"}},
	}}
	configs := f.ToLSPConfigs()
	require.Len(t, configs, 2)
	assert.Equal(t, ".rs", configs[0].LanguageTag)
	assert.Equal(t, "unknown", configs[1].LanguageTag)
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("DEVBRIDGE_TEST_KEY", "")
	assert.Equal(t, "fallback", envOrDefault("DEVBRIDGE_TEST_KEY", "fallback"))

	t.Setenv("DEVBRIDGE_TEST_KEY", "value")
	assert.Equal(t, "value", envOrDefault("DEVBRIDGE_TEST_KEY", "fallback"))
}

func TestEnvBool(t *testing.T) {
	t.Setenv("DEVBRIDGE_TEST_BOOL", "")
	assert.False(t, envBool("DEVBRIDGE_TEST_BOOL", false))

	t.Setenv("DEVBRIDGE_TEST_BOOL", "true")
	assert.True(t, envBool("DEVBRIDGE_TEST_BOOL", false))

	t.Setenv("DEVBRIDGE_TEST_BOOL", "not-a-bool")
	assert.True(t, envBool("DEVBRIDGE_TEST_BOOL", true))
}

func TestEnvInt(t *testing.T) {
	t.Setenv("DEVBRIDGE_TEST_INT", "")
	assert.Equal(t, 8, envInt("DEVBRIDGE_TEST_INT", 8))

	t.Setenv("DEVBRIDGE_TEST_INT", "16")
	assert.Equal(t, 16, envInt("DEVBRIDGE_TEST_INT", 8))

	t.Setenv("DEVBRIDGE_TEST_INT", "nope")
	assert.Equal(t, 8, envInt("DEVBRIDGE_TEST_INT", 8))
}

func TestLoadRuntimeDefaults(t *testing.T) {
	t.Setenv("DEVBRIDGE_CONFIG", "")
	t.Setenv("DEVBRIDGE_ADDR", "")
	t.Setenv("DEVBRIDGE_STDIO", "")
	t.Setenv("DEVBRIDGE_REQUIRE_AUTH", "")
	t.Setenv("DEVBRIDGE_AUTH_TOKEN", "")
	t.Setenv("DEVBRIDGE_WORKER_POOL_SIZE", "")

	rt := LoadRuntime()
	assert.Equal(t, "devbridge.json", rt.ConfigPath)
	assert.Equal(t, ":7717", rt.ListenAddr)
	assert.False(t, rt.StdioEnabled)
	assert.False(t, rt.RequireAuth)
	assert.Equal(t, 8, rt.WorkerPoolSize)
}
