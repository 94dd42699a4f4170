// Package config loads devbridge's JSON configuration file (spec §6
// "Configuration file") and applies environment-variable overrides,
// mirroring the teacher's cmd/relurpify/main.go envOrDefault/envBool
// helpers rather than reaching for a config-loading library the pack
// never demonstrates.
package config

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/lexcodex/devbridge/internal/lsp"
)

// File is the on-disk JSON shape of spec §6's configuration file.
type File struct {
	Servers       []ServerConfig `json:"servers"`
	ServerOptions *ServerOptions `json:"serverOptions,omitempty"`
}

// ServerConfig is one entry of the `servers` array.
type ServerConfig struct {
	Extensions             []string `json:"extensions"`
	Command                []string `json:"command"`
	RootDir                string   `json:"rootDir,omitempty"`
	RestartIntervalMinutes int      `json:"restartIntervalMinutes,omitempty"`
	InitializationOptions  any      `json:"initializationOptions,omitempty"`
	LanguageTag            string   `json:"languageTag,omitempty"`
}

// ServerOptions is the optional predictive-loading tuning block.
type ServerOptions struct {
	EnablePredictiveLoading    bool     `json:"enablePredictiveLoading,omitempty"`
	PredictiveLoadingDepth     int      `json:"predictiveLoadingDepth,omitempty"`
	PredictiveLoadingExtensions []string `json:"predictiveLoadingExtensions,omitempty"`
}

// Runtime is the process-wide settings pulled from environment
// variables rather than the JSON file, since they vary per deployment
// rather than per project (addresses, auth, worker pool size).
type Runtime struct {
	ConfigPath    string
	ListenAddr    string
	StdioEnabled  bool
	RequireAuth   bool
	AuthToken     string
	WorkerPoolSize int
}

// LoadFile reads and parses path as a configuration File.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// ToLSPConfigs converts the file's server entries into internal/lsp.Config
// values, the shape the supervisor pool actually consumes.
func (f *File) ToLSPConfigs() []lsp.Config {
	out := make([]lsp.Config, 0, len(f.Servers))
	for _, s := range f.Servers {
		out = append(out, lsp.Config{
			LanguageTag:            languageTagOrDefault(s),
			Extensions:             s.Extensions,
			Command:                s.Command,
			InitializationOptions:  s.InitializationOptions,
			RestartIntervalMinutes: s.RestartIntervalMinutes,
		})
	}
	return out
}

func languageTagOrDefault(s ServerConfig) string {
	if s.LanguageTag != "" {
		return s.LanguageTag
	}
	if len(s.Extensions) > 0 {
		return s.Extensions[0]
	}
	return "unknown"
}

// LoadRuntime builds a Runtime from environment variables, the way
// cmd/relurpify/main.go's envOrDefault/envBool build its own flag
// defaults.
func LoadRuntime() Runtime {
	return Runtime{
		ConfigPath:     envOrDefault("DEVBRIDGE_CONFIG", "devbridge.json"),
		ListenAddr:     envOrDefault("DEVBRIDGE_ADDR", ":7717"),
		StdioEnabled:   envBool("DEVBRIDGE_STDIO", false),
		RequireAuth:    envBool("DEVBRIDGE_REQUIRE_AUTH", false),
		AuthToken:      envOrDefault("DEVBRIDGE_AUTH_TOKEN", ""),
		WorkerPoolSize: envInt("DEVBRIDGE_WORKER_POOL_SIZE", 8),
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
