package config

import (
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Anthropic AnthropicConfig
	Storage   StorageConfig
	Uploads   UploadsConfig
	Admin     AdminConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port    int
	MCPPort int
}

type AnthropicConfig struct {
	APIKey string
	Model  string
}

type StorageConfig struct {
	DataDir string
}

type UploadsConfig struct {
	Dir       string
	Retention time.Duration
}

type AdminConfig struct {
	Token string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port:    4000,
			MCPPort: 4001,
		},
		Anthropic: AnthropicConfig{
			Model: "claude-3-5-haiku-20241022",
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Uploads: UploadsConfig{
			Retention: 24 * time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load assembles the effective configuration from the platform backend,
// WINGMAN_* environment variables, and the secret store.
//
// On macOS the backend is UserDefaults (domain: com.wingman.app) and
// secrets fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/wingman/config.json
// and secrets come from a secrets file or environment variables.
//
// Environment variables (WINGMAN_*) override backend values on all
// platforms. A missing Anthropic API key is not an error; the pipeline
// serves canned fallbacks until one is configured.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Anthropic.APIKey == "" {
		if key, err := kc.Get("wingman", "anthropic_api_key"); err == nil && key != "" {
			cfg.Anthropic.APIKey = key
		}
	}

	if cfg.Uploads.Dir == "" {
		cfg.Uploads.Dir = defaultUploadsDir(cfg.Storage.DataDir)
	}

	return cfg, nil
}

func defaultUploadsDir(dataDir string) string {
	return filepath.Join(dataDir, "uploads")
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
