//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultsDomain = "com.wingman.app"

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "wingman-data"
	}
	return filepath.Join(home, "Library", "Application Support", "wingman")
}

// darwinBackend shells out to `defaults` so settings land in the same
// UserDefaults domain the macOS app reads.
type darwinBackend struct {
	domain string
}

func newPlatformBackend() ConfigBackend {
	return &darwinBackend{domain: defaultsDomain}
}

func (b *darwinBackend) defaults(args ...string) error {
	return exec.Command("defaults", args...).Run()
}

func (b *darwinBackend) read(key string) (string, bool, error) {
	out, err := exec.Command("defaults", "read", b.domain, key).CombinedOutput()
	s := strings.TrimSpace(string(out))
	if err != nil {
		// `defaults read` exits 1 when the key is simply absent.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading default for key '%s': %w, output: %s", key, err, s)
	}
	return s, true, nil
}

func (b *darwinBackend) GetString(key string) (string, bool, error) {
	return b.read(key)
}

func (b *darwinBackend) GetInt(key string) (int, bool, error) {
	s, ok, err := b.read(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return i, true, nil
}

func (b *darwinBackend) SetString(key, val string) error {
	return b.defaults("write", b.domain, key, "-string", val)
}

func (b *darwinBackend) SetInt(key string, val int) error {
	return b.defaults("write", b.domain, key, "-int", strconv.Itoa(val))
}

func (b *darwinBackend) Delete(key string) error {
	return b.defaults("delete", b.domain, key)
}
