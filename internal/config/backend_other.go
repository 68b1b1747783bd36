//go:build !darwin

package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// xdgPath resolves an XDG base directory env var, falling back to the
// conventional location under the user's home directory.
func xdgPath(envVar string, homeParts ...string) (string, bool) {
	if dir := os.Getenv(envVar); dir != "" {
		return dir, true
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	return filepath.Join(append([]string{home}, homeParts...)...), true
}

func defaultDataDir() string {
	base, ok := xdgPath("XDG_DATA_HOME", ".local", "share")
	if !ok {
		return "wingman-data"
	}
	return filepath.Join(base, "wingman")
}

// fileBackend keeps settings as one flat JSON object on disk. It is the
// backend on Linux and anything else without a native preferences store.
type fileBackend struct {
	path string
	data map[string]any
}

func newPlatformBackend() ConfigBackend {
	b := &fileBackend{data: make(map[string]any)}
	base, ok := xdgPath("XDG_CONFIG_HOME", ".config")
	if !ok {
		base = "."
	}
	b.path = filepath.Join(base, "wingman", "config.json")

	raw, err := os.ReadFile(b.path)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "[WARN] could not read config file %s: %v. Using default values.\n", b.path, err)
		}
		return b
	}
	if err := json.Unmarshal(raw, &b.data); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] could not parse config file %s: %v. Using default values.\n", b.path, err)
	}
	return b
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	if s, isStr := v.(string); isStr {
		return s, true, nil
	}
	return fmt.Sprintf("%v", v), true, nil
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	switch val := v.(type) {
	case float64:
		// JSON numbers decode as float64; reject anything that wouldn't
		// round-trip through int.
		if val != math.Trunc(val) || val < math.MinInt || val > math.MaxInt {
			return 0, true, fmt.Errorf("value %v for %s is not a valid integer or is out of range", val, key)
		}
		return int(val), true, nil
	case string:
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return i, true, nil
	}
	return 0, true, fmt.Errorf("invalid type for %s", key)
}

func (b *fileBackend) SetString(key, val string) error {
	b.data[key] = val
	return b.flush()
}

func (b *fileBackend) SetInt(key string, val int) error {
	b.data[key] = val
	return b.flush()
}

func (b *fileBackend) Delete(key string) error {
	delete(b.data, key)
	return b.flush()
}

func (b *fileBackend) flush() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	out, err := json.MarshalIndent(b.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(b.path, out, 0o600)
}
