//go:build !darwin

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Without a system keychain, secrets live in a 0600 JSON file under the data
// dir, keyed service -> account -> value to mirror the darwin lookup.
func keychainGet(service, account string) ([]byte, error) {
	base, ok := xdgPath("XDG_DATA_HOME", ".local", "share")
	if !ok {
		base = "."
	}
	raw, err := os.ReadFile(filepath.Join(base, "wingman", "secrets.json"))
	if err != nil {
		return nil, fmt.Errorf("keychain not available: %w", err)
	}
	var secrets map[string]map[string]string
	if err := json.Unmarshal(raw, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	val, ok := secrets[service][account]
	if !ok {
		return nil, fmt.Errorf("no secret for %s/%s", service, account)
	}
	return []byte(val), nil
}
