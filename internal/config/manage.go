package config

import (
	"fmt"
	"strconv"
	"time"
)

// KeyInfo is one row of `config show` output.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll lists every non-secret key with its effective value. Secrets are
// omitted entirely rather than masked so they never hit a terminal.
func ShowAll(cfg Config) []KeyInfo {
	var rows []KeyInfo
	for _, s := range specs {
		if s.secret {
			continue
		}
		rows = append(rows, KeyInfo{Key: s.key, EnvVar: s.env, Value: fmt.Sprintf("%v", s.extract(cfg))})
	}
	return rows
}

// SetKey validates a value against its key's type and persists it in the
// platform backend.
func SetKey(key, value string) error {
	s, ok := findSpec(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	if s.secret {
		return fmt.Errorf("cannot set secret %q via config; use environment variable %s", key, s.env)
	}

	b := newPlatformBackend()
	switch s.typ {
	case kInt:
		i, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", key, err)
		}
		return b.SetInt(key, i)
	case kDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration value for %s: %w", key, err)
		}
	}
	return b.SetString(key, value)
}

// ValidKeys returns the names a user may pass to SetKey.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}

func findSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}
