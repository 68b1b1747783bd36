package config

// ConfigBackend abstracts the platform-native settings store behind the
// WINGMAN_* env layer: UserDefaults (via the `defaults` CLI) on macOS, a
// JSON file under $XDG_CONFIG_HOME/wingman elsewhere.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}
