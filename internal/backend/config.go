package backend

import (
	"fmt"

	"facturas/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	kind := Kind(appConfig.StorageBackend)
	if !kind.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.StorageBackend)
	}

	return Config{
		Kind:         kind,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		DataDir:      appConfig.DataDir,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Kind.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Kind)
	}

	// The flat backend is the fallback for every kind, so it always needs a directory.
	if c.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}

	if c.Kind == SQLiteBackend && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}

	return nil
}

// Kinds returns all valid backend kinds
func Kinds() []Kind {
	return []Kind{SQLiteBackend, FlatBackend}
}

// KindStrings returns all valid backend kind strings
func KindStrings() []string {
	kinds := Kinds()
	strings := make([]string, len(kinds))
	for i, k := range kinds {
		strings[i] = k.String()
	}
	return strings
}
