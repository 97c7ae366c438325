package backend

import (
	"fmt"
	"time"

	"coinwise/internal/config"
	"coinwise/internal/storage"
)

// Config holds configuration for backend creation
type Config struct {
	// Guest store
	GuestStore      storage.Kind
	BoltDBPath      string
	SQLiteDBPath    string
	MaxKeysPerGuest int

	// Remote backend
	BackendURL     string
	BackendTimeout time.Duration
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	kind := storage.Kind(appConfig.GuestStore)
	if !kind.IsValid() {
		return Config{}, fmt.Errorf("invalid guest store in config: %s", appConfig.GuestStore)
	}

	return Config{
		GuestStore:      kind,
		BoltDBPath:      appConfig.BoltDBPath,
		SQLiteDBPath:    appConfig.SQLiteDBPath,
		MaxKeysPerGuest: appConfig.MaxKeysPerGuest,

		BackendURL:     appConfig.BackendURL,
		BackendTimeout: appConfig.BackendTimeout,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.GuestStore.IsValid() {
		return fmt.Errorf("invalid guest store: %s", c.GuestStore)
	}

	switch c.GuestStore {
	case storage.KindSQLite:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite guest store")
		}
	case storage.KindBolt:
		if c.BoltDBPath == "" {
			return fmt.Errorf("Bolt database path is required for bolt guest store")
		}
	case storage.KindMemory:
		// Nothing to check
	}

	if c.BackendURL == "" {
		return fmt.Errorf("backend URL is required")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{GuestBackend, RemoteBackend}
}
