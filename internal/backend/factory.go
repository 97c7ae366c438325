package backend

import (
	"fmt"

	"coinwise/internal/ledger"
	"coinwise/internal/ledger/guest"
	"coinwise/internal/ledger/remote"
	"coinwise/internal/log"
	"coinwise/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	guests storage.Store
	remote *remote.Client
	locks  *guest.Locks
	logger *log.Logger
}

// NewFactory creates a factory over a guest store and the backend client.
// The client also relays guest chat prompts.
func NewFactory(guests storage.Store, client *remote.Client, logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		guests: guests,
		remote: client,
		locks:  &guest.Locks{},
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// ForSession implements Factory.ForSession
func (f *DefaultFactory) ForSession(s Session) (ledger.Backend, error) {
	if !s.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", s.Type)
	}

	switch s.Type {
	case GuestBackend:
		if s.GuestID == "" {
			return nil, ErrNoGuestID
		}
		var chat guest.ChatForwarder
		if f.remote != nil {
			chat = f.remote
		}
		return guest.New(s.GuestID, f.guests.Space(s.GuestID), chat,
			guest.WithLocks(f.locks),
			guest.WithLogger(f.logger),
		), nil
	case RemoteBackend:
		if s.Token == "" {
			return nil, ErrNoToken
		}
		if f.remote == nil {
			return nil, fmt.Errorf("remote backend is not configured")
		}
		return f.remote.Session(s.Token, s.User), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", s.Type)
	}
}

// Open wires the guest store and the backend client described by config.
func Open(config Config, logger *log.Logger) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Discard()
	}

	guests, err := storage.Open(storage.Options{
		Kind:            config.GuestStore,
		BoltPath:        config.BoltDBPath,
		SQLitePath:      config.SQLiteDBPath,
		MaxKeysPerGuest: config.MaxKeysPerGuest,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open guest store: %w", err)
	}
	logger.Info("Initialized guest store",
		"kind", config.GuestStore,
		"max_keys_per_guest", config.MaxKeysPerGuest)

	client := remote.NewClient(remote.Config{
		BaseURL: config.BackendURL,
		Timeout: config.BackendTimeout,
		Logger:  logger,
	})
	logger.Info("Initialized backend client",
		"base_url", config.BackendURL,
		"timeout", config.BackendTimeout)

	return &BackendResult{
		Factory: NewFactory(guests, client, logger),
		Guests:  guests,
		Remote:  client,
		Cleanup: guests.Close,
	}, nil
}
