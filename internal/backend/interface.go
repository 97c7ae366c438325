package backend

import (
	"errors"

	"coinwise/internal/core"
	"coinwise/internal/ledger"
	"coinwise/internal/ledger/remote"
	"coinwise/internal/storage"
)

var (
	ErrNoGuestID = errors.New("guest session without a guest id")
	ErrNoToken   = errors.New("authenticated session without a token")
)

// BackendType names the data source a request is served from.
type BackendType string

const (
	GuestBackend  BackendType = "guest"
	RemoteBackend BackendType = "remote"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case GuestBackend, RemoteBackend:
		return true
	default:
		return false
	}
}

// Mode maps the backend type onto the ledger mode it produces.
func (bt BackendType) Mode() ledger.Mode {
	if bt == RemoteBackend {
		return ledger.ModeRemote
	}
	return ledger.ModeGuest
}

// Session is the resolved identity of one request. Exactly one of GuestID
// or Token is meaningful, depending on Type.
type Session struct {
	Type    BackendType
	GuestID string
	Token   string
	User    core.User
}

// Identity is the value caches and logs are scoped by.
func (s Session) Identity() string {
	if s.Type == RemoteBackend {
		return s.User.ID
	}
	return s.GuestID
}

// Authenticated reports whether the session is backed by a signed-in user.
func (s Session) Authenticated() bool {
	return s.Type == RemoteBackend
}

// Factory builds the single backend a request talks to.
type Factory interface {
	ForSession(s Session) (ledger.Backend, error)
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds everything Open wired up.
type BackendResult struct {
	Factory Factory
	Guests  storage.Store
	Remote  *remote.Client
	Cleanup CleanupFunc
}
