// Package ledger defines the data-source capabilities shared by the guest
// store and the remote backend client. Handlers depend on these interfaces
// only, so the same call sites serve both modes.
package ledger

import (
	"context"
	"errors"
	"time"

	"coinwise/internal/core"
)

// Mode names the data source serving a request.
type Mode string

const (
	ModeGuest  Mode = "guest"
	ModeRemote Mode = "remote"
)

var (
	// ErrSignInRequired is returned for features guests cannot use.
	ErrSignInRequired = errors.New("sign in to use this feature")

	// ErrGuestLimitReached is returned once a guest exhausts the hourly chat allowance.
	ErrGuestLimitReached = errors.New("guest message limit reached, sign in to keep chatting")

	ErrEmptyPrompt  = errors.New("prompt is required")
	ErrNotFound     = errors.New("record not found")
	ErrUnknownGroup = errors.New("unknown category group")
)

// TransactionPage is one listing result. Pagination is set when the source
// already filtered and paginated; when nil, Transactions is every record and
// the caller derives the page.
type TransactionPage struct {
	Transactions []core.Transaction `json:"transactions"`
	Pagination   *core.Pagination   `json:"pagination,omitempty"`
}

type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Usage reports a guest's chat allowance.
type Usage struct {
	Count     int       `json:"count"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
}

type ChatReply struct {
	Reply string `json:"reply"`
	Usage *Usage `json:"usage,omitempty"`
}

// Credentials are forwarded untouched to the backend auth endpoints.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username,omitempty"`
}

// Ports for the two data sources.
type (
	TransactionRepository interface {
		ListTransactions(ctx context.Context, q core.TransactionQuery) (TransactionPage, error)
		CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		// UpdateTransaction replaces the record in full.
		UpdateTransaction(ctx context.Context, id string, tx core.Transaction) (core.Transaction, error)
		// DeleteTransaction succeeds when the record is already gone.
		DeleteTransaction(ctx context.Context, id string) error
	}

	CategoryRepository interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		ListCategoryGroups(ctx context.Context) ([]core.CategoryGroup, error)
	}

	WalletRepository interface {
		GetWallet(ctx context.Context) (core.Wallet, error)
		UpdateWallet(ctx context.Context, id string, balance core.Money) (core.Wallet, error)
	}

	Assistant interface {
		Chat(ctx context.Context, prompt string) (ChatReply, error)
		ChatHistory(ctx context.Context) ([]ChatMessage, error)
	}

	InsightGenerator interface {
		GenerateInsights(ctx context.Context, req core.InsightRequest) (core.InsightsResponse, error)
	}

	// Backend is everything a request may ask of its data source.
	Backend interface {
		TransactionRepository
		CategoryRepository
		WalletRepository
		Assistant
		InsightGenerator
		Mode() Mode
		// Identity is the guest id or the user id, for cache scoping.
		Identity() string
	}

	// Authenticator talks to the backend auth endpoints.
	Authenticator interface {
		Login(ctx context.Context, creds Credentials) (token string, err error)
		Signup(ctx context.Context, creds Credentials) error
		Me(ctx context.Context, token string) (core.User, error)
	}
)
