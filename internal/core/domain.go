package core

import (
	"errors"
	"strings"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// MaxNameLength caps a transaction name, in bytes.
const MaxNameLength = 200

type (
	// TransactionType gives a transaction (or category) its direction.
	TransactionType string

	Transaction struct {
		ID         string          `json:"id,omitempty"`
		UserID     string          `json:"user_id,omitempty"`
		CategoryID string          `json:"category_id,omitempty"`
		Name       string          `json:"name"`
		Category   string          `json:"category"`
		Amount     Money           `json:"amount"`
		Type       TransactionType `json:"type"`
		Date       Date            `json:"date"`
		CreatedAt  Date            `json:"created_at"`
	}

	CategoryGroup struct {
		ID   string          `json:"id"`
		Name string          `json:"name"`
		Type TransactionType `json:"type"`
	}

	Category struct {
		ID      string          `json:"id,omitempty"`
		Name    string          `json:"name"`
		Icon    string          `json:"icon,omitempty"`
		Type    TransactionType `json:"type"`
		GroupID string          `json:"group_id"`
	}

	// Wallet holds the single balance a user owns.
	Wallet struct {
		ID      string `json:"id,omitempty"`
		UserID  string `json:"user_id,omitempty"`
		Balance Money  `json:"balance"`
	}

	User struct {
		ID       string `json:"id"`
		Email    string `json:"email,omitempty"`
		Username string `json:"username,omitempty"`
	}
)

var (
	ErrInvalidType       = errors.New("invalid transaction type")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyName         = errors.New("empty name")
	ErrNameTooLong       = errors.New("name too long (max 200 characters)")
	ErrEmptyCategory     = errors.New("empty category")
	ErrEmptyGroup        = errors.New("empty category group")
	ErrGroupTypeMismatch = errors.New("category type does not match its group")
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Signed returns the amount with the transaction's direction applied.
// Only Type decides the sign; the stored amount's sign is ignored.
func (t Transaction) Signed() Money {
	abs := t.Amount.Abs()
	if t.Type == Expense {
		return Money{Cents: -abs.Cents}
	}
	return abs
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if len(t.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	if strings.TrimSpace(t.Category) == "" && strings.TrimSpace(t.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(c.GroupID) == "" {
		return ErrEmptyGroup
	}
	return nil
}

// CheckGroup reports whether c may be filed under g.
func (c Category) CheckGroup(g CategoryGroup) error {
	if g.Type != "" && c.Type != g.Type {
		return ErrGroupTypeMismatch
	}
	return nil
}

// IsValidationError reports whether err came from one of the Validate methods.
func IsValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidType), errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrEmptyName), errors.Is(err, ErrNameTooLong),
		errors.Is(err, ErrEmptyCategory), errors.Is(err, ErrEmptyGroup),
		errors.Is(err, ErrGroupTypeMismatch):
		return true
	}
	return false
}
