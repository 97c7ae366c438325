package remote

import (
	"bytes"
	"encoding/json"

	"coinwise/internal/core"
)

// flexID decodes ids the backend may send as numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	*f = flexID(idString(bytes.TrimSpace(b)))
	return nil
}

type wireTransaction struct {
	ID         flexID               `json:"id"`
	UserID     flexID               `json:"user_id"`
	CategoryID flexID               `json:"category_id"`
	Name       string               `json:"name"`
	Category   string               `json:"category"`
	Amount     core.Money           `json:"amount"`
	Type       core.TransactionType `json:"type"`
	Date       core.Date            `json:"date"`
	CreatedAt  core.Date            `json:"created_at"`
}

func (w wireTransaction) toCore() core.Transaction {
	return core.Transaction{
		ID:         string(w.ID),
		UserID:     string(w.UserID),
		CategoryID: string(w.CategoryID),
		Name:       w.Name,
		Category:   w.Category,
		Amount:     w.Amount.Abs(),
		Type:       w.Type,
		Date:       w.Date,
		CreatedAt:  w.CreatedAt,
	}
}

// transactionList accepts {transactions, pagination} or a bare array.
type transactionList struct {
	Transactions []wireTransaction
	Pagination   *core.Pagination
}

func (l *transactionList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		return json.Unmarshal(b, &l.Transactions)
	}
	var env struct {
		Transactions []wireTransaction `json:"transactions"`
		Pagination   *core.Pagination  `json:"pagination"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	l.Transactions, l.Pagination = env.Transactions, env.Pagination
	return nil
}

type wireCategory struct {
	ID      flexID               `json:"id"`
	Name    string               `json:"name"`
	Icon    string               `json:"icon"`
	Type    core.TransactionType `json:"type"`
	GroupID flexID               `json:"group_id"`
}

func (w wireCategory) toCore() core.Category {
	return core.Category{ID: string(w.ID), Name: w.Name, Icon: w.Icon, Type: w.Type, GroupID: string(w.GroupID)}
}

type wireGroup struct {
	ID   flexID               `json:"id"`
	Name string               `json:"name"`
	Type core.TransactionType `json:"type"`
}

type wireWallet struct {
	ID      flexID     `json:"id"`
	UserID  flexID     `json:"user_id"`
	Balance core.Money `json:"balance"`
}

func (w wireWallet) toCore() core.Wallet {
	return core.Wallet{ID: string(w.ID), UserID: string(w.UserID), Balance: w.Balance}
}
