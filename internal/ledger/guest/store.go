// Package guest serves the ledger from a guest's private keyspace. Nothing
// stored here is ever sent to the backend, except chat prompts.
package guest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	"coinwise/internal/core"
	"coinwise/internal/ledger"
	"coinwise/internal/log"
	"coinwise/internal/storage"
)

// Reserved keys inside a guest keyspace.
const (
	TransactionPrefix = "transaction_"
	KeyCategories     = "guest_categories"
	KeyCategoryGroups = "guest_category_groups"
	KeyChat           = "guest_chat"
	KeyUsage          = "guest_usage"
	KeyBalance        = "guest_balance"
)

// ChatForwarder relays a guest prompt to the assistant without credentials.
type ChatForwarder interface {
	GuestChat(ctx context.Context, prompt string) (string, error)
}

// Store implements ledger.Backend for one guest.
type Store struct {
	kv      storage.KV
	guestID string
	chat    ChatForwarder
	now     func() time.Time
	logger  *log.Logger

	// mu serialises read-modify-write cycles on list-valued keys. It is
	// shared by every Store of the same guest when built with WithLocks.
	mu *sync.Mutex
}

// Locks hands out one mutex per guest, striped to bound memory.
type Locks struct {
	stripes [64]sync.Mutex
}

func (l *Locks) For(guestID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(guestID))
	return &l.stripes[h.Sum32()%uint32(len(l.stripes))]
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLocks(l *Locks) Option {
	return func(s *Store) { s.mu = l.For(s.guestID) }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l.WithComponent(log.ComponentGuest) }
}

func New(guestID string, kv storage.KV, chat ChatForwarder, opts ...Option) *Store {
	s := &Store{
		kv:      kv,
		guestID: guestID,
		chat:    chat,
		now:     time.Now,
		logger:  log.FromContext(context.Background()).WithComponent(log.ComponentGuest),
		mu:      &sync.Mutex{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ ledger.Backend = (*Store)(nil)

func (s *Store) Mode() ledger.Mode { return ledger.ModeGuest }

func (s *Store) Identity() string { return s.guestID }

// ListTransactions returns every stored transaction, newest first. Filtering
// and paging are left to the aggregator so running balances see the full set.
func (s *Store) ListTransactions(ctx context.Context, _ core.TransactionQuery) (ledger.TransactionPage, error) {
	keys, err := s.kv.Keys(ctx, TransactionPrefix)
	if err != nil {
		return ledger.TransactionPage{}, fmt.Errorf("list transaction keys: %w", err)
	}

	txs := make([]core.Transaction, 0, len(keys))
	for _, key := range keys {
		raw, err := s.kv.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				s.logger.WarnContext(ctx, "Skipping unreadable transaction", log.FieldKey, key, log.FieldError, err)
			}
			continue
		}
		var tx core.Transaction
		if err := json.Unmarshal(raw, &tx); err != nil {
			s.logger.WarnContext(ctx, "Skipping corrupt transaction", log.FieldKey, key, log.FieldError, err)
			continue
		}
		if tx.ID == "" {
			tx.ID = key
		}
		txs = append(txs, tx)
	}
	core.SortTransactions(txs, false)
	return ledger.TransactionPage{Transactions: txs}, nil
}

func (s *Store) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case tx.ID == "":
		tx.ID = s.nextID(ctx, TransactionPrefix)
	case !strings.HasPrefix(tx.ID, TransactionPrefix):
		tx.ID = TransactionPrefix + tx.ID
	}
	tx.UserID = ""
	tx.Amount = tx.Amount.Abs()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = core.Date{Time: s.now().UTC()}
	}
	s.write(ctx, tx.ID, tx)
	return tx, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, id string, tx core.Transaction) (core.Transaction, error) {
	if !strings.HasPrefix(id, TransactionPrefix) {
		return core.Transaction{}, ledger.ErrNotFound
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.kv.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return core.Transaction{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("read %s: %w", id, err)
	}
	var prev core.Transaction
	if err := json.Unmarshal(raw, &prev); err == nil && tx.CreatedAt.IsZero() {
		tx.CreatedAt = prev.CreatedAt
	}

	tx.ID = id
	tx.UserID = ""
	tx.Amount = tx.Amount.Abs()
	s.write(ctx, id, tx)
	return tx, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	if !strings.HasPrefix(id, TransactionPrefix) {
		return nil
	}
	if err := s.kv.Delete(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete guest transaction", log.FieldKey, id, log.FieldError, err)
	}
	return nil
}

type walletRecord struct {
	Balance core.Money `json:"balance"`
}

// GetWallet returns the guest balance, zero until one is set.
func (s *Store) GetWallet(ctx context.Context) (core.Wallet, error) {
	w := core.Wallet{ID: KeyBalance}
	var rec walletRecord
	if s.read(ctx, KeyBalance, &rec) {
		w.Balance = rec.Balance
	}
	return w, nil
}

func (s *Store) UpdateWallet(ctx context.Context, _ string, balance core.Money) (core.Wallet, error) {
	s.write(ctx, KeyBalance, walletRecord{Balance: balance})
	return core.Wallet{ID: KeyBalance, Balance: balance}, nil
}

// GenerateInsights is not offered to guests.
func (s *Store) GenerateInsights(context.Context, core.InsightRequest) (core.InsightsResponse, error) {
	return core.InsightsResponse{}, ledger.ErrSignInRequired
}

// nextID returns prefix+epochMillis, stepping past millis already taken.
func (s *Store) nextID(ctx context.Context, prefix string) string {
	ms := s.now().UnixMilli()
	for {
		id := prefix + strconv.FormatInt(ms, 10)
		if _, err := s.kv.Get(ctx, id); err != nil {
			return id
		}
		ms++
	}
}

// read decodes key into v and reports whether it held a usable value.
// Corrupt values are logged and treated as absent.
func (s *Store) read(ctx context.Context, key string, v any) bool {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.WarnContext(ctx, "Guest storage read failed", log.FieldKey, key, log.FieldError, err)
		}
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		s.logger.WarnContext(ctx, "Discarding corrupt guest value", log.FieldKey, key, log.FieldError, err)
		return false
	}
	return true
}

// write persists v under key. A failed write is logged and dropped: guest
// mutations never fail the request.
func (s *Store) write(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to encode guest value", log.FieldKey, key, log.FieldError, err)
		return
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		s.logger.ErrorContext(ctx, "Guest storage write failed, change lost",
			log.FieldKey, key, log.FieldError, err, log.FieldOperation, log.OpUpdate)
	}
}
