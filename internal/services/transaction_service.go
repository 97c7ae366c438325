package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"coinwise/internal/cache"
	"coinwise/internal/core"
	"coinwise/internal/events"
	"coinwise/internal/ledger"
	"coinwise/internal/log"
)

// Invalidator drops cached entries by key prefix. Every cache.Cache is one.
type Invalidator interface {
	DeletePrefix(prefix string) int
}

// TransactionService runs transaction and wallet operations against the
// backend selected for the request, then announces and invalidates.
type TransactionService struct {
	publisher events.Publisher
	wallets   cache.Cache[core.Wallet]
	caches    []Invalidator
	logger    *log.StructuredLogger
}

// NewTransactionService builds the service. publisher may be nil when AMQP
// is not configured; caches are cleared for the caller's scope on every
// successful mutation.
func NewTransactionService(publisher events.Publisher, wallets cache.Cache[core.Wallet], logger *log.Logger, caches ...Invalidator) *TransactionService {
	if logger == nil {
		logger = log.Discard()
	}
	s := &TransactionService{
		publisher: publisher,
		wallets:   wallets,
		logger:    log.NewStructuredLogger(logger.WithComponent(log.ComponentLedger)),
	}
	if wallets != nil {
		s.caches = append(s.caches, wallets)
	}
	s.caches = append(s.caches, caches...)
	return s
}

// List fetches the records and the wallet baseline concurrently and builds
// the grouped, paginated view.
func (s *TransactionService) List(ctx context.Context, b ledger.Backend, q core.TransactionQuery) (core.TransactionView, error) {
	q = q.Normalize()

	var (
		page   ledger.TransactionPage
		wallet core.Wallet
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page, err = b.ListTransactions(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		wallet, err = s.Wallet(gctx, b)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.TransactionView{}, err
	}

	return core.BuildView(page.Transactions, page.Pagination, q, wallet.Balance), nil
}

// Wallet returns the balance, served from cache when fresh.
func (s *TransactionService) Wallet(ctx context.Context, b ledger.Backend) (core.Wallet, error) {
	key := cache.Key(string(b.Mode()), b.Identity(), "wallet")
	if s.wallets != nil {
		if w, ok := s.wallets.Get(key); ok {
			return w, nil
		}
	}
	w, err := b.GetWallet(ctx)
	if err != nil {
		return core.Wallet{}, err
	}
	if s.wallets != nil {
		s.wallets.Set(key, w)
	}
	return w, nil
}

func (s *TransactionService) UpdateWallet(ctx context.Context, b ledger.Backend, id string, balance core.Money) (core.Wallet, error) {
	w, err := b.UpdateWallet(ctx, id, balance)
	if err != nil {
		return core.Wallet{}, err
	}
	s.invalidate(b)
	return w, nil
}

func (s *TransactionService) Create(ctx context.Context, b ledger.Backend, tx core.Transaction) (core.Transaction, error) {
	created, err := b.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, err
	}
	s.afterMutation(ctx, b, events.ActionCreated, log.OpCreate, created)
	return created, nil
}

func (s *TransactionService) Update(ctx context.Context, b ledger.Backend, id string, tx core.Transaction) (core.Transaction, error) {
	updated, err := b.UpdateTransaction(ctx, id, tx)
	if err != nil {
		return core.Transaction{}, err
	}
	s.afterMutation(ctx, b, events.ActionUpdated, log.OpUpdate, updated)
	return updated, nil
}

func (s *TransactionService) Delete(ctx context.Context, b ledger.Backend, id string) error {
	if err := b.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.afterMutation(ctx, b, events.ActionDeleted, log.OpDelete, core.Transaction{ID: id})
	return nil
}

func (s *TransactionService) afterMutation(ctx context.Context, b ledger.Backend, action events.Action, op string, tx core.Transaction) {
	s.invalidate(b)
	s.logger.LogTransactionMutated(ctx, op, string(b.Mode()), tx.ID, string(tx.Type), tx.Amount.Cents, tx.Category)

	if s.publisher == nil {
		return
	}
	ev := events.NewTransactionEvent(action, string(b.Mode()), b.Identity(), tx)
	if err := s.publisher.PublishTransaction(ctx, ev); err != nil {
		// The mutation already happened; the event is lost.
		s.logger.LogError(ctx, "Failed to publish transaction event", err, log.ComponentEvents, log.OpPublish,
			log.NewFields().WithMode(string(b.Mode()), b.Identity()))
	}
}

func (s *TransactionService) invalidate(b ledger.Backend) {
	prefix := cache.ScopePrefix(string(b.Mode()), b.Identity())
	for _, c := range s.caches {
		c.DeletePrefix(prefix)
	}
}

// Close releases the event publisher.
func (s *TransactionService) Close() error {
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.Close(); err != nil {
		return fmt.Errorf("close publisher: %w", err)
	}
	return nil
}
