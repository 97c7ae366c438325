package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"coinwise/internal/cache"
	"coinwise/internal/core"
	"coinwise/internal/events"
	"coinwise/internal/ledger"
	"coinwise/internal/log"
)

// fakeBackend is an in-memory ledger.Backend with call counters.
type fakeBackend struct {
	mode     ledger.Mode
	identity string

	mu          sync.Mutex
	txs         []core.Transaction
	wallet      core.Wallet
	categories  []core.Category
	groups      []core.CategoryGroup
	walletCalls int
	catCalls    int
	createdCats int

	insights     func(ctx context.Context) (core.InsightsResponse, error)
	insightCalls atomic.Int32
	createErr    error
}

var _ ledger.Backend = (*fakeBackend)(nil)

func (f *fakeBackend) Mode() ledger.Mode { return f.mode }
func (f *fakeBackend) Identity() string  { return f.identity }

func (f *fakeBackend) ListTransactions(context.Context, core.TransactionQuery) (ledger.TransactionPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.Transaction, len(f.txs))
	copy(out, f.txs)
	return ledger.TransactionPage{Transactions: out}, nil
}

func (f *fakeBackend) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if f.createErr != nil {
		return core.Transaction{}, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	tx.ID = "transaction_" + string(rune('a'+len(f.txs)))
	f.txs = append(f.txs, tx)
	return tx, nil
}

func (f *fakeBackend) UpdateTransaction(_ context.Context, id string, tx core.Transaction) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.txs {
		if f.txs[i].ID == id {
			tx.ID = id
			f.txs[i] = tx
			return tx, nil
		}
	}
	return core.Transaction{}, ledger.ErrNotFound
}

func (f *fakeBackend) DeleteTransaction(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.txs {
		if f.txs[i].ID == id {
			f.txs = append(f.txs[:i], f.txs[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeBackend) ListCategories(context.Context) ([]core.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catCalls++
	return f.categories, nil
}

func (f *fakeBackend) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdCats++
	c.ID = "category_new"
	f.categories = append(f.categories, c)
	return c, nil
}

func (f *fakeBackend) ListCategoryGroups(context.Context) ([]core.CategoryGroup, error) {
	return f.groups, nil
}

func (f *fakeBackend) GetWallet(context.Context) (core.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.walletCalls++
	return f.wallet, nil
}

func (f *fakeBackend) UpdateWallet(_ context.Context, id string, balance core.Money) (core.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wallet = core.Wallet{ID: id, Balance: balance}
	return f.wallet, nil
}

func (f *fakeBackend) Chat(context.Context, string) (ledger.ChatReply, error) {
	return ledger.ChatReply{}, nil
}

func (f *fakeBackend) ChatHistory(context.Context) ([]ledger.ChatMessage, error) {
	return nil, nil
}

func (f *fakeBackend) GenerateInsights(ctx context.Context, _ core.InsightRequest) (core.InsightsResponse, error) {
	f.insightCalls.Add(1)
	return f.insights(ctx)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.TransactionEvent
	err    error
}

func (p *recordingPublisher) PublishTransaction(_ context.Context, ev *events.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func expense(name string, cents int64, d core.Date) core.Transaction {
	return core.Transaction{Name: name, Category: "Food", Amount: core.Money{Cents: cents}, Type: core.Expense, Date: d}
}

func TestTransactionServiceList(t *testing.T) {
	b := &fakeBackend{
		mode: ledger.ModeGuest, identity: "g1",
		wallet: core.Wallet{Balance: core.Money{Cents: 1000000}},
		txs: []core.Transaction{
			{ID: "1", Name: "Rent", Category: "Bills", Amount: core.Money{Cents: 151200}, Type: core.Expense, Date: core.NewDate(2025, 10, 20)},
			{ID: "2", Name: "Gig", Category: "Freelance", Amount: core.Money{Cents: 50000}, Type: core.Income, Date: core.NewDate(2025, 10, 20)},
			{ID: "3", Name: "Taxi", Category: "Transport", Amount: core.Money{Cents: 30000}, Type: core.Expense, Date: core.NewDate(2025, 10, 21)},
		},
	}
	wallets := cache.NewLRUCache[core.Wallet](10, time.Minute)
	s := NewTransactionService(nil, wallets, log.Discard())

	view, err := s.List(context.Background(), b, core.TransactionQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Days) != 2 {
		t.Fatalf("days = %d", len(view.Days))
	}
	if got := view.Days[1].DailyTotal.Cents; got != -101200 {
		t.Errorf("2025-10-20 total = %d, want -101200", got)
	}
	if got := view.Days[0].Rows[0].RunningBalance.Cents; got != 868800 {
		t.Errorf("latest running balance = %d, want 868800", got)
	}

	if _, err := s.List(context.Background(), b, core.TransactionQuery{}); err != nil {
		t.Fatal(err)
	}
	if b.walletCalls != 1 {
		t.Errorf("wallet fetched %d times, want 1 (cached)", b.walletCalls)
	}
}

func TestTransactionServiceMutationsPublishAndInvalidate(t *testing.T) {
	b := &fakeBackend{mode: ledger.ModeRemote, identity: "7"}
	other := &fakeBackend{mode: ledger.ModeGuest, identity: "7"}
	wallets := cache.NewLRUCache[core.Wallet](10, time.Minute)
	pub := &recordingPublisher{}
	s := NewTransactionService(pub, wallets, log.Discard())
	ctx := context.Background()

	if _, err := s.Wallet(ctx, b); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Wallet(ctx, other); err != nil {
		t.Fatal(err)
	}

	tx, err := s.Create(ctx, b, expense("Lunch", 1500, core.NewDate(2025, 10, 20)))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := wallets.Get(cache.Key("remote", "7", "wallet")); ok {
		t.Error("create should invalidate the caller's wallet")
	}
	if _, ok := wallets.Get(cache.Key("guest", "7", "wallet")); !ok {
		t.Error("create must not touch another mode's cache")
	}

	if _, err := s.Update(ctx, b, tx.ID, expense("Dinner", 2500, core.NewDate(2025, 10, 20))); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, b, tx.ID); err != nil {
		t.Fatal(err)
	}

	if len(pub.events) != 3 {
		t.Fatalf("published %d events, want 3", len(pub.events))
	}
	want := []events.Action{events.ActionCreated, events.ActionUpdated, events.ActionDeleted}
	for i, ev := range pub.events {
		if ev.Action != want[i] || ev.Mode != "remote" || ev.Identity != "7" || ev.TransactionID != tx.ID {
			t.Errorf("event %d = %+v", i, ev)
		}
	}
}

func TestTransactionServicePublishFailureIsSoft(t *testing.T) {
	b := &fakeBackend{mode: ledger.ModeGuest, identity: "g"}
	s := NewTransactionService(&recordingPublisher{err: errors.New("channel closed")}, nil, log.Discard())
	if _, err := s.Create(context.Background(), b, expense("x", 1, core.NewDate(2025, 1, 1))); err != nil {
		t.Errorf("publish failure leaked into the request: %v", err)
	}
}

func TestTransactionServiceBackendErrorSkipsEvent(t *testing.T) {
	pub := &recordingPublisher{}
	b := &fakeBackend{mode: ledger.ModeGuest, identity: "g", createErr: core.ErrInvalidAmount}
	s := NewTransactionService(pub, nil, log.Discard())
	if _, err := s.Create(context.Background(), b, core.Transaction{}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("err = %v", err)
	}
	if _, err := s.Update(context.Background(), b, "missing", expense("x", 1, core.NewDate(2025, 1, 1))); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Errorf("failed mutations published %d events", len(pub.events))
	}
}

func TestInsightServiceSharesInFlightRequests(t *testing.T) {
	release := make(chan struct{})
	b := &fakeBackend{mode: ledger.ModeRemote, identity: "7"}
	b.insights = func(ctx context.Context) (core.InsightsResponse, error) {
		<-release
		return core.InsightsResponse{
			Insights: core.InsightPayload{Kind: core.InsightFull, Full: &core.Insights{Score: 72, ScoreLabel: "Good"}},
			Cached:   true,
		}, nil
	}
	s := NewInsightService(log.Discard())
	req := core.InsightRequest{StartDate: "2025-10-01", EndDate: "2025-10-31"}

	const callers = 5
	var wg sync.WaitGroup
	results := make([]InsightResult, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.Generate(context.Background(), b, req)
			if err != nil {
				t.Error(err)
			}
			results[i] = res
		}(i)
	}
	for b.insightCalls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := b.insightCalls.Load(); n < 1 || n >= callers {
		t.Errorf("backend called %d times for %d identical requests", n, callers)
	}
	for _, r := range results {
		if r.Insights.Kind != core.InsightFull || r.Insights.Score.Value != "72" || !r.Cached {
			t.Errorf("result = %+v", r)
		}
	}
}

func TestInsightServiceCallerCancelDoesNotFailOthers(t *testing.T) {
	release := make(chan struct{})
	b := &fakeBackend{mode: ledger.ModeRemote, identity: "7"}
	b.insights = func(ctx context.Context) (core.InsightsResponse, error) {
		<-release
		if err := ctx.Err(); err != nil {
			return core.InsightsResponse{}, err
		}
		return core.InsightsResponse{Insights: core.InsightPayload{Kind: core.InsightAbsent}}, nil
	}
	s := NewInsightService(log.Discard())
	req := core.InsightRequest{StartDate: "2025-10-01"}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Generate(firstCtx, b, req)
		firstErr <- err
	}()
	for b.insightCalls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	secondErr := make(chan error, 1)
	go func() {
		res, err := s.Generate(context.Background(), b, req)
		if err == nil && res.Insights.Kind != core.InsightAbsent {
			t.Errorf("second result = %+v", res)
		}
		secondErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("first caller err = %v", err)
	}
	close(release)
	if err := <-secondErr; err != nil {
		t.Errorf("second caller err = %v", err)
	}
	if n := b.insightCalls.Load(); n != 1 {
		t.Errorf("backend called %d times", n)
	}
}

func TestInsightServiceErrors(t *testing.T) {
	s := NewInsightService(nil)
	b := &fakeBackend{mode: ledger.ModeRemote, identity: "7"}
	b.insights = func(context.Context) (core.InsightsResponse, error) {
		return core.InsightsResponse{}, core.ErrMalformedInsights
	}
	if _, err := s.Generate(context.Background(), b, core.InsightRequest{}); !errors.Is(err, core.ErrMalformedInsights) {
		t.Errorf("err = %v", err)
	}

	b.insights = func(context.Context) (core.InsightsResponse, error) {
		return core.InsightsResponse{Insights: core.InsightPayload{Kind: core.InsightAbsent}}, nil
	}
	res, err := s.Generate(context.Background(), b, core.InsightRequest{})
	if err != nil || res.Insights.Kind != core.InsightAbsent {
		t.Errorf("absent = %+v, %v", res, err)
	}
}

func TestCategoryService(t *testing.T) {
	b := &fakeBackend{
		mode: ledger.ModeRemote, identity: "7",
		categories: []core.Category{{ID: "1", Name: "Food", Type: core.Expense, GroupID: "g1"}},
		groups: []core.CategoryGroup{
			{ID: "g1", Name: "Needs", Type: core.Expense},
			{ID: "g2", Name: "Income", Type: core.Income},
		},
	}
	s := NewCategoryService(cache.NewLRUCache[Taxonomy](10, time.Minute), log.Discard())
	ctx := context.Background()

	tax, err := s.Taxonomy(ctx, b)
	if err != nil || len(tax.Categories) != 1 || len(tax.Groups) != 2 {
		t.Fatalf("taxonomy = %+v, %v", tax, err)
	}
	if _, err := s.Categories(ctx, b); err != nil {
		t.Fatal(err)
	}
	if b.catCalls != 1 {
		t.Errorf("categories fetched %d times, want 1", b.catCalls)
	}

	_, err = s.Create(ctx, b, core.Category{Name: "Bonus", Type: core.Income, GroupID: "g1"})
	if !errors.Is(err, core.ErrGroupTypeMismatch) {
		t.Errorf("expected type mismatch, got %v", err)
	}
	if _, err := s.Create(ctx, b, core.Category{Name: "  ", Type: core.Income, GroupID: "g2"}); !core.IsValidationError(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if b.createdCats != 0 {
		t.Fatal("invalid categories reached the backend")
	}

	created, err := s.Create(ctx, b, core.Category{Name: " Bonus ", Type: core.Income, GroupID: "g2"})
	if err != nil || created.Name != "Bonus" {
		t.Fatalf("created = %+v, %v", created, err)
	}
	cats, _ := s.Categories(ctx, b)
	if len(cats) != 2 {
		t.Errorf("cache not invalidated after create: %d categories", len(cats))
	}
}
