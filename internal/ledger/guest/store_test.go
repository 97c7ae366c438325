package guest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"coinwise/internal/core"
	"coinwise/internal/ledger"
	"coinwise/internal/log"
	"coinwise/internal/storage"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type stubChat struct {
	reply   string
	err     error
	prompts []string
}

func (s *stubChat) GuestChat(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

// failingKV accepts reads but rejects every write, like a full browser quota.
type failingKV struct{ storage.KV }

func (failingKV) Set(context.Context, string, []byte) error { return storage.ErrQuotaExceeded }

func newStore(t *testing.T, kv storage.KV, chat ChatForwarder) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 10, 21, 12, 0, 0, 0, time.UTC)}
	if kv == nil {
		kv = storage.NewMemoryStore(0).Space("guest-1")
	}
	return New("guest-1", kv, chat, WithClock(clock.Now), WithLogger(log.Discard())), clock
}

func sample() core.Transaction {
	return core.Transaction{
		Name:     "Groceries",
		Category: "Food",
		Amount:   core.Money{Cents: 151200},
		Type:     core.Expense,
		Date:     core.NewDate(2025, 10, 20),
	}
}

func TestCreateThenListRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, clock := newStore(t, nil, nil)

	created, err := s.CreateTransaction(ctx, sample())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if want := "transaction_1761048000000"; created.ID != want {
		t.Errorf("id = %q, want %q", created.ID, want)
	}

	page, err := s.ListTransactions(ctx, core.TransactionQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Transactions) != 1 || page.Pagination != nil {
		t.Fatalf("unexpected page %+v", page)
	}
	got := page.Transactions[0]
	want := sample()
	want.ID = created.ID
	want.CreatedAt = core.Date{Time: clock.t}
	if !got.Date.Equal(want.Date.Time) || !got.CreatedAt.Equal(want.CreatedAt.Time) {
		t.Fatalf("dates changed: %+v", got)
	}
	got.Date, got.CreatedAt, want.Date, want.CreatedAt = core.Date{}, core.Date{}, core.Date{}, core.Date{}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestCreateInSameMillisecondKeepsBoth(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, nil, nil)
	a, _ := s.CreateTransaction(ctx, sample())
	b, _ := s.CreateTransaction(ctx, sample())
	if a.ID == b.ID {
		t.Fatalf("ids collide: %s", a.ID)
	}
	page, _ := s.ListTransactions(ctx, core.TransactionQuery{})
	if len(page.Transactions) != 2 {
		t.Errorf("expected 2 transactions, got %d", len(page.Transactions))
	}
}

func TestCreateWithExplicitIDOverwrites(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, nil, nil)
	tx := sample()
	tx.ID = "transaction_42"
	if _, err := s.CreateTransaction(ctx, tx); err != nil {
		t.Fatal(err)
	}
	tx.Name = "Replaced"
	if _, err := s.CreateTransaction(ctx, tx); err != nil {
		t.Fatal(err)
	}
	page, _ := s.ListTransactions(ctx, core.TransactionQuery{})
	if len(page.Transactions) != 1 || page.Transactions[0].Name != "Replaced" {
		t.Errorf("expected single overwritten record, got %+v", page.Transactions)
	}
}

func TestListSkipsCorruptAndSortsByDate(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore(0).Space("guest-1")
	_ = kv.Set(ctx, "transaction_1", []byte(`{"name":"old","type":"expense","amount":1,"date":"2025-01-01"}`))
	_ = kv.Set(ctx, "transaction_2", []byte(`{not json`))
	_ = kv.Set(ctx, "transaction_3", []byte(`{"name":"new","type":"income","amount":2,"date":"2025-10-20"}`))
	_ = kv.Set(ctx, "transaction_4", []byte(`{"name":"undated","type":"income","amount":3,"date":"garbage"}`))
	_ = kv.Set(ctx, "guest_balance", []byte(`{"balance":5}`))

	s, _ := newStore(t, kv, nil)
	page, err := s.ListTransactions(ctx, core.TransactionQuery{})
	if err != nil {
		t.Fatalf("corrupt entry must not fail the list: %v", err)
	}
	var names []string
	for _, tx := range page.Transactions {
		names = append(names, tx.Name)
	}
	if !reflect.DeepEqual(names, []string{"new", "old", "undated"}) {
		t.Errorf("names = %v", names)
	}
	if page.Transactions[0].ID != "transaction_3" {
		t.Errorf("missing id should default to the key, got %q", page.Transactions[0].ID)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, nil, nil)
	created, _ := s.CreateTransaction(ctx, sample())

	edit := sample()
	edit.Name = "Market"
	edit.Amount = core.Money{Cents: 99}
	updated, err := s.UpdateTransaction(ctx, created.ID, edit)
	if err != nil {
		t.Fatal(err)
	}
	if updated.ID != created.ID || updated.Name != "Market" || !updated.CreatedAt.Equal(created.CreatedAt.Time) {
		t.Errorf("update = %+v", updated)
	}

	if _, err := s.UpdateTransaction(ctx, "transaction_missing", edit); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.UpdateTransaction(ctx, created.ID, core.Transaction{}); !core.IsValidationError(err) {
		t.Errorf("expected validation error, got %v", err)
	}

	if err := s.DeleteTransaction(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteTransaction(ctx, created.ID); err != nil {
		t.Errorf("delete must be idempotent: %v", err)
	}
	page, _ := s.ListTransactions(ctx, core.TransactionQuery{})
	if len(page.Transactions) != 0 {
		t.Errorf("expected empty list, got %d", len(page.Transactions))
	}
}

func TestWriteFailureIsSoft(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, failingKV{storage.NewMemoryStore(0).Space("guest-1")}, nil)

	if _, err := s.CreateTransaction(ctx, sample()); err != nil {
		t.Fatalf("write failure must not surface: %v", err)
	}
	page, _ := s.ListTransactions(ctx, core.TransactionQuery{})
	if len(page.Transactions) != 0 {
		t.Errorf("lost write should not be listed")
	}
	cats, err := s.ListCategories(ctx)
	if err != nil || len(cats) == 0 {
		t.Errorf("defaults should still be served when seeding cannot persist: %v %v", cats, err)
	}
}

func TestValidationNeverWrites(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore(0).Space("guest-1")
	s, _ := newStore(t, kv, nil)
	bad := sample()
	bad.Name = ""
	if _, err := s.CreateTransaction(ctx, bad); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if keys, _ := kv.Keys(ctx, ""); len(keys) != 0 {
		t.Errorf("invalid transaction was written: %v", keys)
	}
}

func TestWallet(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, nil, nil)
	w, err := s.GetWallet(ctx)
	if err != nil || w.Balance.Cents != 0 {
		t.Fatalf("fresh wallet = %+v, %v", w, err)
	}
	if _, err := s.UpdateWallet(ctx, w.ID, core.Money{Cents: 1000000}); err != nil {
		t.Fatal(err)
	}
	w, _ = s.GetWallet(ctx)
	if w.Balance.Cents != 1000000 {
		t.Errorf("balance = %d", w.Balance.Cents)
	}
}

func TestInsightsRequireSignIn(t *testing.T) {
	s, _ := newStore(t, nil, nil)
	if _, err := s.GenerateInsights(context.Background(), core.InsightRequest{}); !errors.Is(err, ledger.ErrSignInRequired) {
		t.Errorf("expected ErrSignInRequired, got %v", err)
	}
}

func TestSharedLocksPerGuest(t *testing.T) {
	var locks Locks
	if locks.For("a") != locks.For("a") {
		t.Error("same guest must share a mutex")
	}
	kv := storage.NewMemoryStore(0).Space("a")
	s1 := New("a", kv, nil, WithLocks(&locks))
	s2 := New("a", kv, nil, WithLocks(&locks))
	if s1.mu != s2.mu {
		t.Error("stores of one guest should share the lock")
	}
}
