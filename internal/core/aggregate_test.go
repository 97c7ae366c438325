package core

import (
	"reflect"
	"testing"
	"time"
)

func tx(id string, typ TransactionType, cents int64, date Date) Transaction {
	return Transaction{ID: id, Name: id, Category: "Food", Type: typ, Amount: Money{Cents: cents}, Date: date}
}

func scenario() []Transaction {
	return []Transaction{
		tx("a", Expense, 151200, NewDate(2025, 10, 20)),
		tx("b", Income, 50000, NewDate(2025, 10, 20)),
		tx("c", Expense, 30000, NewDate(2025, 10, 21)),
	}
}

func TestDailyTotalsAndRunningBalanceScenario(t *testing.T) {
	txs := scenario()
	baseline := Money{Cents: 1000000}

	groups := GroupByDate(txs)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Key != "Monday, 20 October 2025" {
		t.Errorf("unexpected group key %q", groups[0].Key)
	}
	if got := DailyTotal(groups[0].Transactions); got.Cents != -101200 {
		t.Errorf("day total = %d, want -101200", got.Cents)
	}
	if got := RunningBalance(txs[2], txs, baseline); got.Cents != 868800 {
		t.Errorf("balance after last = %d, want 868800", got.Cents)
	}
}

func TestGroupByDatePreservesOrderAndTotals(t *testing.T) {
	txs := []Transaction{
		tx("1", Expense, 100, NewDate(2025, 10, 21)),
		tx("2", Income, 900, NewDate(2025, 10, 20)),
		tx("3", Expense, 250, NewDate(2025, 10, 21)),
		tx("4", Income, 40, Date{}),
	}
	groups := GroupByDate(txs)

	var keys []string
	var ids []string
	var sum int64
	for _, g := range groups {
		keys = append(keys, g.Key)
		for _, tx := range g.Transactions {
			ids = append(ids, tx.ID)
		}
		sum += DailyTotal(g.Transactions).Cents
	}
	wantKeys := []string{"Tuesday, 21 October 2025", "Monday, 20 October 2025", "Thursday, 1 January 1970"}
	if !reflect.DeepEqual(keys, wantKeys) {
		t.Errorf("keys = %v, want %v", keys, wantKeys)
	}
	if !reflect.DeepEqual(ids, []string{"1", "3", "2", "4"}) {
		t.Errorf("ids = %v", ids)
	}

	var direct int64
	for _, tx := range txs {
		direct += tx.Signed().Cents
	}
	if sum != direct {
		t.Errorf("sum of daily totals %d != signed sum %d", sum, direct)
	}
}

func TestSignedIgnoresAmountSign(t *testing.T) {
	neg := Transaction{Type: Income, Amount: Money{Cents: -500}}
	if neg.Signed().Cents != 500 {
		t.Errorf("income with negative amount should add 500, got %d", neg.Signed().Cents)
	}
	neg.Type = Expense
	if neg.Signed().Cents != -500 {
		t.Errorf("expense should subtract 500, got %d", neg.Signed().Cents)
	}
}

func TestRunningBalanceTieBreak(t *testing.T) {
	day := NewDate(2025, 10, 20)
	first := tx("first", Expense, 1000, day)
	first.CreatedAt = Date{time.Date(2025, 10, 20, 8, 0, 0, 0, time.UTC)}
	second := tx("second", Expense, 2000, day)
	second.CreatedAt = Date{time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC)}
	all := []Transaction{second, first}
	baseline := Money{Cents: 10000}

	if got := RunningBalance(first, all, baseline); got.Cents != 9000 {
		t.Errorf("first = %d, want 9000", got.Cents)
	}
	if got := RunningBalance(second, all, baseline); got.Cents != 7000 {
		t.Errorf("second = %d, want 7000", got.Cents)
	}

	// Without creation times same-day transactions include each other.
	first.CreatedAt, second.CreatedAt = Date{}, Date{}
	all = []Transaction{second, first}
	if got := RunningBalance(first, all, baseline); got.Cents != 7000 {
		t.Errorf("untimed first = %d, want 7000", got.Cents)
	}
}

func TestRunningBalanceOfLastEqualsTotal(t *testing.T) {
	txs := scenario()
	txs = append(txs, tx("d", Income, 12345, NewDate(2025, 9, 1)))
	baseline := Money{Cents: 500}

	var sum int64
	for _, tx := range txs {
		sum += tx.Signed().Cents
	}
	last := txs[2]
	if got := RunningBalance(last, txs, baseline); got.Cents != baseline.Cents+sum {
		t.Errorf("balance = %d, want %d", got.Cents, baseline.Cents+sum)
	}
}

func TestFilterTransactions(t *testing.T) {
	txs := scenario()
	late := tx("late", Expense, 1, Date{time.Date(2025, 10, 21, 23, 30, 0, 0, time.UTC)})
	txs = append(txs, late)

	cases := []struct {
		name string
		f    TransactionFilter
		want []string
	}{
		{"all", TransactionFilter{}, []string{"a", "b", "c", "late"}},
		{"expense", TransactionFilter{Type: Expense}, []string{"a", "c", "late"}},
		{"income", TransactionFilter{Type: Income}, []string{"b"}},
		{"from 21st", TransactionFilter{Start: NewDate(2025, 10, 21)}, []string{"c", "late"}},
		{"through 20th", TransactionFilter{End: NewDate(2025, 10, 20)}, []string{"a", "b"}},
		{"end day inclusive", TransactionFilter{End: NewDate(2025, 10, 21)}, []string{"a", "b", "c", "late"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got []string
			for _, tx := range FilterTransactions(txs, tc.f) {
				got = append(got, tx.ID)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSortTransactions(t *testing.T) {
	a := tx("a", Expense, 1, NewDate(2025, 10, 20))
	a.CreatedAt = Date{time.Date(2025, 10, 20, 8, 0, 0, 0, time.UTC)}
	b := tx("b", Expense, 1, NewDate(2025, 10, 20))
	b.CreatedAt = Date{time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC)}
	c := tx("c", Expense, 1, NewDate(2025, 10, 22))
	d := tx("d", Expense, 1, Date{})

	list := []Transaction{d, a, c, b}
	SortTransactions(list, false)
	if got := ids(list); !reflect.DeepEqual(got, []string{"c", "b", "a", "d"}) {
		t.Errorf("desc = %v", got)
	}
	SortTransactions(list, true)
	if got := ids(list); !reflect.DeepEqual(got, []string{"d", "a", "b", "c"}) {
		t.Errorf("asc = %v", got)
	}
}

func ids(txs []Transaction) []string {
	out := make([]string, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.ID)
	}
	return out
}

func TestPaginateReconstructsList(t *testing.T) {
	var txs []Transaction
	for i := 0; i < 23; i++ {
		txs = append(txs, tx(string(rune('a'+i)), Expense, int64(i+1), NewDate(2025, 10, 1+i)))
	}

	for _, limit := range []int{1, 5, 7, 10, 23, 50} {
		_, first := Paginate(txs, 1, limit)
		var rebuilt []Transaction
		for page := 1; page <= first.TotalPages; page++ {
			items, p := Paginate(txs, page, limit)
			if p.HasNext != (page < p.TotalPages) {
				t.Errorf("limit %d page %d: has_next = %v", limit, page, p.HasNext)
			}
			if p.HasPrev != (page > 1) {
				t.Errorf("limit %d page %d: has_prev = %v", limit, page, p.HasPrev)
			}
			rebuilt = append(rebuilt, items...)
		}
		if !reflect.DeepEqual(ids(rebuilt), ids(txs)) {
			t.Errorf("limit %d: pages do not rebuild the list", limit)
		}
		if want := (23 + limit - 1) / limit; first.TotalPages != want {
			t.Errorf("limit %d: total_pages = %d, want %d", limit, first.TotalPages, want)
		}
	}

	items, p := Paginate(txs, 9, 10)
	if len(items) != 0 || p.HasNext || !p.HasPrev {
		t.Errorf("past-the-end page: %d items, %+v", len(items), p)
	}

	items, p = Paginate(nil, 1, 10)
	if len(items) != 0 || p.TotalPages != 0 || p.HasNext || p.HasPrev {
		t.Errorf("empty list: %+v", p)
	}
}

func TestPageWindow(t *testing.T) {
	cases := []struct {
		current, total int
		want           []int
	}{
		{1, 0, []int{}},
		{1, 1, []int{1}},
		{1, 3, []int{1, 2, 3}},
		{1, 10, []int{1, 2, 3, 4, 5}},
		{2, 10, []int{1, 2, 3, 4, 5}},
		{5, 10, []int{3, 4, 5, 6, 7}},
		{9, 10, []int{6, 7, 8, 9, 10}},
		{10, 10, []int{6, 7, 8, 9, 10}},
		{12, 10, []int{6, 7, 8, 9, 10}},
	}
	for _, tc := range cases {
		if got := PageWindow(tc.current, tc.total); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("PageWindow(%d, %d) = %v, want %v", tc.current, tc.total, got, tc.want)
		}
	}
}

func TestBuildViewLocal(t *testing.T) {
	txs := scenario()
	q := TransactionQuery{Page: 1, Limit: 2}
	view := BuildView(txs, nil, q, Money{Cents: 1000000})

	if view.Pagination.Total != 3 || view.Pagination.TotalPages != 2 || !view.Pagination.HasNext {
		t.Fatalf("pagination = %+v", view.Pagination)
	}
	if got := ids(view.Transactions); !reflect.DeepEqual(got, []string{"c", "a"}) {
		t.Fatalf("page 1 = %v", got)
	}
	if len(view.Days) != 2 {
		t.Fatalf("days = %d", len(view.Days))
	}
	top := view.Days[0].Rows[0]
	if top.ID != "c" || top.RunningBalance.Cents != 868800 || top.SignedAmount.Cents != -30000 {
		t.Errorf("top row = %+v", top)
	}
	if !reflect.DeepEqual(view.PageWindow, []int{1, 2}) {
		t.Errorf("window = %v", view.PageWindow)
	}

	view = BuildView(txs, nil, TransactionQuery{Type: Income}, Money{Cents: 1000000})
	if got := ids(view.Transactions); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("income filter = %v", got)
	}
	if view.Pagination.Total != 1 {
		t.Errorf("filtered total = %d", view.Pagination.Total)
	}
}

func TestBuildViewServerPagination(t *testing.T) {
	server := &Pagination{Page: 3, Limit: 3, Total: 40, TotalPages: 14, HasNext: true, HasPrev: true}
	view := BuildView(scenario(), server, TransactionQuery{Page: 3, Limit: 3}, Money{})

	if view.Pagination != *server {
		t.Errorf("server pagination not kept: %+v", view.Pagination)
	}
	if len(view.Transactions) != 3 {
		t.Errorf("server page should not be re-sliced, got %d", len(view.Transactions))
	}
	if !reflect.DeepEqual(view.PageWindow, []int{1, 2, 3, 4, 5}) {
		t.Errorf("window = %v", view.PageWindow)
	}
}
