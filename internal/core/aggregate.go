package core

import (
	"sort"
	"time"
)

const (
	// GroupKeyLayout renders the calendar-day heading of a transaction group.
	GroupKeyLayout = "Monday, 2 January 2006"

	DefaultPageLimit = 10
	MaxPageLimit     = 100
	pageWindowSize   = 5
)

// Pagination is the metadata of one page, either returned by the backend or
// computed by Paginate.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// TransactionFilter narrows a list before it is paginated. Zero fields match
// everything. End is inclusive; a date-only End covers the whole day.
type TransactionFilter struct {
	Type  TransactionType
	Start Date
	End   Date
}

// TransactionQuery is a listing request as received from the client.
type TransactionQuery struct {
	Page      int
	Limit     int
	Type      TransactionType
	Ascending bool
	StartDate Date
	EndDate   Date
}

// Normalize applies the default page and limit and caps the limit.
func (q TransactionQuery) Normalize() TransactionQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	return q
}

func (q TransactionQuery) Filter() TransactionFilter {
	return TransactionFilter{Type: q.Type, Start: q.StartDate, End: q.EndDate}
}

// SortParam is the value the backend expects in its sort query parameter.
func (q TransactionQuery) SortParam() string {
	if q.Ascending {
		return "date_asc"
	}
	return "date_desc"
}

// DateGroup is one calendar day of transactions.
type DateGroup struct {
	Key          string        `json:"date"`
	Transactions []Transaction `json:"-"`
}

// GroupByDate buckets transactions by calendar day. Groups appear in the order
// their first transaction appears, and each group keeps input order, so
// callers sort first.
func GroupByDate(txs []Transaction) []DateGroup {
	var groups []DateGroup
	index := make(map[string]int)
	for _, tx := range txs {
		key := GroupKey(tx.Date)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DateGroup{Key: key})
		}
		groups[i].Transactions = append(groups[i].Transactions, tx)
	}
	return groups
}

// GroupKey formats the day heading. Missing dates land on the epoch.
func GroupKey(d Date) string {
	t := d.Time
	if d.IsZero() {
		t = time.Unix(0, 0).UTC()
	}
	return t.Format(GroupKeyLayout)
}

// DailyTotal sums the signed amounts of one day.
func DailyTotal(txs []Transaction) Money {
	var total Money
	for _, tx := range txs {
		total = total.Add(tx.Signed())
	}
	return total
}

// RunningBalance is the balance right after target: baseline plus the signed
// effect of every transaction dated at or before it. Same-instant ties are
// broken by creation time; when that is missing or equal too, the other
// transaction counts as included.
func RunningBalance(target Transaction, all []Transaction, baseline Money) Money {
	balance := baseline
	for _, tx := range all {
		if occursByTarget(tx, target) {
			balance = balance.Add(tx.Signed())
		}
	}
	return balance
}

func occursByTarget(tx, target Transaction) bool {
	a, b := tx.Date.SortKey(), target.Date.SortKey()
	if a != b {
		return a < b
	}
	if tx.CreatedAt.IsZero() || target.CreatedAt.IsZero() {
		return true
	}
	return tx.CreatedAt.SortKey() <= target.CreatedAt.SortKey()
}

// FilterTransactions returns the transactions matching f, in input order.
func FilterTransactions(txs []Transaction, f TransactionFilter) []Transaction {
	out := make([]Transaction, 0, len(txs))
	var endBefore int64
	if !f.End.IsZero() {
		end := f.End.Time
		if f.End.DateOnly() {
			end = end.AddDate(0, 0, 1)
		} else {
			end = end.Add(time.Nanosecond)
		}
		endBefore = end.UnixNano()
	}
	for _, tx := range txs {
		if f.Type != "" && tx.Type != f.Type {
			continue
		}
		key := tx.Date.SortKey()
		if !f.Start.IsZero() && key < f.Start.SortKey() {
			continue
		}
		if !f.End.IsZero() && key >= endBefore {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// SortTransactions orders txs in place by date, newest first unless ascending.
// Creation time breaks ties.
func SortTransactions(txs []Transaction, ascending bool) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if a.Date.SortKey() != b.Date.SortKey() {
			if ascending {
				return a.Date.SortKey() < b.Date.SortKey()
			}
			return a.Date.SortKey() > b.Date.SortKey()
		}
		if ascending {
			return a.CreatedAt.SortKey() < b.CreatedAt.SortKey()
		}
		return a.CreatedAt.SortKey() > b.CreatedAt.SortKey()
	})
}

// Paginate slices an already filtered list. A page past the end is empty.
func Paginate(txs []Transaction, page, limit int) ([]Transaction, Pagination) {
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if page < 1 {
		page = 1
	}
	total := len(txs)
	totalPages := (total + limit - 1) / limit
	p := Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
	start := (page - 1) * limit
	if start >= total {
		return []Transaction{}, p
	}
	end := start + limit
	if end > total {
		end = total
	}
	return txs[start:end], p
}

// PageWindow lists at most five page numbers centred on current and clamped
// to [1, totalPages].
func PageWindow(current, totalPages int) []int {
	if totalPages < 1 {
		return []int{}
	}
	if current < 1 {
		current = 1
	}
	if current > totalPages {
		current = totalPages
	}
	start := current - pageWindowSize/2
	if start < 1 {
		start = 1
	}
	end := start + pageWindowSize - 1
	if end > totalPages {
		end = totalPages
		start = end - pageWindowSize + 1
		if start < 1 {
			start = 1
		}
	}
	pages := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	return pages
}

// TransactionRow is one rendered transaction.
type TransactionRow struct {
	Transaction
	SignedAmount   Money `json:"signed_amount"`
	RunningBalance Money `json:"running_balance"`
}

// DayView is one calendar-day heading with its rows.
type DayView struct {
	Date       string           `json:"date"`
	DailyTotal Money            `json:"daily_total"`
	Rows       []TransactionRow `json:"transactions"`
}

// TransactionView is everything the list screen draws.
type TransactionView struct {
	Transactions []Transaction `json:"transactions"`
	Days         []DayView     `json:"days"`
	Pagination   Pagination    `json:"pagination"`
	PageWindow   []int         `json:"page_window"`
	Balance      Money         `json:"balance"`
}

// BuildView derives the list view. When server is nil, txs is the complete
// record set and is filtered, sorted and paginated here. Otherwise txs is the
// page the backend already selected and server is its metadata.
func BuildView(txs []Transaction, server *Pagination, q TransactionQuery, baseline Money) TransactionView {
	q = q.Normalize()

	var pageItems []Transaction
	var p Pagination
	if server == nil {
		filtered := FilterTransactions(txs, q.Filter())
		SortTransactions(filtered, q.Ascending)
		pageItems, p = Paginate(filtered, q.Page, q.Limit)
	} else {
		pageItems = make([]Transaction, len(txs))
		copy(pageItems, txs)
		SortTransactions(pageItems, q.Ascending)
		p = *server
	}

	view := TransactionView{
		Transactions: pageItems,
		Days:         []DayView{},
		Pagination:   p,
		PageWindow:   PageWindow(p.Page, p.TotalPages),
		Balance:      baseline,
	}
	for _, g := range GroupByDate(pageItems) {
		day := DayView{Date: g.Key, DailyTotal: DailyTotal(g.Transactions)}
		for _, tx := range g.Transactions {
			day.Rows = append(day.Rows, TransactionRow{
				Transaction:    tx,
				SignedAmount:   tx.Signed(),
				RunningBalance: RunningBalance(tx, txs, baseline),
			})
		}
		view.Days = append(view.Days, day)
	}
	return view
}
