package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"coinwise/internal/core"
	"coinwise/internal/ledger"
)

// Session is the backend seen by one signed-in user.
type Session struct {
	client *Client
	token  string
	user   core.User
}

// Session binds the client to a token and the user it resolved to.
func (c *Client) Session(token string, user core.User) *Session {
	return &Session{client: c, token: token, user: user}
}

var _ ledger.Backend = (*Session)(nil)

func (s *Session) Mode() ledger.Mode { return ledger.ModeRemote }

func (s *Session) Identity() string { return s.user.ID }

func (s *Session) User() core.User { return s.user }

func (s *Session) ListTransactions(ctx context.Context, q core.TransactionQuery) (ledger.TransactionPage, error) {
	q = q.Normalize()
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("sort", q.SortParam())
	if q.Type != "" {
		params.Set("type", string(q.Type))
	}
	if !q.StartDate.IsZero() {
		params.Set("start_date", q.StartDate.Format(core.DateLayout))
	}
	if !q.EndDate.IsZero() {
		params.Set("end_date", q.EndDate.Format(core.DateLayout))
	}

	var list transactionList
	if err := s.client.do(ctx, http.MethodGet, "/transactions", s.token, true, params, nil, &list); err != nil {
		return ledger.TransactionPage{}, err
	}
	page := ledger.TransactionPage{
		Transactions: make([]core.Transaction, 0, len(list.Transactions)),
		Pagination:   list.Pagination,
	}
	for _, w := range list.Transactions {
		page.Transactions = append(page.Transactions, w.toCore())
	}
	return page, nil
}

func (s *Session) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	tx.ID = ""
	tx.UserID = s.user.ID
	var out wireTransaction
	if err := s.client.do(ctx, http.MethodPost, "/transactions", s.token, true, nil, tx, &out); err != nil {
		return core.Transaction{}, err
	}
	if out.ID == "" {
		return tx, nil
	}
	return out.toCore(), nil
}

func (s *Session) UpdateTransaction(ctx context.Context, id string, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	tx.ID = id
	tx.UserID = s.user.ID
	var out wireTransaction
	if err := s.client.do(ctx, http.MethodPut, "/transactions/"+url.PathEscape(id), s.token, true, nil, tx, &out); err != nil {
		return core.Transaction{}, err
	}
	if out.ID == "" {
		return tx, nil
	}
	return out.toCore(), nil
}

// DeleteTransaction treats a 404 as already deleted.
func (s *Session) DeleteTransaction(ctx context.Context, id string) error {
	err := s.client.do(ctx, http.MethodDelete, "/transactions/"+url.PathEscape(id), s.token, true, nil, nil, nil)
	if StatusOf(err) == http.StatusNotFound {
		return nil
	}
	return err
}

func (s *Session) ListCategories(ctx context.Context) ([]core.Category, error) {
	var wire []wireCategory
	if err := s.client.do(ctx, http.MethodGet, "/categories/", s.token, true, nil, nil, &wire); err != nil {
		return nil, err
	}
	cats := make([]core.Category, 0, len(wire))
	for _, w := range wire {
		cats = append(cats, w.toCore())
	}
	return cats, nil
}

func (s *Session) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	var out wireCategory
	if err := s.client.do(ctx, http.MethodPost, "/categories/", s.token, true, nil, c, &out); err != nil {
		return core.Category{}, err
	}
	if out.ID == "" {
		return c, nil
	}
	return out.toCore(), nil
}

func (s *Session) ListCategoryGroups(ctx context.Context) ([]core.CategoryGroup, error) {
	var wire []wireGroup
	if err := s.client.do(ctx, http.MethodGet, "/category-groups/", s.token, true, nil, nil, &wire); err != nil {
		return nil, err
	}
	groups := make([]core.CategoryGroup, 0, len(wire))
	for _, w := range wire {
		groups = append(groups, core.CategoryGroup{ID: string(w.ID), Name: w.Name, Type: w.Type})
	}
	return groups, nil
}

func (s *Session) GetWallet(ctx context.Context) (core.Wallet, error) {
	var w wireWallet
	if err := s.client.do(ctx, http.MethodGet, "/account/my-balance", s.token, true, nil, nil, &w); err != nil {
		return core.Wallet{}, err
	}
	return w.toCore(), nil
}

func (s *Session) UpdateWallet(ctx context.Context, id string, balance core.Money) (core.Wallet, error) {
	body := struct {
		Balance core.Money `json:"balance"`
	}{balance}
	var w wireWallet
	if err := s.client.do(ctx, http.MethodPut, "/account/my-balance/"+url.PathEscape(id), s.token, true, nil, body, &w); err != nil {
		return core.Wallet{}, err
	}
	if w.ID == "" {
		return core.Wallet{ID: id, UserID: s.user.ID, Balance: balance}, nil
	}
	return w.toCore(), nil
}

func (s *Session) GenerateInsights(ctx context.Context, req core.InsightRequest) (core.InsightsResponse, error) {
	var resp core.InsightsResponse
	if err := s.client.do(ctx, http.MethodPost, "/ai-insights", s.token, true, nil, req, &resp); err != nil {
		return core.InsightsResponse{}, err
	}
	return resp, nil
}

func (s *Session) Chat(ctx context.Context, prompt string) (ledger.ChatReply, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ledger.ChatReply{}, ledger.ErrEmptyPrompt
	}
	var resp chatResponse
	if err := s.client.do(ctx, http.MethodPost, "/ai/coinwise-ai", s.token, true, nil, chatRequest{Prompt: prompt}, &resp); err != nil {
		return ledger.ChatReply{}, err
	}
	return ledger.ChatReply{Reply: resp.Reply}, nil
}

// ChatHistory is empty: the backend keeps no transcript for signed-in users.
func (s *Session) ChatHistory(context.Context) ([]ledger.ChatMessage, error) {
	return []ledger.ChatMessage{}, nil
}
