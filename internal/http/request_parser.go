package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"coinwise/internal/core"
)

const maxBodyBytes = 1 << 20

// ParseTransactionQuery reads page, limit, type, sort, start_date and
// end_date. Absent values keep their defaults; malformed ones are rejected.
func ParseTransactionQuery(query url.Values) (core.TransactionQuery, error) {
	var q core.TransactionQuery

	var err error
	if q.Page, err = parseOptionalInt(query, "page"); err != nil {
		return q, err
	}
	if q.Limit, err = parseOptionalInt(query, "limit"); err != nil {
		return q, err
	}

	switch t := strings.ToLower(strings.TrimSpace(query.Get("type"))); t {
	case "", "all":
	case string(core.Income), string(core.Expense):
		q.Type = core.TransactionType(t)
	default:
		return q, invalid("type must be income or expense")
	}

	switch sort := strings.ToLower(strings.TrimSpace(query.Get("sort"))); sort {
	case "", "date_desc", "desc", "newest":
	case "date_asc", "asc", "oldest":
		q.Ascending = true
	default:
		return q, invalid("sort must be date_asc or date_desc")
	}

	if q.StartDate, err = parseOptionalDate(query, "start_date"); err != nil {
		return q, err
	}
	if q.EndDate, err = parseOptionalDate(query, "end_date"); err != nil {
		return q, err
	}
	if !q.StartDate.IsZero() && !q.EndDate.IsZero() && q.EndDate.Before(q.StartDate.Time) {
		return q, invalid("end_date must not be before start_date")
	}

	return q.Normalize(), nil
}

func parseOptionalInt(query url.Values, name string) (int, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, invalid(name + " must be a positive number")
	}
	return n, nil
}

func parseOptionalDate(query url.Values, name string) (core.Date, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, invalid(name + " must be a date (YYYY-MM-DD)")
	}
	return d, nil
}

// DecodeJSON reads a size-limited JSON body into v. An empty body leaves v
// untouched when allowEmpty is set.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			if allowEmpty {
				return nil
			}
			return badRequest("request body is required")
		case errors.As(err, &maxErr):
			return &requestError{status: http.StatusRequestEntityTooLarge, msg: "request body too large"}
		case errors.Is(err, core.ErrInvalidAmount):
			return invalid("amount must be a number")
		default:
			return badRequest("malformed JSON body")
		}
	}
	return nil
}

// transactionRequest is the body of a create or update.
type transactionRequest struct {
	Name       string               `json:"name"`
	Category   string               `json:"category"`
	CategoryID string               `json:"category_id"`
	Amount     core.Money           `json:"amount"`
	Type       core.TransactionType `json:"type"`
	Date       string               `json:"date"`
}

// toTransaction trims the free-text fields and validates the result. The
// date is optional in the body and defaults to today.
func (req transactionRequest) toTransaction(today core.Date) (core.Transaction, error) {
	tx := core.Transaction{
		Name:       strings.TrimSpace(req.Name),
		Category:   strings.TrimSpace(req.Category),
		CategoryID: strings.TrimSpace(req.CategoryID),
		Amount:     req.Amount.Abs(),
		Type:       core.TransactionType(strings.ToLower(strings.TrimSpace(string(req.Type)))),
		Date:       today,
	}
	if strings.TrimSpace(req.Date) != "" {
		d, err := core.ParseDate(req.Date)
		if err != nil {
			return core.Transaction{}, err
		}
		tx.Date = d
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}
