package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"coinwise/internal/core"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q, err := ParseTransactionQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.deps.Transactions.List(r.Context(), backendFrom(r.Context()), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.decodeTransaction(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.deps.Transactions.Create(r.Context(), backendFrom(r.Context()), tx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	tx, err := s.decodeTransaction(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.deps.Transactions.Update(r.Context(), backendFrom(r.Context()), id, tx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if err := s.deps.Transactions.Delete(r.Context(), backendFrom(r.Context()), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) decodeTransaction(w http.ResponseWriter, r *http.Request) (core.Transaction, error) {
	var req transactionRequest
	if err := DecodeJSON(w, r, &req, false); err != nil {
		return core.Transaction{}, err
	}
	now := time.Now().UTC()
	return req.toTransaction(core.NewDate(now.Year(), now.Month(), now.Day()))
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	wallet, err := s.deps.Transactions.Wallet(r.Context(), backendFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleUpdateBalance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Balance *core.Money `json:"balance"`
	}
	if err := DecodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Balance == nil {
		s.writeError(w, r, invalid("balance is required"))
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	wallet, err := s.deps.Transactions.UpdateWallet(r.Context(), backendFrom(r.Context()), id, *req.Balance)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}
