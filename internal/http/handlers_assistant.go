package http

import (
	"errors"
	"net/http"
	"strings"

	"coinwise/internal/core"
	"coinwise/internal/ledger"
)

func (s *Server) handleGenerateInsights(w http.ResponseWriter, r *http.Request) {
	var req core.InsightRequest
	if err := DecodeJSON(w, r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.StartDate = strings.TrimSpace(req.StartDate)
	req.EndDate = strings.TrimSpace(req.EndDate)
	req.Category = strings.TrimSpace(req.Category)
	if err := validateInsightRange(req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.Insights.Generate(r.Context(), backendFrom(r.Context()), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func validateInsightRange(req core.InsightRequest) error {
	var start, end core.Date
	var err error
	if req.StartDate != "" {
		if start, err = core.ParseDate(req.StartDate); err != nil {
			return invalid("start_date must be a date (YYYY-MM-DD)")
		}
	}
	if req.EndDate != "" {
		if end, err = core.ParseDate(req.EndDate); err != nil {
			return invalid("end_date must be a date (YYYY-MM-DD)")
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start.Time) {
		return invalid("end_date must not be before start_date")
	}
	return nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := DecodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		s.writeError(w, r, invalid("prompt is required"))
		return
	}

	reply, err := backendFrom(r.Context()).Chat(r.Context(), req.Prompt)
	if errors.Is(err, ledger.ErrGuestLimitReached) {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error": err.Error(),
			"usage": reply.Usage,
		})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	msgs, err := backendFrom(r.Context()).ChatHistory(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}
