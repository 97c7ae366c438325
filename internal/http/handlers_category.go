package http

import (
	"net/http"
	"strings"

	"coinwise/internal/core"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.deps.Categories.Categories(r.Context(), backendFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var c core.Category
	if err := DecodeJSON(w, r, &c, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	c.ID = ""
	c.Type = core.TransactionType(strings.ToLower(strings.TrimSpace(string(c.Type))))

	created, err := s.deps.Categories.Create(r.Context(), backendFrom(r.Context()), c)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListCategoryGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.deps.Categories.Groups(r.Context(), backendFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}
