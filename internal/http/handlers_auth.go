package http

import (
	"context"
	"net/http"
	"strings"

	"coinwise/internal/core"
	"coinwise/internal/ledger"
	"coinwise/internal/log"
)

// usageReporter is implemented by backends that meter chat use.
type usageReporter interface {
	Usage(ctx context.Context) ledger.Usage
}

type meResponse struct {
	Authenticated bool          `json:"authenticated"`
	Mode          ledger.Mode   `json:"mode"`
	User          *core.User    `json:"user,omitempty"`
	ChatUsage     *ledger.Usage `json:"chat_usage,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds ledger.Credentials
	if err := DecodeJSON(w, r, &creds, false); err != nil {
		s.reject(w, r, err)
		return
	}
	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		s.reject(w, r, invalid("email and password are required"))
		return
	}

	token, err := s.deps.Auth.Login(r.Context(), creds)
	if err != nil {
		s.reject(w, r, err)
		return
	}
	s.setAuthCookie(w, token)

	resp := meResponse{Authenticated: true, Mode: ledger.ModeRemote}
	if user, err := s.resolveUser(r.Context(), token); err == nil {
		resp.User = &user
	} else {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Signed in but could not resolve user",
			log.FieldError, err)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var creds ledger.Credentials
	if err := DecodeJSON(w, r, &creds, false); err != nil {
		s.reject(w, r, err)
		return
	}
	creds.Email = strings.TrimSpace(creds.Email)
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Email == "" || creds.Password == "" {
		s.reject(w, r, invalid("email and password are required"))
		return
	}

	if err := s.deps.Auth.Signup(r.Context(), creds); err != nil {
		s.reject(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "account created, please sign in"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearAuthCookie(w, r)
	writeJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	rs := sessionFrom(r.Context())
	resp := meResponse{
		Authenticated: rs.session.Authenticated(),
		Mode:          rs.backend.Mode(),
	}
	if resp.Authenticated {
		user := rs.session.User
		resp.User = &user
	}
	if u, ok := rs.backend.(usageReporter); ok {
		usage := u.Usage(r.Context())
		resp.ChatUsage = &usage
	}
	writeJSON(w, http.StatusOK, resp)
}
