package http

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"coinwise/internal/backend"
	"coinwise/internal/core"
	"coinwise/internal/ledger"
	"coinwise/internal/ledger/remote"
	"coinwise/internal/log"
)

const (
	// AuthCookie holds the backend bearer token.
	AuthCookie = "token"
	// GuestCookie holds the guest id.
	GuestCookie = "coinwise_guest"

	authCookieTTL  = 24 * time.Hour
	guestCookieTTL = 365 * 24 * time.Hour

	loginPath = "/login"
)

var errSessionExpired = errors.New("session expired, please sign in again")

type sessionKey struct{}

type requestSession struct {
	session backend.Session
	backend ledger.Backend
}

// sessionMiddleware resolves the request's data source once. A valid auth
// cookie selects the remote backend; anything else is served as a guest.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	logger := s.deps.Logger.WithComponent(log.ComponentSession)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		sess, err := s.resolveSession(w, r)
		if err != nil {
			if errors.Is(err, errSessionExpired) || remote.IsUnauthorized(err) {
				logger.InfoContext(ctx, "Forcing logout", log.FieldError, err)
				s.forceLogout(w, r)
				return
			}
			s.writeError(w, r, err)
			return
		}

		b, err := s.deps.Factory.ForSession(sess)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		reqLogger := log.FromContext(ctx).With(log.FieldMode, string(b.Mode()))
		ctx = log.WithLogger(ctx, reqLogger)
		ctx = context.WithValue(ctx, sessionKey{}, &requestSession{session: sess, backend: b})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) resolveSession(w http.ResponseWriter, r *http.Request) (backend.Session, error) {
	if c, err := r.Cookie(AuthCookie); err == nil && c.Value != "" {
		token := c.Value
		if tokenExpired(token, time.Now()) {
			return backend.Session{}, errSessionExpired
		}
		user, err := s.resolveUser(r.Context(), token)
		if err != nil {
			return backend.Session{}, err
		}
		return backend.Session{Type: backend.RemoteBackend, Token: token, User: user}, nil
	}

	return backend.Session{Type: backend.GuestBackend, GuestID: s.guestID(w, r)}, nil
}

// resolveUser asks the backend who owns token, caching the answer briefly.
func (s *Server) resolveUser(ctx context.Context, token string) (core.User, error) {
	key := tokenKey(token)
	if s.deps.Sessions != nil {
		if user, ok := s.deps.Sessions.Get(key); ok {
			return user, nil
		}
	}
	user, err := s.deps.Auth.Me(ctx, token)
	if err != nil {
		return core.User{}, err
	}
	if s.deps.Sessions != nil {
		s.deps.Sessions.Set(key, user)
	}
	return user, nil
}

// guestID returns the id in the guest cookie, issuing a new one when the
// cookie is missing or not a uuid.
func (s *Server) guestID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(GuestCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     GuestCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(guestCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.deps.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// tokenExpired reads the exp claim without verifying the signature; the
// backend remains the authority on validity. Tokens that are not JWTs or
// carry no exp are left for the backend to judge.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *Server) setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(authCookieTTL),
		MaxAge:   int(authCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.deps.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearAuthCookie(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(AuthCookie); err == nil && s.deps.Sessions != nil {
		s.deps.Sessions.Delete(tokenKey(c.Value))
	}
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.deps.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// forceLogout drops the auth cookie. Page navigations are redirected to the
// login page; API callers get a 401 naming where to go.
func (s *Server) forceLogout(w http.ResponseWriter, r *http.Request) {
	s.clearAuthCookie(w, r)
	if r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html") {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"error":    errSessionExpired.Error(),
		"redirect": loginPath,
	})
}

func sessionFrom(ctx context.Context) *requestSession {
	if rs, ok := ctx.Value(sessionKey{}).(*requestSession); ok {
		return rs
	}
	return nil
}

// backendFrom returns the backend selected by sessionMiddleware.
func backendFrom(ctx context.Context) ledger.Backend {
	if rs := sessionFrom(ctx); rs != nil {
		return rs.backend
	}
	return nil
}
