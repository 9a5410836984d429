package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kalambet/jobtrail/internal/gateway"
	"github.com/kalambet/jobtrail/internal/session"
	"github.com/kalambet/jobtrail/internal/storage"
)

// requireSession reads the session cookies into the request context.
// Browsers without a session are sent to the sign-in page; API clients get
// a 401.
func requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := session.FromRequest(r)
		if !ok {
			authRequired(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
	})
}

// authRequired sends browsers to the sign-in page and answers API clients
// with a 401.
func authRequired(w http.ResponseWriter, r *http.Request) {
	if wantsHTML(r) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	httpError(w, http.StatusUnauthorized, "authentication_error", "authentication required")
}

func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type authResponse struct {
	User      gateway.User `json:"user"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.signin.Allow() {
		httpError(w, http.StatusTooManyRequests, "rate_limit_error", "too many sign-in attempts, try again shortly")
		return
	}
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "email and password are required")
		return
	}

	env, err := s.gw.Login(r.Context(), req.Email, req.Password)
	s.finishAuth(w, r, env, err, "Invalid email or password")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.signin.Allow() {
		httpError(w, http.StatusTooManyRequests, "rate_limit_error", "too many sign-up attempts, try again shortly")
		return
	}
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	reg := gateway.Registration{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	}
	if err := reg.Validate(req.ConfirmPassword); err != nil {
		writeErr(w, r, err)
		return
	}

	env, err := s.gw.Register(r.Context(), reg)
	s.finishAuth(w, r, env, err, "Registration failed")
}

// finishAuth turns a login or registration result into session cookies.
// The session is also stored so the CLI and the assistant tools share it.
func (s *Server) finishAuth(w http.ResponseWriter, r *http.Request, env gateway.Envelope[gateway.AuthData], err error, fallback string) {
	if err != nil {
		s.logger.Warn("authentication request failed", "error", err)
		httpError(w, http.StatusBadGateway, "api_error", "could not reach the backend")
		return
	}
	if !env.Success || env.Data.Token == "" {
		msg := env.Message
		if msg == "" {
			msg = fallback
		}
		httpError(w, http.StatusUnauthorized, "authentication_error", "%s", msg)
		return
	}

	sess := env.Data.Session(time.Now())
	if err := s.store.SaveSession(r.Context(), storage.DefaultSession, sess); err != nil {
		s.logger.Warn("storing session", "error", err)
	}
	for _, c := range sess.Cookies() {
		http.SetCookie(w, c)
	}
	writeJSON(w, http.StatusOK, authResponse{User: env.Data.User, ExpiresAt: sess.ExpiresAt})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	if ws := s.detachWorkspace(sess.Token); ws != nil {
		ws.Profile.Wait()
		if err := ws.Jobs.Flush(r.Context()); err != nil {
			s.logger.Warn("saving job snapshot on logout", "error", err)
		}
	}

	// Only the holder of the stored session may end it for the CLI and the
	// assistant tools.
	stored, err := s.store.LoadSession(r.Context(), storage.DefaultSession)
	switch {
	case err == nil && stored.Token == sess.Token:
		if err := s.store.DeleteSession(r.Context(), storage.DefaultSession); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("deleting stored session", "error", err)
		}
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		s.logger.Warn("reading stored session", "error", err)
	}

	for _, c := range session.ClearCookies() {
		http.SetCookie(w, c)
	}
	w.WriteHeader(http.StatusNoContent)
}
