// Package session carries the authenticated user's credentials explicitly
// through a context instead of reading cookies ad hoc.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

const (
	// TokenCookie holds the bearer token.
	TokenCookie = "user-token"
	// RoleCookie holds the user's role string.
	RoleCookie = "user-role"
	// Lifetime is how long a session stays valid after login.
	Lifetime = 7 * 24 * time.Hour
)

// ErrAuthRequired is returned when an operation needs a session and none
// (or an expired one) is available.
var ErrAuthRequired = errors.New("authentication required")

// Session is a logged-in user's credentials.
type Session struct {
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// New creates a session issued at now.
func New(token, role string, now time.Time) Session {
	return Session{
		Token:     token,
		Role:      role,
		IssuedAt:  now,
		ExpiresAt: now.Add(Lifetime),
	}
}

// Valid reports whether s has a token and has not expired at now.
func (s Session) Valid(now time.Time) bool {
	if strings.TrimSpace(s.Token) == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// Cookies returns the cookies that persist s in a browser.
func (s Session) Cookies() []*http.Cookie {
	maxAge := int(time.Until(s.ExpiresAt).Seconds())
	if s.ExpiresAt.IsZero() || maxAge > int(Lifetime.Seconds()) {
		maxAge = int(Lifetime.Seconds())
	}
	mk := func(name, value string) *http.Cookie {
		return &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     "/",
			MaxAge:   maxAge,
			Expires:  s.ExpiresAt,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		}
	}
	return []*http.Cookie{mk(TokenCookie, s.Token), mk(RoleCookie, s.Role)}
}

// ClearCookies returns cookies that delete a browser session.
func ClearCookies() []*http.Cookie {
	return []*http.Cookie{
		{Name: TokenCookie, Value: "", Path: "/", MaxAge: -1},
		{Name: RoleCookie, Value: "", Path: "/", MaxAge: -1},
	}
}

// FromRequest reads the session cookies from r. Browsers do not send expiry
// back, so ExpiresAt is left zero and the cookie's own max-age governs.
func FromRequest(r *http.Request) (Session, bool) {
	tok, err := r.Cookie(TokenCookie)
	if err != nil || tok.Value == "" {
		return Session{}, false
	}
	s := Session{Token: tok.Value}
	if role, err := r.Cookie(RoleCookie); err == nil {
		s.Role = role.Value
	}
	return s, true
}

type ctxKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session carried by ctx.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}

// Require returns the session carried by ctx, or ErrAuthRequired when there
// is none or it has expired.
func Require(ctx context.Context) (Session, error) {
	s, ok := FromContext(ctx)
	if !ok || !s.Valid(time.Now()) {
		return Session{}, ErrAuthRequired
	}
	return s, nil
}
