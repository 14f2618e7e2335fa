package server

import (
	"net/http"
	"strings"
	"time"
)

// CookieManager owns the session cookie contract. The __Host- prefix binds
// the cookie to this origin, which requires Secure; deployments without TLS
// (local development) fall back to a plain name.
type CookieManager struct {
	secure bool
}

func NewCookieManager(secure bool) *CookieManager {
	return &CookieManager{secure: secure}
}

func (c *CookieManager) Name() string {
	if c.secure {
		return "__Host-session"
	}
	return "session"
}

// Set installs the session cookie. No Max-Age: the inactivity window lives
// server-side and the browser must not expire the credential on its own.
func (c *CookieManager) Set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name(),
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires the session cookie.
func (c *CookieManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name(),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}

// Token extracts the session token from the cookie, falling back to a
// Bearer header for non-browser clients like the poller.
func (c *CookieManager) Token(r *http.Request) string {
	if cookie, err := r.Cookie(c.Name()); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimPrefix(authz, "Bearer ")
	}

	return ""
}
